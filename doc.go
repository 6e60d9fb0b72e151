// Package cola implements the access-method side of a Cache-Oblivious
// Look-ahead Array (COLA) index: a leveled structure of sorted arrays with
// doubling per-level capacity, where a shallower level carries real
// look-ahead pointers (RLPs) into the level below to bound search I/O.
//
// The package owns the array/level geometry, the meta-page state matrix,
// the cascading merge-down algorithm, RLP link-up, and the scan traversal
// that rides RLPs to prune which blocks at the next level need reading. It
// assumes a paged store with pin/unpin and shared/exclusive latching
// (internal/pagestore), an external sort utility for the 0->1 merge
// (internal/sortspool), and a host-native tuple format reduced here to a key
// plus a heap TID.
//
// Basic usage:
//
//	idx, err := cola.Open("/path/to/index.cola")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer idx.Close()
//
//	err = idx.Insert(ctx, cola.Tuple{Key: cola.IntKey(42), TID: cola.TID{Block: 7, Offset: 3}})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	scan := idx.BeginScan(cola.OpGreaterEqual, cola.IntKey(10))
//	defer scan.EndScan()
//	for {
//		tid, ok, err := scan.GetTuple(ctx)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if !ok {
//			break
//		}
//		_ = tid
//	}
package cola
