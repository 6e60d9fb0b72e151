package cola

import "encoding/binary"

// TID is a heap tuple identifier: the block and offset of the row an index
// tuple points at. An RLP uses Offset == RLPOffset and Block as the
// next-level block it points into.
type TID struct {
	Block  pgno
	Offset uint16
}

// IsRLP reports whether this TID marks its owning tuple as a real
// look-ahead pointer rather than user data.
func (t TID) IsRLP() bool { return t.Offset == RLPOffset }

// MakeTID builds a TID from a runtime block number and offset. Block's
// underlying type is unexported, so callers outside this package that
// don't have one in hand already (e.g. from a prior scan result) go
// through this constructor rather than a struct literal with a
// non-constant Block value.
func MakeTID(block uint32, offset uint16) TID {
	return TID{Block: pgno(block), Offset: offset}
}

// Tuple is the reduced host-native index tuple this engine operates on: a
// comparable key plus a TID. The first indexed attribute is always the key
//; multi-column keys are out of scope.
type Tuple struct {
	Key []byte
	TID TID
}

func (t Tuple) isRLP() bool { return t.TID.IsRLP() }

// rlpOf builds the pointer tuple installed during a merge: a copy of a
// user tuple's key whose TID names the destination block with the RLP
// sentinel offset.
func rlpOf(key []byte, block pgno) Tuple {
	k := make([]byte, len(key))
	copy(k, key)
	return Tuple{Key: k, TID: TID{Block: block, Offset: RLPOffset}}
}

// Comparator orders two keys the way a single COLAORDER_PROC would: negative
// if a < b, zero if equal, positive if a > b. The caller supplies
// this; the engine never inspects key bytes itself beyond what the
// comparator tells it.
type Comparator func(a, b []byte) int

// IntKey encodes a signed 64-bit integer as an order-preserving big-endian
// key, so that byte-wise comparison (and CompareBytes below) agrees with
// numeric comparison.
func IntKey(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v)^(1<<63))
	return b
}

// DecodeIntKey reverses IntKey.
func DecodeIntKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// encodeTID packs a TID into 6 bytes for storage in the external sort
// spool's value column.
func encodeTID(t TID) []byte {
	b := make([]byte, 6)
	binary.BigEndian.PutUint32(b[0:4], uint32(t.Block))
	binary.BigEndian.PutUint16(b[4:6], t.Offset)
	return b
}

func decodeTID(b []byte) TID {
	return TID{Block: pgno(binary.BigEndian.Uint32(b[0:4])), Offset: binary.BigEndian.Uint16(b[4:6])}
}

// CompareBytes is the default Comparator: plain lexicographic order, correct
// for any key produced by IntKey or raw byte-string keys.
func CompareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
