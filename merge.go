package cola

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/colaidx/cola/internal/pagestore"
	"github.com/colaidx/cola/internal/sortspool"
)

// mergeZeroToOne merges both level-0 arrays into a single, newly sorted
// level-1 array. Level 0 is unsorted (tuples land wherever tryInsertLevel0
// put them), so both source pages are spooled through the external sort
// bridge and drained back out in order, instead of the page-by-page
// streaming merge mergeDownOnce uses for already-sorted deeper levels.
//
// It returns errLevelUnsafe, not a hard error, when level 1 has no
// available destination array; Insert uses that to decide whether to
// cascade a merge further down first.
func (idx *Index) mergeZeroToOne(ctx context.Context) error {
	m := idx.meta.snapshot()
	if !levelIsSafe(1, &m) {
		return errLevelUnsafe
	}
	arrnum, dest, ok := findArray(1, &m)
	if !ok {
		return errLevelUnsafe
	}

	if err := idx.meta.writeThrough(idx.store, func(m *matrix) {
		m[0][0] = m[0][0].with(flagMerge)
		m[0][1] = m[0][1].with(flagMerge)
		m[1][arrnum] = dest.with(flagMerge)
	}); err != nil {
		return err
	}

	spool, err := sortspool.Open(idx.sortDir, sortspool.Comparator(idx.cmp))
	if err != nil {
		return err
	}
	defer spool.Close()

	if err := idx.spoolArray(spool, 0, 0); err != nil {
		return err
	}
	if err := idx.spoolArray(spool, 0, 1); err != nil {
		return err
	}

	var oldRLPs []Tuple
	if dest.isLinked() {
		oldRLPs, err = idx.drainOldRLPs(1, arrnum)
		if err != nil {
			return err
		}
		dest = dest.without(flagLinked)
	}

	// A 0-to-1 merge never records new look-ahead pointers: RLPs are only
	// produced by a cascaded merge one level deeper than where they point,
	// and level 0 has no shallower level for them to route into.
	dw, err := idx.newDestWriter(1, arrnum, dest.isExists(), false)
	if err != nil {
		return err
	}

	it, err := spool.Sorted()
	if err != nil {
		return err
	}
	defer it.Close()

	oi := 0
	for it.Next() {
		k, v := it.Item()
		t := Tuple{Key: append([]byte(nil), k...), TID: decodeTID(v)}
		for oi < len(oldRLPs) && idx.cmp(oldRLPs[oi].Key, t.Key) <= 0 {
			if err := dw.write(oldRLPs[oi]); err != nil {
				return err
			}
			oi++
		}
		if err := dw.write(t); err != nil {
			return err
		}
	}
	for ; oi < len(oldRLPs); oi++ {
		if err := dw.write(oldRLPs[oi]); err != nil {
			return err
		}
	}
	if err := dw.finish(); err != nil {
		return err
	}

	if err := idx.clearArray(0, 0); err != nil {
		return err
	}
	if err := idx.clearArray(0, 1); err != nil {
		return err
	}

	destFlags := flagExists | flagFull | flagVisible
	if len(oldRLPs) > 0 {
		destFlags |= flagLinked
	}
	if err := idx.meta.writeThrough(idx.store, func(m *matrix) {
		m[0][0] = m[0][0].without(flagFull | flagMerge)
		m[0][1] = m[0][1].without(flagFull | flagMerge)
		m[1][arrnum] = encodeState(1, arrnum, destFlags)
	}); err != nil {
		return err
	}

	return nil
}

// mergeCascade repeatedly merges level by level, starting at level 1,
// until it reaches a level that is safe (or the geometry's height limit is
// hit); each merge-down can leave the next level unsafe in turn. It
// is only called after mergeZeroToOne has already reported level 1 unsafe.
func (idx *Index) mergeCascade(ctx context.Context) error {
	level := 1
	for {
		m := idx.meta.snapshot()
		if levelIsSafe(level, &m) {
			if level > 1 {
				idx.log.Warn("merge cascade ran multiple levels deep",
					"levels", level, "insert_cost_pages", 1<<uint(level))
			}
			return nil
		}
		if level >= MaxHeight-1 {
			return capacityExhausted("merge cascade reached the deepest level (%d) while still unsafe", level)
		}

		levelTo := level + 1
		lastMerge := levelIsEmpty(levelTo, &m)

		newRLPs, err := idx.mergeDownOnce(level, lastMerge)
		if err != nil {
			return err
		}
		if lastMerge && len(newRLPs) > 0 {
			if err := idx.linkUp(level, newRLPs); err != nil {
				return err
			}
		}
		level++
	}
}

// mergeDownOnce merges the two visible, full arrays at level into the
// array findArray selects at level+1, page-streaming both (already
// sorted) sources instead of spooling them. It returns the new RLPs
// produced if lastMerge is true, for the caller to link up one level
// shallower.
func (idx *Index) mergeDownOnce(level int, lastMerge bool) ([]Tuple, error) {
	if err := idx.completeLevel(level); err != nil {
		return nil, err
	}

	levelTo := level + 1
	mSnap := idx.meta.snapshot()

	destArrnum, dest, ok := findArray(levelTo, &mSnap)
	if !ok {
		return nil, capacityExhausted("merge down level %d: no destination array at level %d", level, levelTo)
	}

	var srcArrnums []int
	for a := 0; a < arraysAtLevel(level); a++ {
		if mSnap[level][a].isVisible() && mSnap[level][a].isFull() {
			srcArrnums = append(srcArrnums, a)
		}
	}
	if len(srcArrnums) != 2 {
		return nil, capacityExhausted("merge down level %d: expected 2 visible+full arrays, found %d", level, len(srcArrnums))
	}
	src1, src2 := srcArrnums[0], srcArrnums[1]

	if err := idx.meta.writeThrough(idx.store, func(m *matrix) {
		m[level][src1] = m[level][src1].with(flagMerge)
		m[level][src2] = m[level][src2].with(flagMerge)
		m[levelTo][destArrnum] = dest.with(flagMerge)
	}); err != nil {
		return nil, err
	}

	var oldRLPs []Tuple
	var err error
	if dest.isLinked() {
		oldRLPs, err = idx.drainOldRLPs(levelTo, destArrnum)
		if err != nil {
			return nil, err
		}
		dest = dest.without(flagLinked)
	}

	// newDestWriter may extend the page file, which remaps it and invalidates
	// any page buffer already held, so it runs before the source cursors open.
	dw, err := idx.newDestWriter(levelTo, destArrnum, dest.isExists(), lastMerge)
	if err != nil {
		return nil, err
	}

	// The two sources' first pages are independent fetches (possibly a cold
	// mmap fault each), so open both cursors concurrently rather than
	// serializing two blocking page-ins before the merge loop even starts.
	var c1, c2 *arrayCursor
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		c1, err = idx.newArrayCursor(level, src1)
		return err
	})
	g.Go(func() error {
		var err error
		c2, err = idx.newArrayCursor(level, src2)
		return err
	})
	if err := g.Wait(); err != nil {
		dw.finish()
		if c1 != nil {
			c1.release()
		}
		if c2 != nil {
			c2.release()
		}
		return nil, err
	}
	defer c1.release()
	defer c2.release()

	oi := 0
	for {
		t1, ok1, err := c1.peek()
		if err != nil {
			return nil, err
		}
		t2, ok2, err := c2.peek()
		if err != nil {
			return nil, err
		}
		if !ok1 && !ok2 {
			break
		}

		var take Tuple
		switch {
		case ok1 && ok2:
			if idx.cmp(t1.Key, t2.Key) <= 0 {
				take = t1
				c1.consume()
			} else {
				take = t2
				c2.consume()
			}
		case ok1:
			take = t1
			c1.consume()
		default:
			take = t2
			c2.consume()
		}

		for oi < len(oldRLPs) && idx.cmp(oldRLPs[oi].Key, take.Key) <= 0 {
			if err := dw.write(oldRLPs[oi]); err != nil {
				return nil, err
			}
			oi++
		}
		if err := dw.write(take); err != nil {
			return nil, err
		}
	}
	for ; oi < len(oldRLPs); oi++ {
		if err := dw.write(oldRLPs[oi]); err != nil {
			return nil, err
		}
	}
	if err := dw.finish(); err != nil {
		return nil, err
	}

	if err := idx.clearArray(level, src1); err != nil {
		return nil, err
	}
	if err := idx.clearArray(level, src2); err != nil {
		return nil, err
	}

	destFlags := flagExists | flagFull | flagVisible
	if len(oldRLPs) > 0 {
		destFlags |= flagLinked
	}
	if err := idx.meta.writeThrough(idx.store, func(m *matrix) {
		m[level][src1] = encodeState(level, src1, flagExists)
		m[level][src2] = encodeState(level, src2, flagExists)
		m[levelTo][destArrnum] = encodeState(levelTo, destArrnum, destFlags)
	}); err != nil {
		return nil, err
	}

	return dw.newRLPs, nil
}

// completeLevel ensures the last array slot at level has its pages
// allocated (but not yet used) even before it is ever selected as a
// destination, so that whenever it eventually is, its pages are
// contiguous with the rest of the geometry. Levels below 1 have only two
// array slots and need no completion.
func (idx *Index) completeLevel(level int) error {
	if level < 1 {
		return nil
	}
	lastArrnum := ArraysPerLevel - 1
	m := idx.meta.snapshot()
	if m[level][lastArrnum].isExists() {
		return nil
	}

	cellMax := cellsAtLevel(level)
	for cell := 0; cell < cellMax; cell++ {
		buf, err := idx.store.Get(pagestore.NewPage, true)
		if err != nil {
			return err
		}
		want, err := blockOf(level, lastArrnum, cell)
		if err != nil {
			buf.Release()
			return err
		}
		if buf.No != pagestore.Pgno(want) {
			buf.Release()
			return geometryViolation("completeLevel: allocated block %d, want %d (level %d arrnum %d cell %d)",
				buf.No, want, level, lastArrnum, cell)
		}
		p := newPage(buf.Data)
		p.init(0)
		buf.MarkDirty()
		buf.Release()
	}

	return idx.meta.writeThrough(idx.store, func(m *matrix) {
		m[level][lastArrnum] = m[level][lastArrnum].with(flagExists)
	})
}

// spoolArray reads every non-RLP tuple on every existing page of one
// array into spool.
func (idx *Index) spoolArray(spool *sortspool.Spool, level, arrnum int) error {
	cellMax := cellsAtLevel(level)
	for cell := 0; cell < cellMax; cell++ {
		block, err := blockOf(level, arrnum, cell)
		if err != nil {
			return err
		}
		buf, err := idx.store.Get(pagestore.Pgno(block), false)
		if err != nil {
			return err
		}
		p := newPage(buf.Data)
		n := p.numItems()
		for i := 0; i < n; i++ {
			raw, err := p.itemAt(i)
			if err != nil {
				buf.Release()
				return err
			}
			t := decodeTuple(raw)
			if t.isRLP() {
				continue
			}
			if err := spool.Add(t.Key, encodeTID(t.TID)); err != nil {
				buf.Release()
				return err
			}
		}
		buf.Release()
	}
	return nil
}

// drainOldRLPs collects every RLP from an array tagged LINKED and clears
// each of its pages, returning the RLPs in key order. A LINKED array is
// only picked as a merge destination while it is not yet FULL, i.e. while
// it holds nothing but the RLPs linkUp wrote in key order, so a linear
// page scan already yields them sorted.
func (idx *Index) drainOldRLPs(level, arrnum int) ([]Tuple, error) {
	var out []Tuple
	cellMax := cellsAtLevel(level)
	for cell := 0; cell < cellMax; cell++ {
		block, err := blockOf(level, arrnum, cell)
		if err != nil {
			return nil, err
		}
		buf, err := idx.store.Get(pagestore.Pgno(block), true)
		if err != nil {
			return nil, err
		}
		p := newPage(buf.Data)
		n := p.numItems()
		for i := 0; i < n; i++ {
			raw, err := p.itemAt(i)
			if err != nil {
				buf.Release()
				return nil, err
			}
			t := decodeTuple(raw)
			if t.isRLP() {
				out = append(out, t)
			}
		}
		p.clear()
		buf.MarkDirty()
		buf.Release()
	}
	return out, nil
}

// clearArray empties every existing page of an array, keeping its block
// numbers (and hence the geometry) stable.
func (idx *Index) clearArray(level, arrnum int) error {
	cellMax := cellsAtLevel(level)
	for cell := 0; cell < cellMax; cell++ {
		block, err := blockOf(level, arrnum, cell)
		if err != nil {
			return err
		}
		buf, err := idx.store.Get(pagestore.Pgno(block), true)
		if err != nil {
			return err
		}
		newPage(buf.Data).clear()
		buf.MarkDirty()
		buf.Release()
	}
	return nil
}

// arrayCursor streams the non-RLP tuples of one already-sorted array
// (level 1 or deeper) in page order.
type arrayCursor struct {
	idx           *Index
	level, arrnum int
	cellMax       int
	cell          int
	buf           *pagestore.Buffer
	p             page
	offset        int
}

func (idx *Index) newArrayCursor(level, arrnum int) (*arrayCursor, error) {
	c := &arrayCursor{idx: idx, level: level, arrnum: arrnum, cellMax: cellsAtLevel(level)}
	if err := c.openCell(0); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *arrayCursor) openCell(cell int) error {
	block, err := blockOf(c.level, c.arrnum, cell)
	if err != nil {
		return err
	}
	buf, err := c.idx.store.Get(pagestore.Pgno(block), true)
	if err != nil {
		return err
	}
	c.cell = cell
	c.buf = buf
	c.p = newPage(buf.Data)
	c.offset = 0
	return nil
}

func (c *arrayCursor) release() {
	if c.buf != nil {
		c.buf.Release()
		c.buf = nil
	}
}

// peek returns the next unconsumed non-RLP tuple without advancing, or
// ok=false once every cell is exhausted.
func (c *arrayCursor) peek() (Tuple, bool, error) {
	for {
		if c.buf == nil {
			return Tuple{}, false, nil
		}
		if c.offset >= c.p.numItems() {
			c.release()
			if c.cell+1 >= c.cellMax {
				return Tuple{}, false, nil
			}
			if err := c.openCell(c.cell + 1); err != nil {
				return Tuple{}, false, err
			}
			continue
		}
		raw, err := c.p.itemAt(c.offset)
		if err != nil {
			return Tuple{}, false, err
		}
		t := decodeTuple(raw)
		if t.isRLP() {
			c.offset++
			continue
		}
		return t, true, nil
	}
}

func (c *arrayCursor) consume() { c.offset++ }

// destWriter appends tuples to a destination array across as many cells
// as it takes, recording a look-ahead pointer for the first tuple written
// to each cell when collectRLPs is set.
type destWriter struct {
	idx           *Index
	level, arrnum int
	cellMax       int
	cell          int
	buf           *pagestore.Buffer
	p             page
	firstOnPage   bool
	collectRLPs   bool
	newRLPs       []Tuple
}

func (idx *Index) newDestWriter(level, arrnum int, exists, collectRLPs bool) (*destWriter, error) {
	cellMax := cellsAtLevel(level)
	if !exists {
		for cell := 0; cell < cellMax; cell++ {
			buf, err := idx.store.Get(pagestore.NewPage, true)
			if err != nil {
				return nil, err
			}
			want, err := blockOf(level, arrnum, cell)
			if err != nil {
				buf.Release()
				return nil, err
			}
			if buf.No != pagestore.Pgno(want) {
				buf.Release()
				return nil, geometryViolation("dest array page allocation out of order: got block %d, want %d (level %d arrnum %d cell %d)",
					buf.No, want, level, arrnum, cell)
			}
			newPage(buf.Data).init(0)
			buf.MarkDirty()
			buf.Release()
		}
	}

	dw := &destWriter{idx: idx, level: level, arrnum: arrnum, cellMax: cellMax, collectRLPs: collectRLPs}
	if err := dw.openCell(0); err != nil {
		return nil, err
	}
	return dw, nil
}

func (dw *destWriter) openCell(cell int) error {
	block, err := blockOf(dw.level, dw.arrnum, cell)
	if err != nil {
		return err
	}
	buf, err := dw.idx.store.Get(pagestore.Pgno(block), true)
	if err != nil {
		return err
	}
	dw.cell = cell
	dw.buf = buf
	dw.p = newPage(buf.Data)
	dw.firstOnPage = dw.p.numItems() == 0
	return nil
}

func (dw *destWriter) closeCell() {
	if dw.buf != nil {
		dw.buf.MarkDirty()
		dw.buf.Release()
		dw.buf = nil
	}
}

func (dw *destWriter) write(t Tuple) error {
	enc := encodeTuple(t)
	for {
		if dw.p.addItem(enc) {
			if dw.firstOnPage && dw.collectRLPs {
				block, err := blockOf(dw.level, dw.arrnum, dw.cell)
				if err != nil {
					return err
				}
				dw.newRLPs = append(dw.newRLPs, rlpOf(t.Key, block))
			}
			dw.firstOnPage = false
			return nil
		}
		dw.closeCell()
		if dw.cell+1 >= dw.cellMax {
			return capacityExhausted("destination array level %d arrnum %d ran out of cells", dw.level, dw.arrnum)
		}
		if err := dw.openCell(dw.cell + 1); err != nil {
			return err
		}
	}
}

func (dw *destWriter) finish() error {
	dw.closeCell()
	return nil
}
