package cola

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/colaidx/cola/internal/pagestore"
	"github.com/colaidx/cola/internal/resultset"
)

// bitmapFanout bounds how many arrays GetBitmap scans concurrently. Page
// fetches are the expensive part (mmap faults, or ReadAt on the fallback
// backing), so a handful of arrays in flight at once hides that latency
// without unbounded goroutine growth on a tall index.
const bitmapFanout = 8

// Operator is a scan's comparison strategy against its single search key.
// COLA only ever indexes on the first (and only) attribute, so a scan
// carries exactly one key and one operator.
type Operator int

const (
	OpLess Operator = iota
	OpLessEqual
	OpEqual
	OpGreater
	OpGreaterEqual
)

// Scan is a forward-only, single-key traversal of the index. It is not
// safe for concurrent use by multiple goroutines.
type Scan struct {
	idx *Index
	m   matrix // snapshot taken at BeginScan, fixed for the scan's lifetime
	op  Operator
	key []byte

	curArrValid bool
	curArr      stateWord
	curLevel    int
	curBlock    pgno
	searchTo    pgno
	rlpFrom     pgno
	rlpTo       pgno

	continueArrScan bool
	pageData        []TID
	pageIdx         int
}

// BeginScan starts a new scan for tuples satisfying op against key.
func (idx *Index) BeginScan(op Operator, key []byte) *Scan {
	s := &Scan{idx: idx, m: idx.meta.snapshot(), op: op, key: key}
	s.resetToStart()
	return s
}

// Rescan restarts the same Scan with a new key and/or operator, without
// re-snapshotting the array-state matrix.
func (s *Scan) Rescan(op Operator, key []byte) {
	s.op = op
	s.key = key
	s.resetToStart()
}

// EndScan releases the scan. COLA scans hold no resources between calls to
// GetTuple/GetBitmap (every page fetch is released immediately), so this
// is a no-op kept for symmetry with the access-method capability set.
func (s *Scan) EndScan() {}

func (s *Scan) resetToStart() {
	arr := s.m[0][0]
	s.curLevel = 0
	if arr.isVisible() {
		s.curArrValid = true
		s.curArr = arr
	} else {
		s.curArrValid = false
		s.curArr = invalidState
	}
	block, _ := blockOf(0, 0, 0)
	s.curBlock = block
	s.searchTo = block
	s.rlpFrom, s.rlpTo = 0, 0
	s.continueArrScan = true
	s.pageData = nil
	s.pageIdx = 0
}

// nextScanArray advances to the next array to read: first any later array
// at the same level (preferring one newly LINKED-but-not-yet-VISIBLE over
// a plain VISIBLE one, since a just-installed look-ahead array should be
// read before falling further behind), then the first VISIBLE array at
// each deeper level in turn.
func (s *Scan) nextScanArray() {
	level := s.curLevel
	startArrnum := 0
	if s.curArrValid {
		startArrnum = s.curArr.arrnum() + 1
	}

	var next stateWord
	found := false
	for a := startArrnum; a < arraysAtLevel(level); a++ {
		st := s.m[level][a]
		if st.isExists() && !st.isVisible() && st.isLinked() {
			next = st
			found = true
		}
		if st.isVisible() && !found {
			next = st
			found = true
		}
	}

	for !found && level < MaxHeight-1 {
		level++
		for a := 0; a < arraysAtLevel(level); a++ {
			if s.m[level][a].isVisible() {
				next = s.m[level][a]
				found = true
				break
			}
		}
	}

	s.curLevel = level
	s.curArrValid = found
	if !found {
		s.curArr = invalidState
		return
	}
	s.curArr = next

	arrnum := next.arrnum()
	block0, _ := blockOf(level, arrnum, 0)
	maxBlock, _ := blockOf(level, arrnum, cellsAtLevel(level)-1)
	s.curBlock = block0
	s.searchTo = maxBlock

	if s.rlpFrom != 0 {
		s.curBlock = s.rlpFrom
		s.rlpFrom = 0
	}
	if s.rlpTo != 0 {
		s.searchTo = s.rlpTo
		s.rlpTo = 0
	}
	s.continueArrScan = true
}

// checkKeys reports whether t satisfies the scan's operator against its
// key. For a one-sided Less/LessEqual scan, a non-match also means no
// further tuple in this (sorted) array can match, so continueArrScan is
// cleared.
func (s *Scan) checkKeys(t Tuple) bool {
	c := s.idx.cmp(t.Key, s.key)
	var match bool
	switch s.op {
	case OpLess:
		match = c < 0
	case OpLessEqual:
		match = c <= 0
	case OpGreater:
		match = c > 0
	case OpGreaterEqual:
		match = c >= 0
	default:
		match = c == 0
	}
	if !match && (s.op == OpLess || s.op == OpLessEqual) {
		s.continueArrScan = false
	}
	return match
}

// findRLP routes a look-ahead pointer into rlpFrom/rlpTo according to the
// scan's operator, narrowing the block window the next array's scan will
// use. It reports whether t was an RLP (and so was consumed here, not a
// user tuple).
func (s *Scan) findRLP(t Tuple) bool {
	if !t.isRLP() {
		return false
	}
	switch s.op {
	case OpLess, OpLessEqual:
		if !s.checkKeys(t) {
			s.rlpTo = t.TID.Block
		}
	case OpGreater, OpGreaterEqual:
		if !s.checkKeys(t) {
			s.rlpFrom = t.TID.Block
		}
	default:
		c := s.idx.cmp(t.Key, s.key)
		switch {
		case c > 0:
			s.rlpTo = t.TID.Block
		case c < 0:
			s.rlpFrom = t.TID.Block
		}
	}
	return true
}

func (s *Scan) scanOnePage(block pgno, collect func(TID)) error {
	buf, err := s.idx.store.Get(pagestore.Pgno(block), false)
	if err != nil {
		return err
	}
	defer buf.Release()

	p := newPage(buf.Data)
	n := p.numItems()
	for i := 0; i < n; i++ {
		raw, err := p.itemAt(i)
		if err != nil {
			return err
		}
		t := decodeTuple(raw)

		if s.curArrValid && s.curArr.isLinked() && s.findRLP(t) {
			continue
		}

		match := s.checkKeys(t)
		if !match && !s.continueArrScan {
			if s.curArrValid && s.curArr.isLinked() && !s.curArr.isFull() && s.rlpTo == 0 {
				s.continueArrScan = true
			}
			if s.curLevel == 0 {
				s.continueArrScan = true
			}
			if !s.continueArrScan {
				break
			}
		}
		if !match {
			continue
		}
		collect(t.TID)
	}
	return nil
}

// GetTuple returns the next matching TID in scan order, or ok=false once
// the scan is exhausted.
func (s *Scan) GetTuple(ctx context.Context) (TID, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return TID{}, false, err
		}
		if s.pageIdx < len(s.pageData) {
			t := s.pageData[s.pageIdx]
			s.pageIdx++
			return t, true, nil
		}
		if !s.curArrValid {
			return TID{}, false, nil
		}
		if s.curBlock <= s.searchTo && s.continueArrScan {
			s.pageData = s.pageData[:0]
			if err := s.scanOnePage(s.curBlock, func(t TID) { s.pageData = append(s.pageData, t) }); err != nil {
				return TID{}, false, err
			}
			s.pageIdx = 0
			s.curBlock++
		} else {
			s.nextScanArray()
		}
	}
}

// matchTuple is checkKeys without the continueArrScan side effect, so it
// can be called concurrently from multiple GetBitmap workers sharing one
// Scan's key and operator.
func (s *Scan) matchTuple(t Tuple) bool {
	c := s.idx.cmp(t.Key, s.key)
	switch s.op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	default:
		return c == 0
	}
}

// scanArrayBitmap scans every cell of one array for matching user tuples,
// feeding results into set. Unlike GetTuple's single-cursor walk, this does
// not consult RLPs to narrow its range: a bitmap scan fans out across many
// arrays at once, and RLP routing only makes sense against one array's
// successor in the fixed traversal order, so arrays here are scanned in
// full instead. The trade is more pages touched in exchange for safe,
// bounded concurrency.
func (s *Scan) scanArrayBitmap(level, arrnum int, set *resultset.TIDSet) error {
	cellMax := cellsAtLevel(level)
	for cell := 0; cell < cellMax; cell++ {
		block, err := blockOf(level, arrnum, cell)
		if err != nil {
			return err
		}
		buf, err := s.idx.store.Get(pagestore.Pgno(block), false)
		if err != nil {
			return err
		}
		p := newPage(buf.Data)
		n := p.numItems()
		stop := false
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
			if !s.matchTuple(t) {
				// Level 0 is unsorted, so a non-match there says nothing
				// about the rest of the array; level >= 1 arrays are kept
				// sorted, so a one-sided scan can stop the array early.
				if level > 0 && (s.op == OpLess || s.op == OpLessEqual) {
					stop = true
				}
				continue
			}
			set.Add(resultset.TID{Block: pagestore.Pgno(t.TID.Block), Offset: t.TID.Offset})
		}
		buf.Release()
		if stop {
			break
		}
	}
	return nil
}

// GetBitmap drains the entire scan into an unordered, deduplicated set of
// matching TIDs, for a host that batches heap visits instead of taking
// them one at a time. Every currently visible array is scanned
// concurrently, bounded by bitmapFanout.
func (s *Scan) GetBitmap(ctx context.Context) (*resultset.TIDSet, error) {
	set := resultset.NewTIDSet()
	sem := semaphore.NewWeighted(bitmapFanout)
	g, gctx := errgroup.WithContext(ctx)

	for level := 0; level < MaxHeight; level++ {
		for a := 0; a < arraysAtLevel(level); a++ {
			if !s.m[level][a].isVisible() {
				continue
			}
			level, a := level, a
			if err := sem.Acquire(gctx, 1); err != nil {
				_ = g.Wait()
				return nil, err
			}
			g.Go(func() error {
				defer sem.Release(1)
				return s.scanArrayBitmap(level, a, set)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}
