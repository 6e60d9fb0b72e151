package cola

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/colaidx/cola/internal/pagestore"
)

// Insert adds one tuple to the index. A direct placement into a visible,
// non-full, non-merging level-0 array always wins when one is available.
// When both level-0 arrays are full, a merge of level 0 into level 1 opens
// room; when level 1 itself has no safe destination, a cascading merge
// pushes the blockage as many levels deep as it takes before the 0-to-1
// merge is retried. If level 0 still has no room after that cascade, Insert
// logs a warning and returns ErrNotIndexed rather than failing hard: the
// index is left consistent, the row is just not indexed.
func (idx *Index) Insert(ctx context.Context, t Tuple) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	ok, err := idx.tryInsertLevel0(t)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if err := idx.mergeZeroToOne(ctx); err != nil {
		if !errors.Is(err, errLevelUnsafe) {
			return err
		}
		if err := idx.mergeCascade(ctx); err != nil {
			return err
		}
		if err := idx.mergeZeroToOne(ctx); err != nil {
			return errors.Wrap(err, "insert: merge-0-to-1 failed again after cascading merge")
		}
	}

	ok, err = idx.tryInsertLevel0(t)
	if err != nil {
		return err
	}
	if !ok {
		idx.log.Warn("insert retry exhausted: no level-0 slot available even after a merge cascade",
			"key", t.Key, "tid", t.TID)
		return ErrNotIndexed
	}
	return nil
}

// tryInsertLevel0 repeatedly asks findArray for a level-0 candidate and
// attempts to place t on it, marking any array that turns out to be full
// and moving on to the next candidate. It returns ok=false (no error) only
// once findArray has no candidate left to offer, signaling the caller to
// run a merge and retry from scratch.
func (idx *Index) tryInsertLevel0(t Tuple) (bool, error) {
	enc := encodeTuple(t)

	for {
		m := idx.meta.snapshot()
		arrnum, state, ok := findArray(0, &m)
		if !ok {
			return false, nil
		}

		block, err := blockOf(0, arrnum, 0)
		if err != nil {
			return false, err
		}
		no := pagestore.Pgno(block)
		if !state.isExists() {
			no = pagestore.NewPage
		}
		buf, err := idx.store.Get(no, true)
		if err != nil {
			return false, err
		}
		if buf.No != pagestore.Pgno(block) {
			buf.Release()
			return false, geometryViolation("tryInsertLevel0: allocated block %d, want %d (level 0 arrnum %d)", buf.No, block, arrnum)
		}

		p := newPage(buf.Data)
		if !state.isExists() {
			p.init(0)
		}

		if p.freeSpace() < itemIDSize+len(enc)+rlpReserveBytes || !p.addItem(enc) {
			buf.Release()
			if err := idx.meta.writeThrough(idx.store, func(m *matrix) {
				m[0][arrnum] = state.with(flagFull)
			}); err != nil {
				return false, err
			}
			continue
		}

		buf.MarkDirty()
		buf.Release()

		if !state.isExists() || !state.isVisible() {
			next := state.with(flagExists | flagVisible)
			if err := idx.meta.writeThrough(idx.store, func(m *matrix) {
				m[0][arrnum] = next
			}); err != nil {
				return false, err
			}
		}
		return true, nil
	}
}
