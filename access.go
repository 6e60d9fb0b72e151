package cola

import (
	"context"
	"log/slog"
	"sync"

	"github.com/colaidx/cola/internal/pagestore"
	"github.com/colaidx/cola/internal/sortspool"
)

// Index is a single open cache-oblivious look-ahead array. It owns the
// page file, the in-memory array-state matrix, and the write-serializing
// lock that implements the single-writer/many-reader concurrency model.
// All exported methods are safe for concurrent use by multiple readers and
// at most one concurrent writer; callers enforce the single-writer part
// themselves (e.g. via the advisory file lock the page store already
// takes), this type only serializes its own goroutines.
type Index struct {
	store *pagestore.Store
	meta  *metaState
	cmp   Comparator
	log   *slog.Logger

	sortDir string

	writeMu sync.Mutex
}

// Open opens an existing index file, or creates and formats one if it does
// not yet exist, applying opts on top of the defaults.
func Open(path string, opts ...Option) (*Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	store, err := pagestore.Open(path, cfg.pageSize)
	if err != nil {
		return nil, err
	}

	fresh := store.PageCount() == 0
	if fresh {
		buf, err := store.Get(pagestore.NewPage, true)
		if err != nil {
			store.Close()
			return nil, err
		}
		initMetaPage(buf)
		buf.Release()
		if err := store.Sync(); err != nil {
			store.Close()
			return nil, err
		}
	}

	ms, err := loadMetaState(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Index{
		store:   store,
		meta:    ms,
		cmp:     cfg.comparator,
		log:     cfg.logger,
		sortDir: cfg.sortDir,
	}, nil
}

// Close flushes and releases the underlying page file.
func (idx *Index) Close() error {
	return idx.store.Close()
}

// BuildStats summarizes a completed Build call: how many tuples were
// indexed and how many pages the resulting file occupies.
type BuildStats struct {
	NumTuples int64
	NumPages  int64
}

// Build bulk-loads tuples into a freshly opened, empty index. It spools
// every tuple through the external sort bridge and then inserts them in
// sorted order, the way a heap scan feeds a bulk-load callback one tuple
// at a time but sorted up front so the resulting level-0 arrays fill
// monotonically instead of thrashing findArray on every call.
func (idx *Index) Build(ctx context.Context, tuples <-chan Tuple) (BuildStats, error) {
	spool, err := sortspool.Open(idx.sortDir, sortspool.Comparator(idx.cmp))
	if err != nil {
		return BuildStats{}, err
	}
	defer spool.Close()

	var stats BuildStats
	for t := range tuples {
		if err := spool.Add(t.Key, encodeTID(t.TID)); err != nil {
			return stats, err
		}
		stats.NumTuples++
	}

	it, err := spool.Sorted()
	if err != nil {
		return stats, err
	}
	defer it.Close()

	for it.Next() {
		key, val := it.Item()
		if err := idx.Insert(ctx, Tuple{Key: key, TID: decodeTID(val)}); err != nil {
			return stats, err
		}
	}
	if err := it.Err(); err != nil {
		return stats, err
	}

	stats.NumPages = int64(idx.store.PageCount())
	return stats, nil
}

// CanReturn reports whether a scan can hand back index-only tuples without
// visiting the heap. COLA pages carry TIDs only, never the full tuple, so
// this is always false.
func (idx *Index) CanReturn() bool { return false }

// CostEstimate is not implemented: cost estimation belongs to the planner
// layer this engine assumes is supplied by its host.
func (idx *Index) CostEstimate(context.Context) error {
	return unsupportedf("CostEstimate")
}

// Options is not implemented: COLA takes no access-method reloptions.
func (idx *Index) Options(context.Context) error {
	return unsupportedf("Options")
}

// BulkDelete is not implemented. Deletion is out of scope for this engine;
// hosts that need MVCC garbage collection implement it above this layer.
func (idx *Index) BulkDelete(context.Context) error {
	return unsupportedf("BulkDelete")
}

// VacuumCleanup is not implemented for the same reason as BulkDelete.
func (idx *Index) VacuumCleanup(context.Context) error {
	return unsupportedf("VacuumCleanup")
}

// MarkPos is not implemented: COLA scans are forward-only and never need
// to save and restore a position.
func (idx *Index) MarkPos(context.Context) error {
	return unsupportedf("MarkPos")
}

// RestrPos is not implemented, for the same reason as MarkPos.
func (idx *Index) RestrPos(context.Context) error {
	return unsupportedf("RestrPos")
}
