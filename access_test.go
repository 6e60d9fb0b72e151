package cola

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// smallPageSize is small enough that a handful of inserts fills a level-0
// array and forces a merge, without needing thousands of inserts per test.
const smallPageSize = 256

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.cola")
	allOpts := append([]Option{WithPageSize(smallPageSize), WithSilentLogger(), WithSortDir(t.TempDir())}, opts...)
	idx, err := Open(path, allOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestOpenFormatsFreshFile(t *testing.T) {
	idx := newTestIndex(t)
	m := idx.meta.snapshot()
	require.False(t, m[0][0].isExists())
	require.False(t, m[0][1].isExists())
}

func TestOpenReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.cola")
	idx, err := Open(path, WithPageSize(smallPageSize), WithSilentLogger())
	require.NoError(t, err)
	require.NoError(t, idx.Insert(context.Background(), Tuple{Key: IntKey(1), TID: MakeTID(10, 1)}))
	require.NoError(t, idx.Close())

	idx2, err := Open(path, WithPageSize(smallPageSize), WithSilentLogger())
	require.NoError(t, err)
	defer idx2.Close()

	sc := idx2.BeginScan(OpEqual, IntKey(1))
	tid, ok, err := sc.GetTuple(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, MakeTID(10, 1), tid)
}

func TestBuildReportsStats(t *testing.T) {
	idx := newTestIndex(t)
	tuples := make(chan Tuple)
	go func() {
		defer close(tuples)
		for i := int64(0); i < 50; i++ {
			tuples <- Tuple{Key: IntKey(i), TID: MakeTID(uint32(i)+1, 1)}
		}
	}()

	stats, err := idx.Build(context.Background(), tuples)
	require.NoError(t, err)
	require.Equal(t, int64(50), stats.NumTuples)
	require.Greater(t, stats.NumPages, int64(0))

	sc := idx.BeginScan(OpGreaterEqual, IntKey(0))
	count := 0
	for {
		_, ok, err := sc.GetTuple(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 50, count)
}

func TestUnimplementedEntryPointsReturnErrUnsupported(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.False(t, idx.CanReturn())
	require.ErrorIs(t, idx.CostEstimate(ctx), ErrUnsupported)
	require.ErrorIs(t, idx.Options(ctx), ErrUnsupported)
	require.ErrorIs(t, idx.BulkDelete(ctx), ErrUnsupported)
	require.ErrorIs(t, idx.VacuumCleanup(ctx), ErrUnsupported)
	require.ErrorIs(t, idx.MarkPos(ctx), ErrUnsupported)
	require.ErrorIs(t, idx.RestrPos(ctx), ErrUnsupported)
}
