package cola

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryInsertLevel0FillsBothArraysThenReportsFalse(t *testing.T) {
	idx := newTestIndex(t)

	inserted := 0
	for i := 0; i < 1000; i++ {
		ok, err := idx.tryInsertLevel0(Tuple{Key: IntKey(int64(i)), TID: MakeTID(uint32(i)+1, 1)})
		require.NoError(t, err)
		if !ok {
			break
		}
		inserted++
	}
	require.Greater(t, inserted, 0)

	m := idx.meta.snapshot()
	require.True(t, m[0][0].isFull())
	require.True(t, m[0][1].isFull())
}

func TestInsertTriggersZeroToOneMerge(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	const n = 40
	for i := int64(0); i < n; i++ {
		require.NoError(t, idx.Insert(ctx, Tuple{Key: IntKey(i), TID: MakeTID(uint32(i)+1, 1)}))
	}

	m := idx.meta.snapshot()
	hasLevel1 := false
	for a := 0; a < ArraysPerLevel; a++ {
		if m[1][a].isExists() {
			hasLevel1 = true
		}
	}
	require.True(t, hasLevel1, "expected at least one level-1 array after enough inserts to overflow level 0")

	sc := idx.BeginScan(OpGreaterEqual, IntKey(0))
	var blocks []uint32
	for {
		tid, ok, err := sc.GetTuple(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		blocks = append(blocks, uint32(tid.Block))
	}
	require.Len(t, blocks, n)
	// TID.Block was set to key+1 at insert time, so scan order (by key)
	// should hand blocks back strictly increasing.
	for i := 1; i < len(blocks); i++ {
		require.Less(t, blocks[i-1], blocks[i])
	}
}

func TestInsertKeepsEveryLevelSafeAfterManyInserts(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for i := int64(0); i < 200; i++ {
		require.NoError(t, idx.Insert(ctx, Tuple{Key: IntKey(i), TID: MakeTID(uint32(i)+1, 1)}))
	}

	m := idx.meta.snapshot()
	for level := 0; level < MaxHeight; level++ {
		require.True(t, levelIsSafe(level, &m), "level %d should be safe after Insert returns", level)
	}
}
