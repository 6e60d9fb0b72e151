package cola

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fillLevel0 inserts sequential int keys until both level-0 arrays report
// full, without going through Insert's own merge-and-retry logic.
func fillLevel0(t *testing.T, idx *Index) int64 {
	t.Helper()
	var i int64
	for {
		ok, err := idx.tryInsertLevel0(Tuple{Key: IntKey(i), TID: MakeTID(uint32(i)+1, 1)})
		require.NoError(t, err)
		if !ok {
			break
		}
		i++
	}
	return i
}

func TestMergeZeroToOneProducesSortedLevel1Array(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	n := fillLevel0(t, idx)
	require.Greater(t, n, int64(0))

	require.NoError(t, idx.mergeZeroToOne(ctx))

	m := idx.meta.snapshot()
	require.False(t, m[0][0].isFull())
	require.False(t, m[0][1].isFull())

	var destArrnum = -1
	for a := 0; a < ArraysPerLevel; a++ {
		if m[1][a].isExists() {
			destArrnum = a
		}
	}
	require.GreaterOrEqual(t, destArrnum, 0)
	require.True(t, m[1][destArrnum].isVisible())
	require.True(t, m[1][destArrnum].isFull())

	c, err := idx.newArrayCursor(1, destArrnum)
	require.NoError(t, err)
	defer c.release()

	var prev int64 = -1
	count := 0
	for {
		tup, ok, err := c.peek()
		require.NoError(t, err)
		if !ok {
			break
		}
		c.consume()
		key := DecodeIntKey(tup.Key)
		require.Greater(t, key, prev)
		prev = key
		count++
	}
	require.Equal(t, int(n), count)
}

func TestMergeZeroToOneReportsUnsafeWhenLevel1Full(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	m := idx.meta.snapshot()
	for a := 0; a < ArraysPerLevel; a++ {
		m[1][a] = encodeState(1, a, flagExists|flagVisible|flagFull)
	}
	require.NoError(t, idx.meta.writeThrough(idx.store, func(mm *matrix) { *mm = m }))

	fillLevel0(t, idx)
	require.ErrorIs(t, idx.mergeZeroToOne(ctx), errLevelUnsafe)
}

func TestMergeCascadeRestoresLevel1Safety(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for i := int64(0); i < 150; i++ {
		require.NoError(t, idx.Insert(ctx, Tuple{Key: IntKey(i), TID: MakeTID(uint32(i)+1, 1)}))
	}

	m := idx.meta.snapshot()
	require.True(t, levelIsSafe(1, &m))
}
