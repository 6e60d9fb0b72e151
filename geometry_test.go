package cola

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockOfLevel0(t *testing.T) {
	b0, err := blockOf(0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, pgno(1), b0)

	b1, err := blockOf(0, 1, 0)
	require.NoError(t, err)
	require.Equal(t, pgno(2), b1)
}

func TestBlockOfRejectsOutOfRangeCell(t *testing.T) {
	_, err := blockOf(2, 0, cellsAtLevel(2))
	require.Error(t, err)
}

// TestBlockOfIsContiguousAndUnique walks every (level, arrnum, cell) up to a
// modest height and checks that blockOf never repeats a block number and
// that the sequence it produces for one level follows immediately after the
// previous level's last block, matching the concatenated-levels layout.
func TestBlockOfIsContiguousAndUnique(t *testing.T) {
	const maxLevel = 6
	seen := make(map[pgno]bool)
	var next pgno = 1 // block 0 is the meta page

	for level := 0; level <= maxLevel; level++ {
		max := arraysAtLevel(level)
		cellMax := cellsAtLevel(level)
		for arrnum := 0; arrnum < max; arrnum++ {
			for cell := 0; cell < cellMax; cell++ {
				b, err := blockOf(level, arrnum, cell)
				require.NoError(t, err)
				require.Falsef(t, seen[b], "block %d produced twice at level %d arrnum %d cell %d", b, level, arrnum, cell)
				seen[b] = true
				require.Equal(t, next, b, "level %d arrnum %d cell %d", level, arrnum, cell)
				next++
			}
		}
	}
}

func TestLevelPageCount(t *testing.T) {
	require.Equal(t, Level0Arrays, levelPageCount(0))
	require.Equal(t, ArraysPerLevel*2, levelPageCount(1))
	require.Equal(t, ArraysPerLevel*4, levelPageCount(2))
}
