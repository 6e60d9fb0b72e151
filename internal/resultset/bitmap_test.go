package resultset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colaidx/cola/internal/pagestore"
)

func TestAddDedupesSameTID(t *testing.T) {
	s := NewTIDSet()
	require.True(t, s.Add(TID{Block: 1, Offset: 3}))
	require.False(t, s.Add(TID{Block: 1, Offset: 3}))
	require.Equal(t, 1, s.Len())
}

func TestAddDistinguishesBlockAndOffset(t *testing.T) {
	s := NewTIDSet()
	require.True(t, s.Add(TID{Block: 1, Offset: 3}))
	require.True(t, s.Add(TID{Block: 1, Offset: 4}))
	require.True(t, s.Add(TID{Block: 2, Offset: 3}))
	require.Equal(t, 3, s.Len())
}

func TestAddHandlesOffsetsAcrossWordBoundary(t *testing.T) {
	s := NewTIDSet()
	require.True(t, s.Add(TID{Block: 1, Offset: 63}))
	require.True(t, s.Add(TID{Block: 1, Offset: 64}))
	require.True(t, s.Add(TID{Block: 1, Offset: 200}))
	require.Equal(t, 3, s.Len())
	require.False(t, s.Add(TID{Block: 1, Offset: 64}))
}

func TestConcurrentAddIsSafe(t *testing.T) {
	s := NewTIDSet()
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Add(TID{Block: pagestore.Pgno(g), Offset: uint16(i)})
			}
		}(g)
	}
	wg.Wait()
	require.Equal(t, 16*50, s.Len())
}
