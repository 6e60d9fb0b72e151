package cola

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T, size int) page {
	t.Helper()
	buf := make([]byte, size)
	p := newPage(buf)
	p.init(0)
	return p
}

func TestPageInitEmpty(t *testing.T) {
	p := newTestPage(t, 256)
	require.Equal(t, 0, p.numItems())
	require.False(t, p.isMeta())
}

func TestPageAddAndReadItemsBack(t *testing.T) {
	p := newTestPage(t, 256)
	items := [][]byte{[]byte("alpha"), []byte("bravo"), []byte("charlie")}
	for _, it := range items {
		require.True(t, p.addItem(it))
	}
	require.Equal(t, len(items), p.numItems())
	for i, want := range items {
		got, err := p.itemAt(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestPageAddItemFailsWhenFull(t *testing.T) {
	p := newTestPage(t, 32)
	filled := 0
	for p.addItem([]byte("0123456789")) {
		filled++
	}
	require.Greater(t, filled, 0)
	require.Less(t, p.freeSpace(), itemIDSize+10)
}

func TestPageClearKeepsFlagsDropsItems(t *testing.T) {
	p := newTestPage(t, 256)
	p.setFlags(flagMetaPage)
	require.True(t, p.addItem([]byte("x")))
	p.clear()
	require.Equal(t, 0, p.numItems())
	require.True(t, p.isMeta())
}

func TestItemAtOutOfRange(t *testing.T) {
	p := newTestPage(t, 64)
	_, err := p.itemAt(0)
	require.Error(t, err)
}

func TestEncodeDecodeTupleRoundTrip(t *testing.T) {
	tup := Tuple{Key: IntKey(-7), TID: MakeTID(42, 5)}
	got := decodeTuple(encodeTuple(tup))
	require.Equal(t, tup.Key, got.Key)
	require.Equal(t, tup.TID, got.TID)
}
