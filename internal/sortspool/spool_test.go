package sortspool

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func byteCompare(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

func TestSpoolSortsByKey(t *testing.T) {
	s, err := Open(t.TempDir(), byteCompare)
	require.NoError(t, err)
	defer s.Close()

	in := []string{"banana", "apple", "cherry", "date"}
	for _, k := range in {
		require.NoError(t, s.Add([]byte(k), []byte("v-"+k)))
	}

	it, err := s.Sorted()
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for it.Next() {
		k, v := it.Item()
		got = append(got, string(k))
		require.Equal(t, "v-"+string(k), string(v))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"apple", "banana", "cherry", "date"}, got)
}

func TestSpoolPreservesDuplicateKeyOrder(t *testing.T) {
	s, err := Open(t.TempDir(), byteCompare)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add([]byte("k"), []byte("first")))
	require.NoError(t, s.Add([]byte("k"), []byte("second")))
	require.NoError(t, s.Add([]byte("k"), []byte("third")))

	it, err := s.Sorted()
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for it.Next() {
		_, v := it.Item()
		got = append(got, string(v))
	}
	require.Equal(t, []string{"first", "second", "third"}, got)
}

func TestSpoolCloseRemovesBackingFile(t *testing.T) {
	s, err := Open(t.TempDir(), byteCompare)
	require.NoError(t, err)
	path := s.path
	require.NoError(t, s.Close())

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
