//go:build !unix

package pagestore

import (
	"os"

	"github.com/cockroachdb/errors"
)

// heapBacking is the non-unix fallback: the page file lives in a plain Go
// byte slice, synced to disk with WriteAt. It trades mmap's zero-copy
// sharing for portability; the geometry, merge, and scan logic above this
// layer are identical either way.
type heapBacking struct {
	f    *os.File
	data []byte
}

func openBacking(path string) (backing, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	data := make([]byte, fi.Size())
	if _, err := f.ReadAt(data, 0); err != nil && fi.Size() > 0 {
		f.Close()
		return nil, err
	}
	return &heapBacking{f: f, data: data}, nil
}

func (b *heapBacking) Bytes() []byte { return b.data }
func (b *heapBacking) Size() int64   { return int64(len(b.data)) }

func (b *heapBacking) Grow(n int64) error {
	if int64(len(b.data)) >= n {
		return nil
	}
	grown := make([]byte, n)
	copy(grown, b.data)
	b.data = grown
	return nil
}

func (b *heapBacking) Sync() error {
	if _, err := b.f.WriteAt(b.data, 0); err != nil {
		return errors.Wrap(err, "pagestore: write")
	}
	return b.f.Sync()
}

func (b *heapBacking) Close() error {
	if err := b.Sync(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}
