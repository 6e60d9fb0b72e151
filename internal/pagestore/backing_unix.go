//go:build unix

package pagestore

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// mmapBacking memory-maps the page file via unix.Mmap. Growing the file
// requires unmapping, truncating, and remapping, since Go gives no portable
// mremap.
type mmapBacking struct {
	f    *os.File
	data []byte
}

func openBacking(path string) (backing, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	b := &mmapBacking{f: f}
	if err := b.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

func (b *mmapBacking) remap() error {
	fi, err := b.f.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()
	if b.data != nil {
		if err := unix.Munmap(b.data); err != nil {
			return errors.Wrap(err, "pagestore: munmap")
		}
		b.data = nil
	}
	if size == 0 {
		return nil
	}
	data, err := unix.Mmap(int(b.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrap(err, "pagestore: mmap")
	}
	b.data = data
	return nil
}

func (b *mmapBacking) Bytes() []byte { return b.data }

func (b *mmapBacking) Size() int64 {
	return int64(len(b.data))
}

func (b *mmapBacking) Grow(n int64) error {
	if err := b.f.Truncate(n); err != nil {
		return errors.Wrap(err, "pagestore: truncate")
	}
	return b.remap()
}

func (b *mmapBacking) Sync() error {
	if b.data == nil {
		return nil
	}
	if err := unix.Msync(b.data, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "pagestore: msync")
	}
	return nil
}

func (b *mmapBacking) Close() error {
	if b.data != nil {
		if err := unix.Munmap(b.data); err != nil {
			return errors.Wrap(err, "pagestore: munmap")
		}
		b.data = nil
	}
	return b.f.Close()
}
