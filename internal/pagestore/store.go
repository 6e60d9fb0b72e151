// Package pagestore is the Page Store Adapter: it wraps a
// single page-addressable file, handing out pinned, latched, fixed-size
// page buffers by block number and extending the file by one page on
// request. It knows nothing about the COLA array geometry or tuple format
// layered on top of it — those live in the root package.
package pagestore

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/colaidx/cola/internal/fastmap"
)

// Pgno is a page (block) number, exported so the root package can convert
// its own pgno type to and from it at the store boundary.
type Pgno uint32

// NewPage, passed to Get, requests a freshly allocated page at the end of
// the file rather than an existing block.
const NewPage Pgno = 0xFFFFFFFF

// Buffer is a pinned, latched view of one page. Holding a *Buffer implies
// holding its latch: shared for a buffer obtained for reading, exclusive for
// one obtained for writing. Release must be called exactly once.
type Buffer struct {
	store     *Store
	No        Pgno
	Data      []byte
	exclusive bool
	dirty     bool
}

// MarkDirty flags the buffer for a flush on the next Sync. Only valid on an
// exclusively-latched buffer.
func (b *Buffer) MarkDirty() {
	if !b.exclusive {
		panic("pagestore: MarkDirty on a shared-latched buffer")
	}
	b.dirty = true
}

// Release unlatches and unpins the buffer. The buffer must not be used
// again afterward.
func (b *Buffer) Release() {
	b.store.release(b)
}

// Store is the page file: a backing byte region sliced into fixed-size
// pages, plus a registry of per-page latches. Readers take
// a shared latch; writers take an exclusive one. At most one writer latch
// is outstanding per page at a time, matching a single-writer/many-reader
// model (cross-page latch coupling during a merge is the caller's
// responsibility: this store hands out one buffer at a time).
type Store struct {
	mu         sync.RWMutex // guards backing/pageSize/numPages bookkeeping
	back       backing
	pageSize   uint32
	latches    fastmap.Uint32Map
	latchesMu  sync.Mutex
	writerLock *writerLock // advisory single-writer guard across processes
}

// Open opens or creates the page file at path, sized in pageSize-byte
// pages, and takes the single-writer advisory lock. pageSize must match
// across opens of the same file; Open does not itself validate this (the
// meta page's magic check is the authority).
func Open(path string, pageSize uint32) (*Store, error) {
	back, err := openBacking(path)
	if err != nil {
		return nil, errors.Wrapf(err, "pagestore: open %s", path)
	}
	wl, err := acquireWriterLock(path)
	if err != nil {
		back.Close()
		return nil, errors.Wrapf(err, "pagestore: lock %s", path)
	}
	return &Store{back: back, pageSize: pageSize, writerLock: wl}, nil
}

// Close flushes and closes the page file, releasing the writer lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.back.Sync()
	if cerr := s.back.Close(); err == nil {
		err = cerr
	}
	if s.writerLock != nil {
		s.writerLock.release()
	}
	return err
}

// PageCount returns the number of whole pages currently in the file.
func (s *Store) PageCount() Pgno {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Pgno(s.back.Size() / int64(s.pageSize))
}

// Get returns a pinned, latched buffer for block no, or for a newly
// allocated page if no == NewPage. exclusive selects a write latch (shared
// otherwise). A freshly allocated page arrives zero-filled; an existing
// page arrives with whatever bytes are currently on disk.
func (s *Store) Get(no Pgno, exclusive bool) (*Buffer, error) {
	if no == NewPage {
		return s.getNew(exclusive)
	}

	latch := s.latchFor(no)
	if exclusive {
		latch.Lock()
	} else {
		latch.RLock()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	offset := int64(no) * int64(s.pageSize)
	if offset+int64(s.pageSize) > s.back.Size() {
		if exclusive {
			latch.Unlock()
		} else {
			latch.RUnlock()
		}
		return nil, errors.Newf("pagestore: block %d beyond end of file", no)
	}
	data := s.back.Bytes()[offset : offset+int64(s.pageSize)]
	return &Buffer{store: s, No: no, Data: data, exclusive: exclusive}, nil
}

func (s *Store) getNew(exclusive bool) (*Buffer, error) {
	s.mu.Lock()
	size := s.back.Size()
	no := Pgno(size / int64(s.pageSize))
	if err := s.back.Grow(size + int64(s.pageSize)); err != nil {
		s.mu.Unlock()
		return nil, errors.Wrap(err, "pagestore: extend file")
	}
	offset := int64(no) * int64(s.pageSize)
	data := s.back.Bytes()[offset : offset+int64(s.pageSize)]
	s.mu.Unlock()

	latch := s.latchFor(no)
	if exclusive {
		latch.Lock()
	} else {
		latch.RLock()
	}
	return &Buffer{store: s, No: no, Data: data, exclusive: exclusive}, nil
}

func (s *Store) release(b *Buffer) {
	latch := s.latchFor(b.No)
	if b.exclusive {
		latch.Unlock()
	} else {
		latch.RUnlock()
	}
}

// Sync flushes dirty pages to disk.
func (s *Store) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.back.Sync()
}

func (s *Store) latchFor(no Pgno) *sync.RWMutex {
	s.latchesMu.Lock()
	defer s.latchesMu.Unlock()
	if p := s.latches.Get(uint32(no)); p != nil {
		return (*sync.RWMutex)(p)
	}
	l := &sync.RWMutex{}
	s.latches.Set(uint32(no), ptrOf(l))
	return l
}
