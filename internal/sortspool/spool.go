// Package sortspool is the external sort bridge: it spools (key, value)
// pairs to a temporary bbolt database and hands them back out in sorted
// key order. This stands in for the external tuple-sort utility a hosting
// database would normally supply for a bulk load; here it is a small
// self-contained dependency instead of an assumed host service, reusing
// bbolt's own B+tree ordering instead of hand-rolling a sort.
//
// Ordering is by raw byte comparison of the key, matching bbolt's own
// b-tree key order. Callers must therefore use an order-preserving byte
// encoding of their domain key (cola.IntKey and cola.CompareBytes both
// qualify); a comparator that disagrees with byte order will spool
// correctly but iterate out of order.
package sortspool

import (
	"encoding/binary"
	"os"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("spool")

// Comparator documents (but does not enforce) the ordering callers commit
// to when they spool keys here: it must agree with plain byte comparison.
type Comparator func(a, b []byte) int

// Spool is one spool-then-sort session backed by its own temporary file.
type Spool struct {
	db   *bbolt.DB
	path string
	seq  uint64
}

// Open creates a fresh temporary bbolt database under dir. cmp is not
// stored or called; the actual sort order is always plain byte order, per
// the package doc.
func Open(dir string, cmp Comparator) (*Spool, error) {
	f, err := os.CreateTemp(dir, "cola-sort-*.db")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	f.Close()

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}
	return &Spool{db: db, path: path}, nil
}

// Add spools one (key, value) pair. Duplicate keys are preserved in
// insertion order: the bucket key is key plus an ascending sequence
// number, so same-key records never collide and iterate FIFO.
func (s *Spool) Add(key, value []byte) error {
	s.seq++
	bucketKey := make([]byte, len(key)+8)
	copy(bucketKey, key)
	binary.BigEndian.PutUint64(bucketKey[len(key):], s.seq)

	rec := make([]byte, 2+len(key)+len(value))
	binary.BigEndian.PutUint16(rec[0:2], uint16(len(key)))
	copy(rec[2:], key)
	copy(rec[2+len(key):], value)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(bucketKey, rec)
	})
}

// Sorted opens a read-only cursor over every spooled record in key order.
// The returned Iterator must be closed.
func (s *Spool) Sorted() (*Iterator, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &Iterator{tx: tx, c: tx.Bucket(bucketName).Cursor()}, nil
}

// Close discards the spool and removes its backing file.
func (s *Spool) Close() error {
	err := s.db.Close()
	os.Remove(s.path)
	return err
}

// Iterator walks a Spool's records in sorted key order.
type Iterator struct {
	tx      *bbolt.Tx
	c       *bbolt.Cursor
	key     []byte
	value   []byte
	started bool
}

// Next advances the iterator and reports whether a record was found.
func (it *Iterator) Next() bool {
	var k, v []byte
	if !it.started {
		k, v = it.c.First()
		it.started = true
	} else {
		k, v = it.c.Next()
	}
	if k == nil {
		return false
	}
	klen := binary.BigEndian.Uint16(v[0:2])
	it.key = append([]byte(nil), v[2:2+klen]...)
	it.value = append([]byte(nil), v[2+klen:]...)
	return true
}

// Item returns the current record. Valid only after a Next that returned
// true.
func (it *Iterator) Item() (key, value []byte) { return it.key, it.value }

// Err always returns nil; Iterator has no deferred error state, boltdb
// cursor iteration cannot fail mid-walk.
func (it *Iterator) Err() error { return nil }

// Close releases the iterator's read transaction.
func (it *Iterator) Close() error { return it.tx.Rollback() }
