//go:build unix

package pagestore

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// writerLock is the advisory file lock that enforces the single-writer side
// of a single-writer/many-reader model across processes, the way a
// reference lock file coordinates readers and the one writer. Unlike a
// full reader-slot table, this only needs to bar a second concurrent
// writer — readers never take this lock.
type writerLock struct {
	f *os.File
}

func acquireWriterLock(path string) (*writerLock, error) {
	f, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "pagestore: another writer already holds the lock")
	}
	return &writerLock{f: f}, nil
}

func (w *writerLock) release() {
	unix.Flock(int(w.f.Fd()), unix.LOCK_UN)
	w.f.Close()
}
