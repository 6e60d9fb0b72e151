package pagestore

// backing is the per-platform file representation behind a Store. On unix
// it is a real mmap of the page file (backing_unix.go); elsewhere it falls
// back to an in-memory buffer synced to the file with plain reads/writes
// (backing_other.go), since Windows-specific CreateFileMapping handling is
// outside what this engine's geometry and merge logic need to demonstrate.
type backing interface {
	// Bytes returns the full mapped region. Growing the backing via Grow
	// invalidates any slice previously returned by Bytes.
	Bytes() []byte
	// Size returns the current mapped size in bytes.
	Size() int64
	// Grow extends the backing to at least n bytes.
	Grow(n int64) error
	// Sync flushes to stable storage.
	Sync() error
	// Close releases the mapping and the underlying file handle.
	Close() error
}
