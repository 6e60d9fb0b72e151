package cola

import (
	"github.com/cockroachdb/errors"
)

// ErrUnsupported is returned by every access-method entry point the COLA
// engine does not implement: reloptions, bulk delete, vacuum, mark/restore,
// cost estimation. Configuration errors are always this
// sentinel, wrapped with the offending operation's name.
var ErrUnsupported = errors.New("cola: operation not supported")

// ErrCorruptMeta is returned when the meta page's magic word does not match
// metaMagic on open.
var ErrCorruptMeta = errors.New("cola: corrupt meta page")

// unsupportedf wraps ErrUnsupported with the name of the entry point that was
// called, so callers see which configuration error they hit.
func unsupportedf(op string) error {
	return errors.Wrapf(ErrUnsupported, "cola: %s", op)
}

// geometryViolation reports a request that should be unreachable if the
// engine is correct: a cell index beyond a level's capacity, or a merge
// state the algorithm assumed could not occur. These are bugs, not caller
// mistakes, so they use AssertionFailedf rather than a plain error.
func geometryViolation(format string, args ...interface{}) error {
	return errors.AssertionFailedf("cola: geometry violation: "+format, args...)
}

// capacityExhausted reports a destination array running out of cells during
// a merge, or findArray returning the invalid sentinel where the caller
// assumed a free slot existed. This always signals a bug in the merge
// sizing, never a legitimate out-of-space condition a caller could recover
// from.
func capacityExhausted(format string, args ...interface{}) error {
	return errors.AssertionFailedf("cola: capacity exhausted: "+format, args...)
}

// corruptMeta wraps ErrCorruptMeta with the magic word actually found.
func corruptMeta(got uint32) error {
	return errors.Wrapf(ErrCorruptMeta, "got magic %#x, want %#x", got, metaMagic)
}

// errLevelUnsafe is the expected, non-error outcome of attempting a merge
// whose destination level already has two arrays full or merging: the
// caller must cascade a merge further down first. It is never returned to
// an Index method's caller; Insert unwraps it internally.
var errLevelUnsafe = errors.New("cola: destination level not safe for merge")

// ErrNotIndexed is Insert's recoverable retry-exhausted outcome: level 0
// still has no slot for the new tuple even after a full merge cascade.
// The index itself is left consistent; the row is simply not indexed.
// This is distinct from capacityExhausted, which always signals a bug in
// the merge sizing rather than a legitimate, recoverable retry failure.
var ErrNotIndexed = errors.New("cola: insert not indexed after merge cascade")
