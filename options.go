package cola

import (
	"io"
	"log/slog"
	"os"
)

type config struct {
	pageSize   uint32
	comparator Comparator
	logger     *slog.Logger
	sortDir    string
}

func defaultConfig() config {
	return config{
		pageSize:   DefaultPageSize,
		comparator: CompareBytes,
		logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
		sortDir:    os.TempDir(),
	}
}

// Option configures an Index at Open time.
type Option func(*config)

// WithPageSize overrides the on-disk page size. It must match across every
// Open of the same file; mismatches surface as corrupt data rather than a
// clean error, since nothing on disk records the page size that was used
// to write it.
func WithPageSize(n uint32) Option {
	return func(c *config) { c.pageSize = n }
}

// WithComparator overrides the key ordering. It must be the same
// comparator every time a given file is opened.
func WithComparator(cmp Comparator) Option {
	return func(c *config) { c.comparator = cmp }
}

// WithLogger overrides where retry-budget warnings and similar diagnostics
// are written. The default logs to stderr.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithSilentLogger discards all log output.
func WithSilentLogger() Option {
	return func(c *config) { c.logger = slog.New(slog.NewTextHandler(io.Discard, nil)) }
}

// WithSortDir overrides the directory Build's external sort spool uses for
// its temporary database.
func WithSortDir(dir string) Option {
	return func(c *config) { c.sortDir = dir }
}
