package cola

// Layout constants fixed by the on-disk format.
const (
	// MaxHeight is the number of levels an index may grow to, 0..MaxHeight-1.
	MaxHeight = 20

	// ArraysPerLevel is the slot count at every level except level 0.
	ArraysPerLevel = 3

	// Level0Arrays is the slot count at level 0 (arrays 0 and 1 only).
	Level0Arrays = 2

	// RLPOffset is the sentinel item offset that marks a tuple as a real
	// look-ahead pointer rather than user data. Offset 0 never occurs as a
	// legitimate item position (positions are 1-based), so it is safe to
	// repurpose as the RLP tag.
	RLPOffset = 0

	// metaMagic is the fixed 24-bit sentinel identifying a COLA meta page.
	metaMagic uint32 = 0x011BED

	// metaBlock is the block number of the distinguished meta page.
	metaBlock pgno = 0
)

// DefaultPageSize is the page size used unless WithPageSize overrides it.
const DefaultPageSize = 8192
