package cola

import (
	"encoding/binary"
	"sync"

	"github.com/colaidx/cola/internal/pagestore"
)

// Layout of the meta page's payload (the region before its trailer): a
// 4-byte magic word followed by the row-major MaxHeight x ArraysPerLevel
// state matrix, one uint16 per slot.
const (
	magicOff  = 0
	matrixOff = 4
)

func matrixSlotOff(level, arrnum int) int {
	return matrixOff + (level*ArraysPerLevel+arrnum)*2
}

// initMetaPage formats a freshly allocated block 0: zeroes it, tags it
// META, writes the magic word, and seeds every slot's level/arrnum tags.
func initMetaPage(buf *pagestore.Buffer) matrix {
	p := newPage(buf.Data)
	p.init(flagMetaPage)
	binary.LittleEndian.PutUint32(buf.Data[magicOff:magicOff+4], metaMagic)
	m := newMatrix()
	writeMatrixBytes(buf.Data, m)
	buf.MarkDirty()
	return m
}

func writeMatrixBytes(data []byte, m matrix) {
	for level := 0; level < MaxHeight; level++ {
		for a := 0; a < ArraysPerLevel; a++ {
			off := matrixSlotOff(level, a)
			binary.LittleEndian.PutUint16(data[off:off+2], uint16(m[level][a]))
		}
	}
}

func readMatrixBytes(data []byte) matrix {
	var m matrix
	for level := 0; level < MaxHeight; level++ {
		for a := 0; a < ArraysPerLevel; a++ {
			off := matrixSlotOff(level, a)
			m[level][a] = stateWord(binary.LittleEndian.Uint16(data[off : off+2]))
		}
	}
	return m
}

func checkMagic(data []byte) error {
	got := binary.LittleEndian.Uint32(data[magicOff : magicOff+4])
	if got != metaMagic {
		return corruptMeta(got)
	}
	return nil
}

// metaState is the in-memory handle onto the array-state matrix: every
// mutation goes through writeThrough, which publishes the new matrix to the
// meta page inside a critical section before updating the in-memory
// snapshot readers see. There is never any other path to the matrix;
// callers only ever see it via snapshot (a copy) or via writeThrough.
type metaState struct {
	mu sync.RWMutex
	m  matrix
}

func loadMetaState(store *pagestore.Store) (*metaState, error) {
	buf, err := store.Get(pagestore.Pgno(metaBlock), false)
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	if err := checkMagic(buf.Data); err != nil {
		return nil, err
	}
	return &metaState{m: readMatrixBytes(buf.Data)}, nil
}

// snapshot returns a copy of the matrix as of the last writeThrough.
func (ms *metaState) snapshot() matrix {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.m
}

// writeThrough read-modify-writes the matrix: it takes the critical
// section, lets fn mutate a copy, persists that copy to the meta page, and
// only then publishes it as the new snapshot.
func (ms *metaState) writeThrough(store *pagestore.Store, fn func(m *matrix)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	next := ms.m
	fn(&next)

	buf, err := store.Get(pagestore.Pgno(metaBlock), true)
	if err != nil {
		return err
	}
	defer buf.Release()
	if err := checkMagic(buf.Data); err != nil {
		return err
	}
	writeMatrixBytes(buf.Data, next)
	buf.MarkDirty()
	ms.m = next
	return nil
}
