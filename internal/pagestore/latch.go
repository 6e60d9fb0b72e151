package pagestore

import (
	"sync"
	"unsafe"
)

// ptrOf converts a *sync.RWMutex to the unsafe.Pointer value fastmap.Uint32Map
// stores, so the latch registry can reuse the same fast integer-keyed map a
// reader-slot lookup table needs.
func ptrOf(l *sync.RWMutex) unsafe.Pointer {
	return unsafe.Pointer(l)
}
