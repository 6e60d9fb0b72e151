package cola

import "encoding/binary"

// Page layout: a 4-byte header (Lower/Upper bounds of the item-id array),
// an item-id array growing forward from the header, tuple bytes packed
// backward from the trailer, and a small opaque trailer carrying page
// flags.
const (
	pageHeaderSize = 4 // Lower uint16, Upper uint16
	itemIDSize     = 4 // offset uint16, length uint16
	trailerSize    = 4 // Flags uint16, reserved uint16
)

type pageFlags uint16

const flagMetaPage pageFlags = 1 << 0

// page is a thin, stateless view over a page-sized byte buffer owned by the
// page store. It never itself pins or latches anything; callers hold the
// buffer's latch for the duration of every page method call.
type page struct {
	buf []byte
}

func newPage(buf []byte) page { return page{buf: buf} }

func (p page) lower() uint16      { return binary.LittleEndian.Uint16(p.buf[0:2]) }
func (p page) setLower(v uint16)  { binary.LittleEndian.PutUint16(p.buf[0:2], v) }
func (p page) upper() uint16      { return binary.LittleEndian.Uint16(p.buf[2:4]) }
func (p page) setUpper(v uint16)  { binary.LittleEndian.PutUint16(p.buf[2:4], v) }
func (p page) trailerOff() int    { return len(p.buf) - trailerSize }
func (p page) flags() pageFlags   { return pageFlags(binary.LittleEndian.Uint16(p.buf[p.trailerOff():])) }
func (p page) setFlags(f pageFlags) {
	binary.LittleEndian.PutUint16(p.buf[p.trailerOff():], uint16(f))
}

// init zeroes the page and sets up an empty item array.
func (p page) init(flags pageFlags) {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.setLower(pageHeaderSize)
	p.setUpper(uint16(p.trailerOff()))
	p.setFlags(flags)
}

func (p page) isMeta() bool { return p.flags()&flagMetaPage != 0 }

// numItems returns the number of items currently stored on the page.
func (p page) numItems() int {
	return (int(p.lower()) - pageHeaderSize) / itemIDSize
}

func (p page) itemIDOff(i int) int { return pageHeaderSize + i*itemIDSize }

// itemAt returns the raw bytes of the i'th item (0-based).
func (p page) itemAt(i int) ([]byte, error) {
	if i < 0 || i >= p.numItems() {
		return nil, geometryViolation("item %d out of range (numItems=%d)", i, p.numItems())
	}
	idOff := p.itemIDOff(i)
	off := binary.LittleEndian.Uint16(p.buf[idOff : idOff+2])
	ln := binary.LittleEndian.Uint16(p.buf[idOff+2 : idOff+4])
	return p.buf[off : off+ln], nil
}

func (p page) freeSpace() int {
	return int(p.upper()) - int(p.lower())
}

// addItem appends data as a new item, growing the item-id array forward and
// the data region backward. Returns false if there isn't enough free space;
// callers decide what "enough" means (the Insert Engine reserves headroom
// for RLPs on level-0 pages).
func (p page) addItem(data []byte) bool {
	if p.freeSpace() < itemIDSize+len(data) {
		return false
	}
	newUpper := p.upper() - uint16(len(data))
	copy(p.buf[newUpper:], data)

	idOff := int(p.lower())
	binary.LittleEndian.PutUint16(p.buf[idOff:idOff+2], newUpper)
	binary.LittleEndian.PutUint16(p.buf[idOff+2:idOff+4], uint16(len(data)))

	p.setUpper(newUpper)
	p.setLower(p.lower() + itemIDSize)
	return true
}

// clear empties the item array but keeps the page's flags, for drained
// source pages whose block numbers must stay stable.
func (p page) clear() {
	flags := p.flags()
	p.init(flags)
}

// rlpReserveBytes is the headroom the Insert Engine reserves on every
// level-0 page for two future RLPs, so a level-0 array can never become
// unable to receive RLPs during a later merge. Sized generously above an
// encoded RLP with an 8-byte integer key (2-byte key length + 8-byte key +
// 6-byte TID + 4-byte item-id slot = 20 bytes) rather than computing an
// exact figure per key type.
const rlpReserveBytes = 2 * 40

// encodeTuple serializes a Tuple to its on-page item representation:
// a 2-byte key length, the key bytes, then the TID (4-byte block, 2-byte
// offset).
func encodeTuple(t Tuple) []byte {
	buf := make([]byte, 2+len(t.Key)+6)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(t.Key)))
	copy(buf[2:], t.Key)
	off := 2 + len(t.Key)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(t.TID.Block))
	binary.LittleEndian.PutUint16(buf[off+4:off+6], t.TID.Offset)
	return buf
}

// decodeTuple reverses encodeTuple.
func decodeTuple(b []byte) Tuple {
	klen := binary.LittleEndian.Uint16(b[0:2])
	key := append([]byte(nil), b[2:2+klen]...)
	off := 2 + int(klen)
	block := pgno(binary.LittleEndian.Uint32(b[off : off+4]))
	offset := binary.LittleEndian.Uint16(b[off+4 : off+6])
	return Tuple{Key: key, TID: TID{Block: block, Offset: offset}}
}
