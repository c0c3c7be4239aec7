// Package page implements the fixed-size slotted/sorted page format that
// backs both leaf and index nodes of the B+ tree index.
//
// A page is a flat byte buffer with three regions, in address order:
// a fixed header, a slot directory that grows from the low end, and a
// data area that grows from the high end. Records are ordered ascending
// by the first four bytes of their payload, interpreted as a signed
// big-endian-free (little-endian) int32 key.
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PageID identifies a page within a tree file. InvalidPageID is the
// reserved "no page" sentinel used by sibling links, leftLink, and the
// header's root pointer.
type PageID int32

// InvalidPageID denotes "none" wherever a PageID is optional.
const InvalidPageID PageID = -1

// RecordID identifies a record in a separate heap file: a page number
// plus a slot number. The B+ tree only ever stores and compares these;
// it never interprets them.
type RecordID struct {
	PageNo int32
	SlotNo int32
}

// NodeType tags whether a page holds index entries or leaf entries.
type NodeType int32

const (
	TypeIndex NodeType = 0
	TypeLeaf  NodeType = 1
)

func (t NodeType) String() string {
	switch t {
	case TypeIndex:
		return "index"
	case TypeLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("NodeType(%d)", int32(t))
	}
}

// Fixed header layout. Offsets are chosen for straightforward
// little-endian marshaling with encoding/binary; the specific byte
// offsets are an implementation detail, unlike the leaf/index entry
// layouts which are bit-exact (see package btree).
const (
	offID        = 0
	offPrev      = 4
	offNext      = 8
	offType      = 12
	offNumSlots  = 16
	offFillPtr   = 18
	offFreeSpace = 20
	// HeaderSize is the size in bytes of the fixed page header.
	HeaderSize = 24

	// SlotSize is the size in bytes of one {offset, length} slot
	// directory entry.
	SlotSize = 4

	// emptySlotLength is the length that marks a slot as unused. The
	// directory is kept compact (DeleteRecordAt shifts later slots down
	// instead of leaving a hole), so no operation writes this sentinel.
	emptySlotLength = -1
)

var (
	// ErrNoSpace is returned by InsertRecord when the page cannot hold
	// the record.
	ErrNoSpace = errors.New("page: no space for record")
	// ErrSlotOutOfRange is returned when a slot index is invalid.
	ErrSlotOutOfRange = errors.New("page: slot index out of range")
)

// Slotted wraps a fixed-size byte buffer as a slotted sorted page. The
// buffer is owned by the caller (typically a pinned frame from the
// buffer pool); Slotted never allocates or retains its own copy.
type Slotted struct {
	buf []byte
}

// Init formats a freshly allocated buffer as an empty page of the given
// id and type, with both sibling links set to InvalidPageID.
func Init(buf []byte, id PageID, typ NodeType) *Slotted {
	s := &Slotted{buf: buf}
	s.putPageID(offID, id)
	s.putPageID(offPrev, InvalidPageID)
	s.putPageID(offNext, InvalidPageID)
	binary.LittleEndian.PutUint32(buf[offType:], uint32(typ))
	binary.LittleEndian.PutUint16(buf[offNumSlots:], 0)
	binary.LittleEndian.PutUint16(buf[offFillPtr:], uint16(len(buf)))
	s.updateFreeSpace()
	return s
}

// Load wraps an existing, already-formatted buffer.
func Load(buf []byte) *Slotted {
	return &Slotted{buf: buf}
}

// Bytes returns the underlying buffer.
func (s *Slotted) Bytes() []byte { return s.buf }

func (s *Slotted) getPageID(off int) PageID {
	return PageID(int32(binary.LittleEndian.Uint32(s.buf[off:])))
}

func (s *Slotted) putPageID(off int, id PageID) {
	binary.LittleEndian.PutUint32(s.buf[off:], uint32(int32(id)))
}

// PageID returns this page's own id.
func (s *Slotted) PageID() PageID { return s.getPageID(offID) }

// SetPageID stamps this page's own id. Init already stamps the id, so
// nothing in this module calls it.
func (s *Slotted) SetPageID(id PageID) { s.putPageID(offID, id) }

// Prev returns the page's prev sibling link (leaf: left sibling;
// index: leftLink).
func (s *Slotted) Prev() PageID { return s.getPageID(offPrev) }

// SetPrev sets the prev sibling link.
func (s *Slotted) SetPrev(id PageID) { s.putPageID(offPrev, id) }

// Next returns the page's next sibling link (leaves only).
func (s *Slotted) Next() PageID { return s.getPageID(offNext) }

// SetNext sets the next sibling link.
func (s *Slotted) SetNext(id PageID) { s.putPageID(offNext, id) }

// Type returns whether this page is an index or leaf node.
func (s *Slotted) Type() NodeType {
	return NodeType(int32(binary.LittleEndian.Uint32(s.buf[offType:])))
}

// NumSlots returns the number of live records on the page.
func (s *Slotted) NumSlots() int {
	return int(binary.LittleEndian.Uint16(s.buf[offNumSlots:]))
}

func (s *Slotted) setNumSlots(n int) {
	binary.LittleEndian.PutUint16(s.buf[offNumSlots:], uint16(n))
}

// fillPtr is the lowest occupied offset in the data area; the data area
// spans [fillPtr, len(buf)).
func (s *Slotted) fillPtr() int {
	return int(binary.LittleEndian.Uint16(s.buf[offFillPtr:]))
}

func (s *Slotted) setFillPtr(v int) {
	binary.LittleEndian.PutUint16(s.buf[offFillPtr:], uint16(v))
}

func (s *Slotted) updateFreeSpace() {
	binary.LittleEndian.PutUint16(s.buf[offFreeSpace:], uint16(s.AvailableSpace()))
}

// slotOffset returns the byte offset of slot i's directory entry.
func (s *Slotted) slotOffset(i int) int { return HeaderSize + i*SlotSize }

func (s *Slotted) getSlot(i int) (off, length int) {
	base := s.slotOffset(i)
	off = int(binary.LittleEndian.Uint16(s.buf[base:]))
	length = int(int16(binary.LittleEndian.Uint16(s.buf[base+2:])))
	return
}

func (s *Slotted) putSlot(i, off, length int) {
	base := s.slotOffset(i)
	binary.LittleEndian.PutUint16(s.buf[base:], uint16(off))
	binary.LittleEndian.PutUint16(s.buf[base+2:], uint16(int16(length)))
}

// AvailableSpace is the number of bytes free between the end of the slot
// directory and the start of the data area, minus the cost a new slot
// directory entry would add.
func (s *Slotted) AvailableSpace() int {
	used := HeaderSize + s.NumSlots()*SlotSize
	free := s.fillPtr() - used - SlotSize
	if free < 0 {
		return 0
	}
	return free
}

// DataCapacity is the total space available to slots+data on a freshly
// initialized page; used as the denominator for the half-full test.
func (s *Slotted) DataCapacity() int {
	return len(s.buf) - HeaderSize
}

// IsEmpty reports whether the page holds no records.
func (s *Slotted) IsEmpty() bool { return s.NumSlots() == 0 }

// GetNumOfRecords is an alias of NumSlots under the spec's name.
func (s *Slotted) GetNumOfRecords() int { return s.NumSlots() }

// keyOf reads the first four bytes of a record as a signed int32 key.
func keyOf(rec []byte) int32 {
	return int32(binary.LittleEndian.Uint32(rec[0:4]))
}

// GetRecord returns a view of slot i's record bytes.
func (s *Slotted) GetRecord(i int) ([]byte, error) {
	if i < 0 || i >= s.NumSlots() {
		return nil, ErrSlotOutOfRange
	}
	off, length := s.getSlot(i)
	return s.buf[off : off+length], nil
}

// InsertRecord places rec in the data area and performs the bounded
// insertion-sort of the slot directory described in §4.1: the new slot
// starts at the end of the directory and is swapped leftward while its
// key is less than its left neighbor's, until order is restored. It
// returns the final resting slot index.
func (s *Slotted) InsertRecord(rec []byte) (int, error) {
	if s.AvailableSpace() < len(rec) {
		return 0, ErrNoSpace
	}
	newFill := s.fillPtr() - len(rec)
	copy(s.buf[newFill:newFill+len(rec)], rec)
	s.setFillPtr(newFill)

	n := s.NumSlots()
	s.putSlot(n, newFill, len(rec))
	s.setNumSlots(n + 1)

	i := n
	key := keyOf(rec)
	for i > 0 {
		leftOff, leftLen := s.getSlot(i - 1)
		leftKey := keyOf(s.buf[leftOff : leftOff+leftLen])
		if key >= leftKey {
			break
		}
		s.swapSlots(i, i-1)
		i--
	}
	s.updateFreeSpace()
	return i, nil
}

func (s *Slotted) swapSlots(a, b int) {
	aOff, aLen := s.getSlot(a)
	bOff, bLen := s.getSlot(b)
	s.putSlot(a, bOff, bLen)
	s.putSlot(b, aOff, aLen)
}

// DeleteRecordAt removes the record at slot i, closes the resulting hole
// in the data area, patches the offsets of every slot whose record
// moved, and compacts the slot directory so it stays gap-free.
func (s *Slotted) DeleteRecordAt(i int) error {
	n := s.NumSlots()
	if i < 0 || i >= n {
		return ErrSlotOutOfRange
	}
	off, length := s.getSlot(i)
	fp := s.fillPtr()

	// Shift every record physically below the deleted one (i.e. those
	// with a lower offset, which were inserted more recently) up by
	// length bytes to close the hole, then patch their slot offsets.
	if off > fp {
		copy(s.buf[fp+length:off+length], s.buf[fp:off])
	}
	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		jOff, jLen := s.getSlot(j)
		if jOff < off {
			s.putSlot(j, jOff+length, jLen)
		}
	}
	s.setFillPtr(fp + length)

	// Compact the directory: shift every slot after i down by one.
	for j := i; j < n-1; j++ {
		jOff, jLen := s.getSlot(j + 1)
		s.putSlot(j, jOff, jLen)
	}
	s.setNumSlots(n - 1)
	s.updateFreeSpace()
	return nil
}

// Clear resets the page to empty while preserving its id, sibling
// links, and type. Used when a split drains one side's entries into a
// freshly distributed layout.
func (s *Slotted) Clear() {
	s.setNumSlots(0)
	s.setFillPtr(len(s.buf))
	s.updateFreeSpace()
}
