package btree

import (
	"encoding/binary"

	"bptreefile/internal/storage/page"
)

// leafEntrySize is the fixed 12-byte wire size of a leaf entry: a
// 4-byte key followed by a RecordID{PageNo, SlotNo int32} — bit-exact
// per spec §6.
const leafEntrySize = 4 + 4 + 4

// leafEntry is the decoded form of one leaf record.
type leafEntry struct {
	Key int32
	RID page.RecordID
}

func marshalLeafEntry(e leafEntry) []byte {
	b := make([]byte, leafEntrySize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(e.Key))
	binary.LittleEndian.PutUint32(b[4:8], uint32(e.RID.PageNo))
	binary.LittleEndian.PutUint32(b[8:12], uint32(e.RID.SlotNo))
	return b
}

func unmarshalLeafEntry(b []byte) leafEntry {
	return leafEntry{
		Key: int32(binary.LittleEndian.Uint32(b[0:4])),
		RID: page.RecordID{
			PageNo: int32(binary.LittleEndian.Uint32(b[4:8])),
			SlotNo: int32(binary.LittleEndian.Uint32(b[8:12])),
		},
	}
}

// leafNode is the tagged view of a page.Slotted holding (key, rid)
// entries plus sibling links, per §4.2.
type leafNode struct {
	p *page.Slotted
}

func asLeaf(p *page.Slotted) *leafNode { return &leafNode{p: p} }

func initLeaf(buf []byte, id page.PageID) *leafNode {
	return &leafNode{p: page.Init(buf, id, page.TypeLeaf)}
}

func (n *leafNode) PageID() page.PageID { return n.p.PageID() }
func (n *leafNode) Prev() page.PageID   { return n.p.Prev() }
func (n *leafNode) SetPrev(id page.PageID) { n.p.SetPrev(id) }
func (n *leafNode) Next() page.PageID   { return n.p.Next() }
func (n *leafNode) SetNext(id page.PageID) { n.p.SetNext(id) }
func (n *leafNode) NumEntries() int     { return n.p.NumSlots() }
func (n *leafNode) AvailableSpace() int { return n.p.AvailableSpace() }
func (n *leafNode) HasRoomFor(rid page.RecordID) bool {
	return n.p.AvailableSpace() >= leafEntrySize
}

// IsAtLeastHalfFull implements the half-full fill policy of invariant 5.
func (n *leafNode) IsAtLeastHalfFull() bool {
	return n.p.AvailableSpace() <= n.p.DataCapacity()/2
}

func (n *leafNode) entryAt(i int) leafEntry {
	rec, err := n.p.GetRecord(i)
	if err != nil {
		panic(err) // invariant: caller always checks bounds first
	}
	return unmarshalLeafEntry(rec)
}

// Insert performs the sorted-page insert of §4.2.
func (n *leafNode) Insert(key int32, rid page.RecordID) error {
	_, err := n.p.InsertRecord(marshalLeafEntry(leafEntry{Key: key, RID: rid}))
	if err != nil {
		return newError("leaf.Insert", KindNoSpace, err)
	}
	return nil
}

// Delete scans from the highest slot downward for the entry matching
// both key and rid exactly, as required so duplicate keys behave
// correctly.
func (n *leafNode) Delete(key int32, rid page.RecordID) error {
	for i := n.p.NumSlots() - 1; i >= 0; i-- {
		e := n.entryAt(i)
		if e.Key == key && e.RID == rid {
			return n.p.DeleteRecordAt(i)
		}
	}
	return newError("leaf.Delete", KindNotFound, errNoMatchingEntry)
}

// GetFirst returns the lowest-keyed entry.
func (n *leafNode) GetFirst() (leafEntry, bool) {
	if n.p.NumSlots() == 0 {
		return leafEntry{}, false
	}
	return n.entryAt(0), true
}

// GetLast returns the highest-keyed entry.
func (n *leafNode) GetLast() (leafEntry, bool) {
	last := n.p.NumSlots() - 1
	if last < 0 {
		return leafEntry{}, false
	}
	return n.entryAt(last), true
}

// GetAt returns the i-th entry in ascending order.
func (n *leafNode) GetAt(i int) (leafEntry, bool) {
	if i < 0 || i >= n.p.NumSlots() {
		return leafEntry{}, false
	}
	return n.entryAt(i), true
}

// DeleteFirst removes the lowest-keyed entry.
func (n *leafNode) DeleteFirst() { n.p.DeleteRecordAt(0) }

// DeleteLast removes the highest-keyed entry.
func (n *leafNode) DeleteLast() { n.p.DeleteRecordAt(n.p.NumSlots() - 1) }

// entries returns every entry in ascending order.
func (n *leafNode) entries() []leafEntry {
	out := make([]leafEntry, n.p.NumSlots())
	for i := range out {
		out[i] = n.entryAt(i)
	}
	return out
}

func (n *leafNode) Clear() { n.p.Clear() }
