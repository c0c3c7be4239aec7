package btree

import (
	"encoding/binary"

	"bptreefile/internal/storage/page"
)

// indexEntrySize is the fixed 8-byte wire size of an index entry: a
// 4-byte key followed by a 4-byte child PageID — bit-exact per spec §6.
const indexEntrySize = 4 + 4

type indexEntry struct {
	Key   int32
	Child page.PageID
}

func marshalIndexEntry(e indexEntry) []byte {
	b := make([]byte, indexEntrySize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(e.Key))
	binary.LittleEndian.PutUint32(b[4:8], uint32(int32(e.Child)))
	return b
}

func unmarshalIndexEntry(b []byte) indexEntry {
	return indexEntry{
		Key:   int32(binary.LittleEndian.Uint32(b[0:4])),
		Child: page.PageID(int32(binary.LittleEndian.Uint32(b[4:8]))),
	}
}

// indexNode is the tagged view of a page.Slotted holding (key, childPid)
// entries plus a leftLink carried in the page's prev field, per §4.3.
type indexNode struct {
	p *page.Slotted
}

func asIndex(p *page.Slotted) *indexNode { return &indexNode{p: p} }

func initIndex(buf []byte, id page.PageID, leftLink page.PageID) *indexNode {
	n := &indexNode{p: page.Init(buf, id, page.TypeIndex)}
	n.p.SetPrev(leftLink)
	return n
}

func (n *indexNode) PageID() page.PageID      { return n.p.PageID() }
func (n *indexNode) LeftLink() page.PageID    { return n.p.Prev() }
func (n *indexNode) SetLeftLink(id page.PageID) { n.p.SetPrev(id) }
func (n *indexNode) NumEntries() int          { return n.p.NumSlots() }
func (n *indexNode) AvailableSpace() int      { return n.p.AvailableSpace() }

func (n *indexNode) IsAtLeastHalfFull() bool {
	return n.p.AvailableSpace() <= n.p.DataCapacity()/2
}

func (n *indexNode) entryAt(i int) indexEntry {
	rec, err := n.p.GetRecord(i)
	if err != nil {
		panic(err)
	}
	return unmarshalIndexEntry(rec)
}

func (n *indexNode) Insert(key int32, child page.PageID) error {
	_, err := n.p.InsertRecord(marshalIndexEntry(indexEntry{Key: key, Child: child}))
	if err != nil {
		return newError("index.Insert", KindNoSpace, err)
	}
	return nil
}

// DeleteKey scans from the highest slot downward and removes the first
// entry whose key equals the argument.
func (n *indexNode) DeleteKey(key int32) error {
	for i := n.p.NumSlots() - 1; i >= 0; i-- {
		if n.entryAt(i).Key == key {
			return n.p.DeleteRecordAt(i)
		}
	}
	return newError("index.DeleteKey", KindNotFound, errNoMatchingKey)
}

// GetPageID implements the §4.3 routing rule: the rightmost entry with
// entry.key <= searchKey, or leftLink when every entry exceeds
// searchKey.
func (n *indexNode) GetPageID(searchKey int32) page.PageID {
	for i := n.p.NumSlots() - 1; i >= 0; i-- {
		e := n.entryAt(i)
		if e.Key <= searchKey {
			return e.Child
		}
	}
	return n.LeftLink()
}

// FindPage is an alias of GetPageID under the spec's name for the
// search entry point; descend calls GetPageID directly.
func (n *indexNode) FindPage(searchKey int32) page.PageID { return n.GetPageID(searchKey) }

// KeyForChild returns the separator key whose entry routes to childPid.
// childPid must not be the leftLink (the leftLink has no associated
// key).
func (n *indexNode) KeyForChild(childPid page.PageID) (int32, bool) {
	for i := 0; i < n.p.NumSlots(); i++ {
		e := n.entryAt(i)
		if e.Child == childPid {
			return e.Key, true
		}
	}
	return 0, false
}

// FindSiblingForChild returns an immediate sibling of childPid under
// this node, preferring the left sibling; the right sibling is used
// only when childPid is the leftmost child (equal to leftLink), per
// §4.3, so that borrow/merge direction is unambiguous.
func (n *indexNode) FindSiblingForChild(childPid page.PageID) (sibling page.PageID, rightSide bool, ok bool) {
	if childPid == n.LeftLink() {
		if n.p.NumSlots() == 0 {
			return page.InvalidPageID, false, false
		}
		return n.entryAt(0).Child, true, true
	}
	for i := 0; i < n.p.NumSlots(); i++ {
		if n.entryAt(i).Child == childPid {
			if i == 0 {
				return n.LeftLink(), false, true
			}
			return n.entryAt(i - 1).Child, false, true
		}
	}
	return page.InvalidPageID, false, false
}

// AdjustKey updates the separator whose current value equals
// oldSeparatorKey to newFirstKey, per §4.3.
func (n *indexNode) AdjustKey(newFirstKey, oldSeparatorKey int32) error {
	for i := 0; i < n.p.NumSlots(); i++ {
		e := n.entryAt(i)
		if e.Key == oldSeparatorKey {
			return n.replaceAt(i, indexEntry{Key: newFirstKey, Child: e.Child})
		}
	}
	return newError("index.AdjustKey", KindInvariant, errNoMatchingKey)
}

// ReplaceChildPointer rewrites whichever slot (leftLink or an entry)
// currently points at oldChild so that it points at newChild instead.
// Used when a merge retargets what used to reach the absorbed sibling.
func (n *indexNode) ReplaceChildPointer(oldChild, newChild page.PageID) {
	if n.LeftLink() == oldChild {
		n.SetLeftLink(newChild)
		return
	}
	for i := 0; i < n.p.NumSlots(); i++ {
		e := n.entryAt(i)
		if e.Child == oldChild {
			n.replaceAt(i, indexEntry{Key: e.Key, Child: newChild})
			return
		}
	}
}

// replaceAt rewrites slot i in place: delete then reinsert, relying on
// InsertRecord's bounded insertion-sort to restore order (a no-op move
// when only the child pointer changed).
func (n *indexNode) replaceAt(i int, e indexEntry) error {
	if err := n.p.DeleteRecordAt(i); err != nil {
		return err
	}
	_, err := n.p.InsertRecord(marshalIndexEntry(e))
	return err
}

func (n *indexNode) GetFirst() (indexEntry, bool) {
	if n.p.NumSlots() == 0 {
		return indexEntry{}, false
	}
	return n.entryAt(0), true
}

func (n *indexNode) GetLast() (indexEntry, bool) {
	last := n.p.NumSlots() - 1
	if last < 0 {
		return indexEntry{}, false
	}
	return n.entryAt(last), true
}

func (n *indexNode) DeleteFirst() { n.p.DeleteRecordAt(0) }
func (n *indexNode) DeleteLast()  { n.p.DeleteRecordAt(n.p.NumSlots() - 1) }

func (n *indexNode) entries() []indexEntry {
	out := make([]indexEntry, n.p.NumSlots())
	for i := range out {
		out[i] = n.entryAt(i)
	}
	return out
}

func (n *indexNode) Clear() { n.p.Clear() }
