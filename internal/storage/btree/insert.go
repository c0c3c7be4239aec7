package btree

import "bptreefile/internal/storage/page"

// Insert implements §4.5: descend to the target leaf, insert directly
// if there is room, otherwise split the leaf and propagate the new
// separator up the path stack, splitting index nodes in turn and
// finally growing the tree by one level when the stack is exhausted.
func (t *Tree) Insert(key int32, rid page.RecordID) error {
	root := t.rootPageID()
	if root == page.InvalidPageID {
		pid, buf, err := t.pool.NewPage(1)
		if err != nil {
			return newError("Insert", KindIOError, err)
		}
		leaf := initLeaf(buf, pid)
		if err := leaf.Insert(key, rid); err != nil {
			t.pool.UnpinPage(pid, true)
			return err
		}
		if err := t.pool.UnpinPage(pid, true); err != nil {
			return newError("Insert", KindPinError, err)
		}
		t.setRoot(pid)
		return nil
	}

	leafPid, leafBuf, path, err := t.descend(root, key, true)
	if err != nil {
		return err
	}
	leaf := asLeaf(page.Load(leafBuf))

	if leaf.AvailableSpace() >= leafEntrySize {
		if err := leaf.Insert(key, rid); err != nil {
			t.pool.UnpinPage(leafPid, false)
			return err
		}
		return wrapPin(t.pool.UnpinPage(leafPid, true), "Insert")
	}

	sepKey, rightPid, err := t.splitLeaf(leaf, leafPid, key, rid)
	if err != nil {
		t.pool.UnpinPage(leafPid, true)
		return err
	}
	if err := t.pool.UnpinPage(leafPid, true); err != nil {
		return newError("Insert", KindPinError, err)
	}
	if err := t.pool.UnpinPage(rightPid, true); err != nil {
		return newError("Insert", KindPinError, err)
	}
	return t.propagate(sepKey, rightPid, path, root)
}

// splitLeaf implements §4.5 step 4: merge left's current entries with
// the new one in sorted order, put the smallest back into left and the
// rest into a fresh right page (a full page's worth, which fits), then
// move entries from right to left until left no longer holds more free
// space than right. The separator is right's resulting first key.
func (t *Tree) splitLeaf(left *leafNode, leftPid page.PageID, key int32, rid page.RecordID) (int32, page.PageID, error) {
	rightPid, rightBuf, err := t.pool.NewPage(1)
	if err != nil {
		return 0, 0, newError("splitLeaf", KindIOError, err)
	}
	right := initLeaf(rightBuf, rightPid)

	oldNext := left.Next()
	right.SetNext(oldNext)
	right.SetPrev(leftPid)
	left.SetNext(rightPid)
	if oldNext != page.InvalidPageID {
		nbuf, err := t.pool.PinPage(oldNext, false)
		if err != nil {
			return 0, 0, newError("splitLeaf", KindPinError, err)
		}
		asLeaf(page.Load(nbuf)).SetPrev(rightPid)
		if err := t.pool.UnpinPage(oldNext, true); err != nil {
			return 0, 0, newError("splitLeaf", KindPinError, err)
		}
	}

	merged := insertLeafSorted(left.entries(), leafEntry{Key: key, RID: rid})
	left.Clear()
	for i, e := range merged {
		dst := right
		if i == 0 {
			dst = left
		}
		if err := dst.Insert(e.Key, e.RID); err != nil {
			return 0, 0, newError("splitLeaf", KindInvariant, err)
		}
	}
	for left.AvailableSpace() > right.AvailableSpace() {
		first, ok := right.GetFirst()
		if !ok {
			break
		}
		right.DeleteFirst()
		if err := left.Insert(first.Key, first.RID); err != nil {
			return 0, 0, newError("splitLeaf", KindInvariant, err)
		}
	}
	sep, ok := right.GetFirst()
	if !ok {
		return 0, 0, newError("splitLeaf", KindInvariant, errNoMatchingKey)
	}
	return sep.Key, rightPid, nil
}

// splitIndex implements §4.6: the same merge-then-rebalance shape as
// splitLeaf, but the promoted separator is removed from right (an
// index node's first key never duplicates down into a child) and
// becomes right's new leftLink.
func (t *Tree) splitIndex(left *indexNode, leftPid page.PageID, sepKey int32, childPid page.PageID) (int32, page.PageID, error) {
	rightPid, rightBuf, err := t.pool.NewPage(1)
	if err != nil {
		return 0, 0, newError("splitIndex", KindIOError, err)
	}
	right := initIndex(rightBuf, rightPid, page.InvalidPageID)

	merged := insertIndexSorted(left.entries(), indexEntry{Key: sepKey, Child: childPid})
	left.Clear()
	for i, e := range merged {
		dst := right
		if i == 0 {
			dst = left
		}
		if err := dst.Insert(e.Key, e.Child); err != nil {
			return 0, 0, newError("splitIndex", KindInvariant, err)
		}
	}
	for left.AvailableSpace() > right.AvailableSpace() {
		first, ok := right.GetFirst()
		if !ok {
			break
		}
		right.DeleteFirst()
		if err := left.Insert(first.Key, first.Child); err != nil {
			return 0, 0, newError("splitIndex", KindInvariant, err)
		}
	}
	promoted, ok := right.GetFirst()
	if !ok {
		return 0, 0, newError("splitIndex", KindInvariant, errNoMatchingKey)
	}
	right.DeleteFirst()
	right.SetLeftLink(promoted.Child)
	return promoted.Key, rightPid, nil
}

// propagate walks the path stack from the leaf's immediate parent
// upward, inserting (sepKey, rightPid) into each ancestor in turn and
// splitting it if it has no room, until either an ancestor absorbs the
// separator without splitting or the stack is exhausted — in which
// case a brand new root is created with oldRootPid as its leftLink.
func (t *Tree) propagate(sepKey int32, rightPid page.PageID, path []page.PageID, oldRootPid page.PageID) error {
	for len(path) > 0 {
		parentPid := path[len(path)-1]
		path = path[:len(path)-1]

		parentBuf, err := t.pool.PinPage(parentPid, false)
		if err != nil {
			return newError("propagate", KindPinError, err)
		}
		parent := asIndex(page.Load(parentBuf))

		if parent.AvailableSpace() >= indexEntrySize {
			if err := parent.Insert(sepKey, rightPid); err != nil {
				t.pool.UnpinPage(parentPid, false)
				return err
			}
			return wrapPin(t.pool.UnpinPage(parentPid, true), "propagate")
		}

		newSep, newRight, err := t.splitIndex(parent, parentPid, sepKey, rightPid)
		if err != nil {
			t.pool.UnpinPage(parentPid, true)
			return err
		}
		if err := t.pool.UnpinPage(parentPid, true); err != nil {
			return newError("propagate", KindPinError, err)
		}
		if err := t.pool.UnpinPage(newRight, true); err != nil {
			return newError("propagate", KindPinError, err)
		}
		sepKey, rightPid = newSep, newRight
	}

	newRootPid, buf, err := t.pool.NewPage(1)
	if err != nil {
		return newError("propagate", KindIOError, err)
	}
	newRoot := initIndex(buf, newRootPid, oldRootPid)
	if err := newRoot.Insert(sepKey, rightPid); err != nil {
		t.pool.UnpinPage(newRootPid, true)
		return err
	}
	if err := t.pool.UnpinPage(newRootPid, true); err != nil {
		return newError("propagate", KindPinError, err)
	}
	t.setRoot(newRootPid)
	return nil
}

func insertLeafSorted(entries []leafEntry, e leafEntry) []leafEntry {
	i := 0
	for i < len(entries) && entries[i].Key <= e.Key {
		i++
	}
	out := make([]leafEntry, 0, len(entries)+1)
	out = append(out, entries[:i]...)
	out = append(out, e)
	out = append(out, entries[i:]...)
	return out
}

func insertIndexSorted(entries []indexEntry, e indexEntry) []indexEntry {
	i := 0
	for i < len(entries) && entries[i].Key <= e.Key {
		i++
	}
	out := make([]indexEntry, 0, len(entries)+1)
	out = append(out, entries[:i]...)
	out = append(out, e)
	out = append(out, entries[i:]...)
	return out
}

func wrapPin(err error, op string) error {
	if err == nil {
		return nil
	}
	return newError(op, KindPinError, err)
}
