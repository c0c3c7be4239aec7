package btree

import "bptreefile/internal/storage/page"

// Delete implements §4.7: remove the (key, rid) pair from its leaf,
// then redistribute from or merge with a sibling if the leaf fell
// below half full, recursing up through index-node redistribute/merge
// and finally collapsing the root when it is left holding a single
// child.
func (t *Tree) Delete(key int32, rid page.RecordID) error {
	root := t.rootPageID()
	if root == page.InvalidPageID {
		return newError("Delete", KindNotFound, errNoMatchingEntry)
	}

	leafPid, leafBuf, path, err := t.descend(root, key, true)
	if err != nil {
		return err
	}
	leaf := asLeaf(page.Load(leafBuf))
	if err := leaf.Delete(key, rid); err != nil {
		t.pool.UnpinPage(leafPid, false)
		return err
	}

	if len(path) == 0 {
		// The leaf is also the root: no sibling exists to rebalance
		// with. An empty root leaf collapses the tree to empty.
		if leaf.NumEntries() == 0 {
			if err := t.pool.UnpinPage(leafPid, true); err != nil {
				return newError("Delete", KindPinError, err)
			}
			t.setRoot(page.InvalidPageID)
			return t.pool.FreePage(leafPid)
		}
		return wrapPin(t.pool.UnpinPage(leafPid, true), "Delete")
	}

	if leaf.IsAtLeastHalfFull() {
		return wrapPin(t.pool.UnpinPage(leafPid, true), "Delete")
	}

	return t.rebalanceLeaf(leafPid, leaf, path)
}

// rebalanceLeaf implements the leaf half of §4.7: borrow entries one
// at a time from whichever immediate sibling the parent identifies
// until the deficient leaf is half full again (redistribute), or until
// the sibling is fully drained into it (merge).
func (t *Tree) rebalanceLeaf(leafPid page.PageID, leaf *leafNode, path []page.PageID) error {
	parentPid := path[len(path)-1]
	parentBuf, err := t.pool.PinPage(parentPid, false)
	if err != nil {
		t.pool.UnpinPage(leafPid, true)
		return newError("rebalanceLeaf", KindPinError, err)
	}
	parent := asIndex(page.Load(parentBuf))

	siblingPid, rightSide, ok := parent.FindSiblingForChild(leafPid)
	if !ok {
		t.pool.UnpinPage(leafPid, true)
		t.pool.UnpinPage(parentPid, false)
		return newError("rebalanceLeaf", KindInvariant, errNoSibling)
	}
	siblingBuf, err := t.pool.PinPage(siblingPid, false)
	if err != nil {
		t.pool.UnpinPage(leafPid, true)
		t.pool.UnpinPage(parentPid, false)
		return newError("rebalanceLeaf", KindPinError, err)
	}
	sibling := asLeaf(page.Load(siblingBuf))

	for !leaf.IsAtLeastHalfFull() && sibling.NumEntries() > 0 {
		if rightSide {
			e, _ := sibling.GetFirst()
			sibling.DeleteFirst()
			leaf.Insert(e.Key, e.RID)
		} else {
			e, _ := sibling.GetLast()
			sibling.DeleteLast()
			leaf.Insert(e.Key, e.RID)
		}
	}

	// A merge needs room in leaf for every remaining sibling entry; when
	// that does not fit, the redistribution above is kept even though
	// sibling ends below half full.
	mergeFits := sibling.NumEntries()*(leafEntrySize+page.SlotSize) <= leaf.AvailableSpace()+page.SlotSize
	if sibling.NumEntries() > 0 && (sibling.IsAtLeastHalfFull() || !mergeFits) {
		// Redistribution succeeded: the parent's separator for the
		// right-hand node of {leaf, sibling} must track its new first
		// key, but no entry count changed so no further propagation is
		// needed.
		var rightPid page.PageID
		var rightNode *leafNode
		if rightSide {
			rightPid, rightNode = siblingPid, sibling
		} else {
			rightPid, rightNode = leafPid, leaf
		}
		newFirst, _ := rightNode.GetFirst()
		if oldSep, found := parent.KeyForChild(rightPid); found {
			parent.AdjustKey(newFirst.Key, oldSep)
		}
		t.pool.UnpinPage(leafPid, true)
		t.pool.UnpinPage(siblingPid, true)
		return wrapPin(t.pool.UnpinPage(parentPid, true), "rebalanceLeaf")
	}

	// Merge: the loop above may have stopped once leaf reached half
	// full rather than because sibling ran dry — drain whatever is
	// left in sibling into leaf before the page is freed, or those
	// entries are lost.
	for sibling.NumEntries() > 0 {
		if rightSide {
			e, _ := sibling.GetFirst()
			sibling.DeleteFirst()
			leaf.Insert(e.Key, e.RID)
		} else {
			e, _ := sibling.GetLast()
			sibling.DeleteLast()
			leaf.Insert(e.Key, e.RID)
		}
	}

	// Patch the sibling chain around the freed page, remove the
	// parent's separator, and free it.
	if rightSide {
		newNext := sibling.Next()
		leaf.SetNext(newNext)
		if newNext != page.InvalidPageID {
			if nbuf, err := t.pool.PinPage(newNext, false); err == nil {
				asLeaf(page.Load(nbuf)).SetPrev(leafPid)
				t.pool.UnpinPage(newNext, true)
			}
		}
		if sepKey, ok := parent.KeyForChild(siblingPid); ok {
			parent.DeleteKey(sepKey)
		}
	} else {
		newPrev := sibling.Prev()
		leaf.SetPrev(newPrev)
		if newPrev != page.InvalidPageID {
			if pbuf, err := t.pool.PinPage(newPrev, false); err == nil {
				asLeaf(page.Load(pbuf)).SetNext(leafPid)
				t.pool.UnpinPage(newPrev, true)
			}
		}
		if sepKey, ok := parent.KeyForChild(leafPid); ok {
			parent.DeleteKey(sepKey)
		}
		parent.ReplaceChildPointer(siblingPid, leafPid)
	}

	if err := t.pool.UnpinPage(leafPid, true); err != nil {
		return newError("rebalanceLeaf", KindPinError, err)
	}
	if err := t.pool.UnpinPage(siblingPid, false); err != nil {
		return newError("rebalanceLeaf", KindPinError, err)
	}
	if err := t.pool.FreePage(siblingPid); err != nil {
		return newError("rebalanceLeaf", KindIOError, err)
	}

	return t.afterSeparatorRemoved(parentPid, parent, path[:len(path)-1])
}

// rebalanceIndex implements the index half of §4.7 using the
// pull-through separator rule: the parent's separator for {node,
// sibling} is pulled down into the deficient node paired with a child
// taken from the sibling's exposed boundary, and a new separator is
// exposed from the sibling in its place. Repeated until node is half
// full (redistribute) or sibling is drained (merge).
func (t *Tree) rebalanceIndex(nodePid page.PageID, node *indexNode, path []page.PageID) error {
	parentPid := path[len(path)-1]
	parentBuf, err := t.pool.PinPage(parentPid, false)
	if err != nil {
		t.pool.UnpinPage(nodePid, true)
		return newError("rebalanceIndex", KindPinError, err)
	}
	parent := asIndex(page.Load(parentBuf))

	siblingPid, rightSide, ok := parent.FindSiblingForChild(nodePid)
	if !ok {
		t.pool.UnpinPage(nodePid, true)
		t.pool.UnpinPage(parentPid, false)
		return newError("rebalanceIndex", KindInvariant, errNoSibling)
	}
	siblingBuf, err := t.pool.PinPage(siblingPid, false)
	if err != nil {
		t.pool.UnpinPage(nodePid, true)
		t.pool.UnpinPage(parentPid, false)
		return newError("rebalanceIndex", KindPinError, err)
	}
	sibling := asIndex(page.Load(siblingBuf))

	var origSep int32
	var origFound bool
	if rightSide {
		origSep, origFound = parent.KeyForChild(siblingPid)
	} else {
		origSep, origFound = parent.KeyForChild(nodePid)
	}
	if !origFound {
		t.pool.UnpinPage(nodePid, true)
		t.pool.UnpinPage(siblingPid, true)
		t.pool.UnpinPage(parentPid, false)
		return newError("rebalanceIndex", KindInvariant, errNoMatchingKey)
	}
	sep := origSep

	for !node.IsAtLeastHalfFull() && sibling.NumEntries() > 0 {
		if rightSide {
			pulledChild := sibling.LeftLink()
			node.Insert(sep, pulledChild)
			next, _ := sibling.GetFirst()
			sibling.DeleteFirst()
			sibling.SetLeftLink(next.Child)
			sep = next.Key
		} else {
			oldLeftChild := node.LeftLink()
			node.Insert(sep, oldLeftChild)
			last, _ := sibling.GetLast()
			sibling.DeleteLast()
			node.SetLeftLink(last.Child)
			sep = last.Key
		}
	}

	// A merge needs room in node for every remaining sibling entry plus
	// the pulled-down separator; when that does not fit, the
	// redistribution above is kept even though sibling ends below half
	// full.
	mergeFits := (sibling.NumEntries()+1)*(indexEntrySize+page.SlotSize) <= node.AvailableSpace()+page.SlotSize
	if sibling.NumEntries() > 0 && (sibling.IsAtLeastHalfFull() || !mergeFits) {
		parent.AdjustKey(sep, origSep)
		t.pool.UnpinPage(nodePid, true)
		t.pool.UnpinPage(siblingPid, true)
		return wrapPin(t.pool.UnpinPage(parentPid, true), "rebalanceIndex")
	}

	// Merge: the loop above may have stopped once node reached half
	// full rather than because sibling ran dry — keep pulling entries
	// across (the half-full state no longer matters once a merge is
	// committed) until sibling holds none.
	for sibling.NumEntries() > 0 {
		if rightSide {
			pulledChild := sibling.LeftLink()
			node.Insert(sep, pulledChild)
			next, _ := sibling.GetFirst()
			sibling.DeleteFirst()
			sibling.SetLeftLink(next.Child)
			sep = next.Key
		} else {
			oldLeftChild := node.LeftLink()
			node.Insert(sep, oldLeftChild)
			last, _ := sibling.GetLast()
			sibling.DeleteLast()
			node.SetLeftLink(last.Child)
			sep = last.Key
		}
	}

	// Fold the sibling's remaining leftLink into node under the
	// current pulled-down separator, retarget whatever reached the
	// freed sibling, and remove the parent's separator entirely.
	if rightSide {
		node.Insert(sep, sibling.LeftLink())
	} else {
		oldLeftChild := node.LeftLink()
		node.Insert(sep, oldLeftChild)
		node.SetLeftLink(sibling.LeftLink())
		parent.ReplaceChildPointer(siblingPid, nodePid)
	}
	parent.DeleteKey(origSep)

	if err := t.pool.UnpinPage(nodePid, true); err != nil {
		return newError("rebalanceIndex", KindPinError, err)
	}
	if err := t.pool.UnpinPage(siblingPid, false); err != nil {
		return newError("rebalanceIndex", KindPinError, err)
	}
	if err := t.pool.FreePage(siblingPid); err != nil {
		return newError("rebalanceIndex", KindIOError, err)
	}

	return t.afterSeparatorRemoved(parentPid, parent, path[:len(path)-1])
}

// afterSeparatorRemoved is shared by both rebalance paths once a
// separator has just been deleted from parent: it collapses the root
// if that left it with zero entries, stops if parent is otherwise
// still at least half full (or is the root with entries), and
// recurses into rebalanceIndex one level further up otherwise.
func (t *Tree) afterSeparatorRemoved(parentPid page.PageID, parent *indexNode, grandpath []page.PageID) error {
	if len(grandpath) == 0 {
		// parent is the root.
		if parent.NumEntries() == 0 {
			newRoot := parent.LeftLink()
			if err := t.pool.UnpinPage(parentPid, true); err != nil {
				return newError("afterSeparatorRemoved", KindPinError, err)
			}
			if err := t.pool.FreePage(parentPid); err != nil {
				return newError("afterSeparatorRemoved", KindIOError, err)
			}
			t.setRoot(newRoot)
			return nil
		}
		return wrapPin(t.pool.UnpinPage(parentPid, true), "afterSeparatorRemoved")
	}
	if parent.IsAtLeastHalfFull() {
		return wrapPin(t.pool.UnpinPage(parentPid, true), "afterSeparatorRemoved")
	}
	return t.rebalanceIndex(parentPid, parent, grandpath)
}
