package btree

import "bptreefile/internal/storage/page"

// Scan is the range-scan cursor of §4.8: an optional [lo, hi] bound
// over ascending keys, realized by locating lo's leaf once and then
// walking the leaf's next-sibling chain. Only the current leaf is ever
// pinned.
type Scan struct {
	tree *Tree
	hi   *int32

	curPid  page.PageID
	curBuf  []byte
	curNode *leafNode
	slot    int

	lastKey  int32
	lastRID  page.RecordID
	lastSlot int
	done     bool

	// hasLastKey/dupRank track how many entries sharing lastKey have
	// already been returned before it (0 for the first occurrence of a
	// key in this scan), so DeleteCurrent can skip back over the
	// still-present, already-visited duplicates of a key after it
	// re-opens at that key.
	hasLastKey bool
	dupRank    int
}

// OpenScan positions a new cursor at the first entry with key >= lo
// (or the tree's first entry when lo is nil), bounded above by hi
// (inclusive) when hi is non-nil.
func (t *Tree) OpenScan(lo, hi *int32) (*Scan, error) {
	s := &Scan{tree: t, hi: hi, curPid: page.InvalidPageID}

	root := t.rootPageID()
	if root == page.InvalidPageID {
		s.done = true
		return s, nil
	}

	var startKey int32
	if lo != nil {
		startKey = *lo
	} else {
		startKey = minInt32
	}

	leafPid, leafBuf, _, err := t.descend(root, startKey, false)
	if err != nil {
		return nil, err
	}
	s.curPid = leafPid
	s.curBuf = leafBuf
	s.curNode = asLeaf(page.Load(leafBuf))

	s.slot = 0
	if lo != nil {
		for s.slot < s.curNode.NumEntries() {
			e, _ := s.curNode.GetAt(s.slot)
			if e.Key >= *lo {
				break
			}
			s.slot++
		}
	}
	s.advancePastEmptyLeaves()
	return s, nil
}

const minInt32 = -1 << 31

// advancePastEmptyLeaves follows next-links while the cursor sits past
// the last entry of the current leaf, unpinning each exhausted leaf
// before pinning the next.
func (s *Scan) advancePastEmptyLeaves() {
	for !s.done && s.curPid != page.InvalidPageID && s.slot >= s.curNode.NumEntries() {
		next := s.curNode.Next()
		s.tree.pool.UnpinPage(s.curPid, false)
		if next == page.InvalidPageID {
			s.curPid = page.InvalidPageID
			s.done = true
			return
		}
		buf, err := s.tree.pool.PinPage(next, false)
		if err != nil {
			s.curPid = page.InvalidPageID
			s.done = true
			return
		}
		s.curPid = next
		s.curBuf = buf
		s.curNode = asLeaf(page.Load(buf))
		s.slot = 0
	}
}

// GetNext returns the next (key, rid) pair in ascending order, or
// ErrDone once the scan is exhausted or hi has been passed.
func (s *Scan) GetNext() (int32, page.RecordID, error) {
	if s.done || s.curPid == page.InvalidPageID {
		return 0, page.RecordID{}, ErrDone
	}
	e, ok := s.curNode.GetAt(s.slot)
	if !ok {
		s.advancePastEmptyLeaves()
		if s.done || s.curPid == page.InvalidPageID {
			return 0, page.RecordID{}, ErrDone
		}
		e, _ = s.curNode.GetAt(s.slot)
	}
	if s.hi != nil && e.Key > *s.hi {
		s.Close()
		s.done = true
		return 0, page.RecordID{}, ErrDone
	}

	if s.hasLastKey && s.lastKey == e.Key {
		s.dupRank++
	} else {
		s.dupRank = 0
	}
	s.hasLastKey = true
	s.lastKey, s.lastRID, s.lastSlot = e.Key, e.RID, s.slot
	s.slot++
	s.advancePastEmptyLeaves()
	return e.Key, e.RID, nil
}

// DeleteCurrent deletes the entry most recently returned by GetNext,
// per §4.8: it calls through to Tree.Delete and then re-opens the
// cursor at the same key (not key+1), since duplicate-key entries at
// or after that key may still be ahead in the scan. Re-opening at the
// same key would also re-surface any duplicate-key entries already
// returned earlier in this scan (a leaf only orders by key, not by
// rid), so the cursor skips back over dupRank of them — the number of
// same-key entries already visited before the one just deleted.
func (s *Scan) DeleteCurrent() error {
	key, rid, skip := s.lastKey, s.lastRID, s.dupRank
	wasOpen := s.curPid != page.InvalidPageID
	if wasOpen {
		s.tree.pool.UnpinPage(s.curPid, false)
		s.curPid = page.InvalidPageID
	}
	if err := s.tree.Delete(key, rid); err != nil {
		return err
	}
	fresh, err := s.tree.OpenScan(&key, s.hi)
	if err != nil {
		return err
	}
	for i := 0; i < skip; i++ {
		k, _, err := fresh.GetNext()
		if err != nil || k != key {
			break
		}
	}
	*s = *fresh
	return nil
}

// Close releases the currently pinned leaf, if any. Safe to call
// multiple times or after the scan has already run to completion.
func (s *Scan) Close() error {
	if s.curPid == page.InvalidPageID {
		return nil
	}
	pid := s.curPid
	s.curPid = page.InvalidPageID
	return s.tree.pool.UnpinPage(pid, false)
}
