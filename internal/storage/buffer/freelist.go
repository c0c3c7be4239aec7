package buffer

import "bptreefile/internal/storage/page"

// FreeList is an in-memory stand-in for the host engine's on-disk
// FreeListPage chain (internal/storage/pager/freelist.go): a stack of
// page ids released by FreePage, popped by NewPage before the backing
// file is extended. Kept in memory rather than persisted as its own
// page chain, since this module's Non-goals exclude crash recovery —
// there is nothing to recover a free list *for*.
type FreeList struct {
	ids []page.PageID
}

// NewFreeList returns an empty free list.
func NewFreeList() *FreeList {
	return &FreeList{}
}

// Push releases pid for reuse.
func (f *FreeList) Push(pid page.PageID) {
	f.ids = append(f.ids, pid)
}

// Pop returns a previously freed page id, if any.
func (f *FreeList) Pop() (page.PageID, bool) {
	if len(f.ids) == 0 {
		return page.InvalidPageID, false
	}
	last := len(f.ids) - 1
	pid := f.ids[last]
	f.ids = f.ids[:last]
	return pid, true
}

// Len reports how many page ids are currently free.
func (f *FreeList) Len() int { return len(f.ids) }
