package buffer

import (
	"fmt"

	"bptreefile/internal/storage/page"
)

// Fake is an in-memory Pool with no eviction and no disk backing,
// grounded on the spec's §9 design note that the tree file must be
// parameterized over the buffer-pool handle so tests can substitute a
// mock, and on ryogrid-bltree-go-for-embedding's ParentBufMgr
// interface shape that motivated exposing Pool as an interface at all.
// Every allocated page stays resident until FreePage releases it; the
// Fake exists purely to unit test page/btree logic without a temp-file
// round trip.
type Fake struct {
	pageSize int
	pages    map[page.PageID][]byte
	pinCount map[page.PageID]int
	free     *FreeList
	next     page.PageID
}

// NewFake returns an empty in-memory pool with the given fixed page
// size.
func NewFake(pageSize int) *Fake {
	return &Fake{
		pageSize: pageSize,
		pages:    make(map[page.PageID][]byte),
		pinCount: make(map[page.PageID]int),
		free:     NewFreeList(),
	}
}

func (f *Fake) PageSize() int { return f.pageSize }

func (f *Fake) NewPage(n int) (page.PageID, []byte, error) {
	if n <= 0 {
		return page.InvalidPageID, nil, fmt.Errorf("buffer: NewPage n=%d must be positive", n)
	}
	var first page.PageID
	if n == 1 {
		first = f.alloc()
	} else {
		// Fresh ids only, so that the n pages are contiguous.
		first = f.next
		for i := 0; i < n; i++ {
			f.pages[f.next] = make([]byte, f.pageSize)
			f.next++
		}
	}
	buf := f.pages[first]
	f.pinCount[first] = 1
	return first, buf, nil
}

func (f *Fake) alloc() page.PageID {
	var pid page.PageID
	if p, ok := f.free.Pop(); ok {
		pid = p
	} else {
		pid = f.next
		f.next++
	}
	f.pages[pid] = make([]byte, f.pageSize)
	return pid
}

func (f *Fake) PinPage(pid page.PageID, emptyPage bool) ([]byte, error) {
	buf, ok := f.pages[pid]
	if !ok {
		if !emptyPage {
			return nil, fmt.Errorf("buffer: pin %d: not allocated", pid)
		}
		buf = make([]byte, f.pageSize)
		f.pages[pid] = buf
	}
	f.pinCount[pid]++
	return buf, nil
}

func (f *Fake) UnpinPage(pid page.PageID, dirty bool) error {
	if f.pinCount[pid] <= 0 {
		return fmt.Errorf("buffer: unpin %d: not pinned", pid)
	}
	f.pinCount[pid]--
	return nil
}

func (f *Fake) FreePage(pid page.PageID) error {
	if f.pinCount[pid] != 0 {
		return fmt.Errorf("buffer: free %d: still pinned", pid)
	}
	delete(f.pages, pid)
	delete(f.pinCount, pid)
	f.free.Push(pid)
	return nil
}

func (f *Fake) FlushPage(pid page.PageID) error  { return nil }
func (f *Fake) FlushAllPages() error             { return nil }

// PinCounts exposes the current pin-count table so tests can assert
// that every page the tree touched ended up unpinned.
func (f *Fake) PinCounts() map[page.PageID]int {
	out := make(map[page.PageID]int, len(f.pinCount))
	for k, v := range f.pinCount {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

// Resident reports how many pages are currently allocated.
func (f *Fake) Resident() int { return len(f.pages) }
