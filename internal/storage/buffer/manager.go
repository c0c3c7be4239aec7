package buffer

import (
	"container/list"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	"bptreefile/internal/storage/page"
)

// frame is one resident page in the pool, grounded on the host
// engine's PageFrame: a pin count plus a dirty flag, with LRU order
// tracked by the frame's position in Manager.lru.
type frame struct {
	pid      page.PageID
	data     []byte
	pinCount int
	dirty    bool
}

// Manager is a pinned-frame LRU buffer pool backed by a flat disk
// file. Unlike the host engine's Pager, it carries no WAL, no
// transaction ids, and no LSN bookkeeping — the Non-goals exclude
// crash recovery, so an unpin-dirty only marks the frame, and dirty
// frames are written back plainly on flush or eviction.
type Manager struct {
	mu       sync.Mutex
	file     *os.File
	pageSize int
	capacity int

	table map[page.PageID]*list.Element // pid -> element in lru
	lru   *list.List                    // front = most recently used

	free       *FreeList
	nextPageID page.PageID

	cronSched *cron.Cron
	logger    *log.Logger
}

// NewManager opens (creating if absent) the backing file at path and
// returns a Manager with room for capacity resident frames.
func NewManager(path string, pageSize, capacity int, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("buffer: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("buffer: stat %s: %w", path, err)
	}
	m := &Manager{
		file:       f,
		pageSize:   pageSize,
		capacity:   capacity,
		table:      make(map[page.PageID]*list.Element),
		lru:        list.New(),
		free:       NewFreeList(),
		nextPageID: page.PageID(info.Size() / int64(pageSize)),
		logger:     logger,
	}
	return m, nil
}

// PageSize reports the fixed page size this manager was opened with.
func (m *Manager) PageSize() int { return m.pageSize }

// StartCheckpointSchedule registers a periodic FlushAllPages job on a
// cron schedule (e.g. "@every 30s"), grounded on the host engine's
// Scheduler/JobExecutor pattern. Disabled (no background flush) unless
// called.
func (m *Manager) StartCheckpointSchedule(spec string) error {
	m.cronSched = cron.New()
	_, err := m.cronSched.AddFunc(spec, func() {
		if err := m.FlushAllPages(); err != nil {
			m.logger.Printf("buffer: scheduled checkpoint flush failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("buffer: schedule checkpoint: %w", err)
	}
	m.cronSched.Start()
	return nil
}

// Close stops any checkpoint schedule, flushes every dirty frame, and
// closes the backing file.
func (m *Manager) Close() error {
	if m.cronSched != nil {
		m.cronSched.Stop()
	}
	if err := m.FlushAllPages(); err != nil {
		return err
	}
	return m.file.Close()
}

func (m *Manager) readFromDisk(pid page.PageID) ([]byte, error) {
	buf := make([]byte, m.pageSize)
	off := int64(pid) * int64(m.pageSize)
	if off+int64(m.pageSize) > fileSizeOrZero(m.file) {
		// Page was allocated but never written; return a zeroed frame.
		return buf, nil
	}
	if _, err := m.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("buffer: read page %d: %w", pid, err)
	}
	return buf, nil
}

func fileSizeOrZero(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (m *Manager) writeToDisk(pid page.PageID, data []byte) error {
	off := int64(pid) * int64(m.pageSize)
	if _, err := m.file.WriteAt(data, off); err != nil {
		return fmt.Errorf("buffer: write page %d: %w", pid, err)
	}
	return nil
}

// evictOne removes the least-recently-used frame with a zero pin count
// to make room for a new resident page. Returns an error if every
// frame is pinned.
func (m *Manager) evictOne() error {
	for e := m.lru.Back(); e != nil; e = e.Prev() {
		fr := e.Value.(*frame)
		if fr.pinCount != 0 {
			continue
		}
		if fr.dirty {
			if err := m.writeToDisk(fr.pid, fr.data); err != nil {
				return err
			}
		}
		m.lru.Remove(e)
		delete(m.table, fr.pid)
		return nil
	}
	return fmt.Errorf("buffer: pool exhausted, every frame pinned")
}

func (m *Manager) ensureRoom() error {
	if len(m.table) < m.capacity {
		return nil
	}
	return m.evictOne()
}

// NewPage allocates n contiguous pages and returns the first, pinned,
// with undefined (zeroed) contents. n is almost always 1 for this
// tree; extra pages beyond the first are allocated but not pinned.
func (m *Manager) NewPage(n int) (page.PageID, []byte, error) {
	if n <= 0 {
		return page.InvalidPageID, nil, fmt.Errorf("buffer: NewPage n=%d must be positive", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var first page.PageID
	if n == 1 {
		first = m.allocatePageIDLocked()
	} else {
		// Fresh ids only, so that the n pages are contiguous.
		first = m.nextPageID
		m.nextPageID += page.PageID(n)
	}

	if err := m.ensureRoom(); err != nil {
		return page.InvalidPageID, nil, newPinError(err)
	}
	buf := make([]byte, m.pageSize)
	fr := &frame{pid: first, data: buf, pinCount: 1, dirty: true}
	el := m.lru.PushFront(fr)
	m.table[first] = el
	return first, buf, nil
}

func (m *Manager) allocatePageIDLocked() page.PageID {
	if pid, ok := m.free.Pop(); ok {
		return pid
	}
	pid := m.nextPageID
	m.nextPageID++
	return pid
}

// PinPage brings pid into a frame if not resident and increments its
// pin count.
func (m *Manager) PinPage(pid page.PageID, emptyPage bool) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.table[pid]; ok {
		fr := el.Value.(*frame)
		fr.pinCount++
		m.lru.MoveToFront(el)
		return fr.data, nil
	}

	if err := m.ensureRoom(); err != nil {
		return nil, newPinError(err)
	}
	var data []byte
	if emptyPage {
		data = make([]byte, m.pageSize)
	} else {
		buf, err := m.readFromDisk(pid)
		if err != nil {
			return nil, newPinError(err)
		}
		data = buf
	}
	fr := &frame{pid: pid, data: data, pinCount: 1}
	el := m.lru.PushFront(fr)
	m.table[pid] = el
	return data, nil
}

// UnpinPage decrements pid's pin count; if dirty, the frame is marked
// for write-back.
func (m *Manager) UnpinPage(pid page.PageID, dirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.table[pid]
	if !ok {
		return fmt.Errorf("buffer: unpin %d: not resident", pid)
	}
	fr := el.Value.(*frame)
	if fr.pinCount <= 0 {
		return fmt.Errorf("buffer: unpin %d: not pinned", pid)
	}
	fr.pinCount--
	if dirty {
		fr.dirty = true
	}
	return nil
}

// FreePage releases an allocation. pid must currently be unpinned.
func (m *Manager) FreePage(pid page.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.table[pid]; ok {
		fr := el.Value.(*frame)
		if fr.pinCount != 0 {
			return fmt.Errorf("buffer: free %d: still pinned", pid)
		}
		m.lru.Remove(el)
		delete(m.table, pid)
	}
	m.free.Push(pid)
	return nil
}

// FlushPage forces write-back of one resident dirty page.
func (m *Manager) FlushPage(pid page.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.table[pid]
	if !ok {
		return nil
	}
	fr := el.Value.(*frame)
	if !fr.dirty {
		return nil
	}
	if err := m.writeToDisk(fr.pid, fr.data); err != nil {
		return err
	}
	fr.dirty = false
	return nil
}

// FlushAllPages forces write-back of every resident dirty frame.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for e := m.lru.Front(); e != nil; e = e.Next() {
		fr := e.Value.(*frame)
		if !fr.dirty {
			continue
		}
		if err := m.writeToDisk(fr.pid, fr.data); err != nil {
			return err
		}
		fr.dirty = false
	}
	return nil
}

func newPinError(cause error) error {
	return fmt.Errorf("buffer: pin error: %w", cause)
}
