// Package btree implements the B+ tree index: the tree file of §4.4-4.7
// (search, insert with recursive splits, delete with redistribute/
// merge), built on top of the leaf/index node views and a pluggable
// buffer.Pool. Control flow is grounded on the host engine's
// pager.BTree (findLeaf/insertIntoTree/insertWithSplit/
// insertIntoParent/splitInternal/createNewRoot/pathToLeaf); the delete
// protocol is authored fresh from §4.7 since neither the host engine
// nor the original Minibase source ship a complete one (see DESIGN.md).
package btree

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/google/uuid"

	"bptreefile/internal/storage/buffer"
	"bptreefile/internal/storage/disk"
	"bptreefile/internal/storage/page"
)

// Tree is an open B+ tree index file: a header page (pinned for the
// life of the tree, per §3) plus the pool and directory it was opened
// against.
type Tree struct {
	pool     buffer.Pool
	dir      *disk.Directory
	name     string
	pageSize int

	headerPid page.PageID
	headerBuf []byte

	InstanceID uuid.UUID
	logger     *log.Logger
}

// Create allocates a new header page, registers name in dir, and
// returns the resulting empty tree.
func Create(name string, pool buffer.Pool, dir *disk.Directory, pageSize int, logger *log.Logger) (*Tree, error) {
	if _, ok, err := dir.GetFileEntry(name); err != nil {
		return nil, fmt.Errorf("btree: Create %s: %w", name, err)
	} else if ok {
		return nil, newError("Create", KindInvariant, errTreeAlreadyExists)
	}
	hid, buf, err := pool.NewPage(1)
	if err != nil {
		return nil, newError("Create", KindIOError, err)
	}
	emptyRoot := page.InvalidPageID
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(emptyRoot)))
	if err := dir.AddFileEntry(name, hid); err != nil {
		pool.UnpinPage(hid, true)
		pool.FreePage(hid)
		return nil, newError("Create", KindIOError, err)
	}
	return newTree(pool, dir, name, pageSize, hid, buf, logger), nil
}

// Open attaches to an existing tree file previously registered under
// name.
func Open(name string, pool buffer.Pool, dir *disk.Directory, pageSize int, logger *log.Logger) (*Tree, error) {
	hid, ok, err := dir.GetFileEntry(name)
	if err != nil {
		return nil, fmt.Errorf("btree: Open %s: %w", name, err)
	}
	if !ok {
		return nil, newError("Open", KindNotFound, errNoSuchFile)
	}
	buf, err := pool.PinPage(hid, false)
	if err != nil {
		return nil, newError("Open", KindPinError, err)
	}
	return newTree(pool, dir, name, pageSize, hid, buf, logger), nil
}

func newTree(pool buffer.Pool, dir *disk.Directory, name string, pageSize int, hid page.PageID, hbuf []byte, logger *log.Logger) *Tree {
	if logger == nil {
		logger = log.Default()
	}
	return &Tree{
		pool:       pool,
		dir:        dir,
		name:       name,
		pageSize:   pageSize,
		headerPid:  hid,
		headerBuf:  hbuf,
		InstanceID: uuid.New(),
		logger:     logger,
	}
}

// Close releases the header page pin without destroying the file.
func (t *Tree) Close() error {
	return t.pool.UnpinPage(t.headerPid, false)
}

func (t *Tree) rootPageID() page.PageID {
	return page.PageID(int32(binary.LittleEndian.Uint32(t.headerBuf[0:4])))
}

func (t *Tree) setRoot(pid page.PageID) {
	binary.LittleEndian.PutUint32(t.headerBuf[0:4], uint32(int32(pid)))
	if err := t.pool.FlushPage(t.headerPid); err != nil {
		t.logger.Printf("btree: flush header page %d: %v", t.headerPid, err)
	}
}

// Search returns the page id of the leaf where key would reside. It
// returns ErrDone when the tree is empty.
func (t *Tree) Search(key int32) (page.PageID, error) {
	root := t.rootPageID()
	if root == page.InvalidPageID {
		return page.InvalidPageID, ErrDone
	}
	leafPid, _, _, err := t.descend(root, key, false)
	if err != nil {
		return page.InvalidPageID, err
	}
	if err := t.pool.UnpinPage(leafPid, false); err != nil {
		return page.InvalidPageID, newError("Search", KindPinError, err)
	}
	return leafPid, nil
}

// descend walks from root to the leaf that would contain key. Each
// index node is unpinned as soon as its child's id has been read and
// before that child is pinned, per §5's "parent unpinned before child
// pinned" ordering; when recordPath is set, every visited index node's
// id is appended to path so insert/delete can walk back up.
func (t *Tree) descend(root page.PageID, key int32, recordPath bool) (page.PageID, []byte, []page.PageID, error) {
	var path []page.PageID
	cur := root
	buf, err := t.pool.PinPage(cur, false)
	if err != nil {
		return page.InvalidPageID, nil, nil, newError("descend", KindPinError, err)
	}
	for {
		sp := page.Load(buf)
		if sp.Type() == page.TypeLeaf {
			return cur, buf, path, nil
		}
		idx := asIndex(sp)
		child := idx.GetPageID(key)
		if recordPath {
			path = append(path, cur)
		}
		t.pool.UnpinPage(cur, false)
		childBuf, err := t.pool.PinPage(child, false)
		if err != nil {
			return page.InvalidPageID, nil, nil, newError("descend", KindPinError, err)
		}
		cur, buf = child, childBuf
	}
}

// DestroyFile walks and frees every page owned by the tree, including
// the header, and removes the file's directory entry.
func (t *Tree) DestroyFile() error {
	root := t.rootPageID()
	if err := t.freeSubtree(root); err != nil {
		return newError("DestroyFile", KindIOError, err)
	}
	if err := t.pool.UnpinPage(t.headerPid, false); err != nil {
		return newError("DestroyFile", KindPinError, err)
	}
	if err := t.pool.FreePage(t.headerPid); err != nil {
		return newError("DestroyFile", KindIOError, err)
	}
	return t.dir.DeleteFileEntry(t.name)
}

func (t *Tree) freeSubtree(pid page.PageID) error {
	if pid == page.InvalidPageID {
		return nil
	}
	buf, err := t.pool.PinPage(pid, false)
	if err != nil {
		return err
	}
	sp := page.Load(buf)
	if sp.Type() == page.TypeLeaf {
		if err := t.pool.UnpinPage(pid, false); err != nil {
			return err
		}
		return t.pool.FreePage(pid)
	}
	idx := asIndex(sp)
	children := make([]page.PageID, 0, idx.NumEntries()+1)
	children = append(children, idx.LeftLink())
	for _, e := range idx.entries() {
		children = append(children, e.Child)
	}
	if err := t.pool.UnpinPage(pid, false); err != nil {
		return err
	}
	for _, c := range children {
		if err := t.freeSubtree(c); err != nil {
			return err
		}
	}
	return t.pool.FreePage(pid)
}
