// Package disk implements the tiny file-name to header-page-id
// directory of spec §6, grounded on the host engine's Catalog
// (internal/storage/pager/catalog.go) but simplified to a flat,
// linearly-scanned fixed-record file since this module indexes a
// single tree file rather than a multi-table catalog.
package disk

import (
	"encoding/binary"
	"fmt"
	"os"

	"bptreefile/internal/storage/page"
)

const (
	nameFieldSize = 64
	recordSize    = nameFieldSize + 4 // name + header PageID
)

// Directory maps tree file names to the PageID of their header page.
type Directory struct {
	path string
}

// Open attaches to (and creates, if absent) the directory file at
// path.
func Open(path string) (*Directory, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: open directory %s: %w", path, err)
	}
	f.Close()
	return &Directory{path: path}, nil
}

func (d *Directory) readAll() ([]byte, error) {
	return os.ReadFile(d.path)
}

// GetFileEntry looks up name's header page id.
func (d *Directory) GetFileEntry(name string) (page.PageID, bool, error) {
	data, err := d.readAll()
	if err != nil {
		return page.InvalidPageID, false, fmt.Errorf("disk: read directory: %w", err)
	}
	for off := 0; off+recordSize <= len(data); off += recordSize {
		rec := data[off : off+recordSize]
		if decodeName(rec[:nameFieldSize]) == name {
			pid := page.PageID(int32(binary.LittleEndian.Uint32(rec[nameFieldSize:])))
			return pid, true, nil
		}
	}
	return page.InvalidPageID, false, nil
}

// AddFileEntry appends a new name -> header page id mapping. It fails
// if name already exists.
func (d *Directory) AddFileEntry(name string, pid page.PageID) error {
	if len(name) > nameFieldSize {
		return fmt.Errorf("disk: file name %q exceeds %d bytes", name, nameFieldSize)
	}
	if _, ok, err := d.GetFileEntry(name); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("disk: file entry %q already exists", name)
	}
	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("disk: open directory for append: %w", err)
	}
	defer f.Close()

	rec := make([]byte, recordSize)
	copy(rec, encodeName(name))
	binary.LittleEndian.PutUint32(rec[nameFieldSize:], uint32(int32(pid)))
	_, err = f.Write(rec)
	return err
}

// DeleteFileEntry removes name's mapping, rewriting the directory file
// compactly.
func (d *Directory) DeleteFileEntry(name string) error {
	data, err := d.readAll()
	if err != nil {
		return fmt.Errorf("disk: read directory: %w", err)
	}
	out := make([]byte, 0, len(data))
	found := false
	for off := 0; off+recordSize <= len(data); off += recordSize {
		rec := data[off : off+recordSize]
		if decodeName(rec[:nameFieldSize]) == name {
			found = true
			continue
		}
		out = append(out, rec...)
	}
	if !found {
		return fmt.Errorf("disk: no such file entry %q", name)
	}
	return os.WriteFile(d.path, out, 0o644)
}

func encodeName(name string) []byte {
	b := make([]byte, nameFieldSize)
	copy(b, name)
	return b
}

func decodeName(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}
