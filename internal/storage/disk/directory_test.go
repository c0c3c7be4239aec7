package disk

import (
	"path/filepath"
	"testing"

	"bptreefile/internal/storage/page"
)

func TestDirectoryAddGetDelete(t *testing.T) {
	dir, err := Open(filepath.Join(t.TempDir(), "dir.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := dir.AddFileEntry("customers", page.PageID(3)); err != nil {
		t.Fatalf("AddFileEntry: %v", err)
	}
	if err := dir.AddFileEntry("orders", page.PageID(9)); err != nil {
		t.Fatalf("AddFileEntry: %v", err)
	}

	pid, ok, err := dir.GetFileEntry("orders")
	if err != nil || !ok || pid != 9 {
		t.Fatalf("GetFileEntry(orders) = %v, %v, %v", pid, ok, err)
	}

	if err := dir.AddFileEntry("orders", page.PageID(99)); err == nil {
		t.Fatalf("AddFileEntry should reject a duplicate name")
	}

	if err := dir.DeleteFileEntry("customers"); err != nil {
		t.Fatalf("DeleteFileEntry: %v", err)
	}
	if _, ok, _ := dir.GetFileEntry("customers"); ok {
		t.Fatalf("customers should be gone after delete")
	}
	if pid, ok, _ := dir.GetFileEntry("orders"); !ok || pid != 9 {
		t.Fatalf("orders entry should survive deleting a different entry")
	}
}

func TestDirectoryDeleteMissingFails(t *testing.T) {
	dir, err := Open(filepath.Join(t.TempDir(), "dir.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := dir.DeleteFileEntry("nope"); err == nil {
		t.Fatalf("DeleteFileEntry on missing name should fail")
	}
}
