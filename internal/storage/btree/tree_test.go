package btree

import (
	"path/filepath"
	"testing"

	"bptreefile/internal/storage/buffer"
	"bptreefile/internal/storage/disk"
	"bptreefile/internal/storage/page"
)

const testPageSize = 256

func newTestTree(t *testing.T) (*Tree, *buffer.Fake) {
	t.Helper()
	dir, err := disk.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	pool := buffer.NewFake(testPageSize)
	tr, err := Create("t1", pool, dir, testPageSize, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tr, pool
}

func rid(k int32) page.RecordID {
	return page.RecordID{PageNo: k, SlotNo: k + 1}
}

func assertNoLeaks(t *testing.T, pool *buffer.Fake) {
	t.Helper()
	// Page 0 is the header newTestTree allocates first; the open tree
	// keeps exactly one pin on it.
	leaked := pool.PinCounts()
	if leaked[0] == 1 {
		delete(leaked, 0)
	}
	if len(leaked) != 0 {
		t.Fatalf("pages left pinned: %v", leaked)
	}
}

func TestGrowThenScanAll(t *testing.T) {
	tr, pool := newTestTree(t)
	const n = 1000
	for k := int32(1); k <= n; k++ {
		if err := tr.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	assertNoLeaks(t, pool)

	scan, err := tr.OpenScan(nil, nil)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	var got []int32
	for {
		k, r, err := scan.GetNext()
		if err == ErrDone {
			break
		}
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		if r != rid(k) {
			t.Fatalf("key %d: rid mismatch got %v want %v", k, r, rid(k))
		}
		got = append(got, k)
	}
	assertNoLeaks(t, pool)

	if len(got) != n {
		t.Fatalf("scanned %d entries, want %d", len(got), n)
	}
	for i, k := range got {
		if k != int32(i+1) {
			t.Fatalf("scan out of order at index %d: got %d want %d", i, k, i+1)
		}
	}
}

func TestBoundedScan(t *testing.T) {
	tr, pool := newTestTree(t)
	for k := int32(1); k <= 1000; k++ {
		if err := tr.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	lo, hi := int32(300), int32(400)
	scan, err := tr.OpenScan(&lo, &hi)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	var got []int32
	for {
		k, _, err := scan.GetNext()
		if err == ErrDone {
			break
		}
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		got = append(got, k)
	}
	assertNoLeaks(t, pool)

	if len(got) != 101 {
		t.Fatalf("bounded scan returned %d entries, want 101", len(got))
	}
	if got[0] != 300 || got[len(got)-1] != 400 {
		t.Fatalf("bounded scan range wrong: [%d, %d]", got[0], got[len(got)-1])
	}
}

func TestSplitCascadeReachesHeightThree(t *testing.T) {
	tr, pool := newTestTree(t)
	const n = 10000
	for k := int32(1); k <= n; k++ {
		if err := tr.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	assertNoLeaks(t, pool)

	st, err := tr.DumpStatistics()
	if err != nil {
		t.Fatalf("DumpStatistics: %v", err)
	}
	if st.Height < 3 {
		t.Fatalf("height = %d, want >= 3 after %d inserts", st.Height, n)
	}
	if st.NumEntries != n {
		t.Fatalf("NumEntries = %d, want %d", st.NumEntries, n)
	}
	assertNoLeaks(t, pool)
}

func TestDeleteHalfLeavesOddKeys(t *testing.T) {
	tr, pool := newTestTree(t)
	const n = 5000
	for k := int32(1); k <= n; k++ {
		if err := tr.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for k := int32(2); k <= n; k += 2 {
		if err := tr.Delete(k, rid(k)); err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
	}
	assertNoLeaks(t, pool)

	scan, err := tr.OpenScan(nil, nil)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	count := 0
	for {
		k, _, err := scan.GetNext()
		if err == ErrDone {
			break
		}
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		if k%2 == 0 {
			t.Fatalf("found even key %d after deleting all even keys", k)
		}
		count++
	}
	assertNoLeaks(t, pool)

	if count != n/2 {
		t.Fatalf("scanned %d surviving keys, want %d", count, n/2)
	}
}

func TestDeleteAllCollapsesToEmpty(t *testing.T) {
	tr, pool := newTestTree(t)
	keys := []int32{5, 2, 8, 1, 9, 3, 7, 4, 6, 10}
	for _, k := range keys {
		if err := tr.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for _, k := range keys {
		if err := tr.Delete(k, rid(k)); err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
	}
	assertNoLeaks(t, pool)

	if _, err := tr.Search(keys[0]); err != ErrDone {
		t.Fatalf("Search on emptied tree = %v, want ErrDone", err)
	}
	if pool.Resident() != 0 {
		t.Fatalf("%d pages still resident after draining the tree", pool.Resident())
	}
}

func TestDuplicateKeysCoexistAndDeleteSelectively(t *testing.T) {
	tr, pool := newTestTree(t)
	key := int32(42)
	rids := []page.RecordID{{PageNo: 1, SlotNo: 1}, {PageNo: 2, SlotNo: 2}, {PageNo: 3, SlotNo: 3}}
	for _, r := range rids {
		if err := tr.Insert(key, r); err != nil {
			t.Fatalf("Insert duplicate %v: %v", r, err)
		}
	}
	assertNoLeaks(t, pool)

	if err := tr.Delete(key, rids[1]); err != nil {
		t.Fatalf("Delete middle duplicate: %v", err)
	}
	assertNoLeaks(t, pool)

	scan, err := tr.OpenScan(&key, &key)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	var remaining []page.RecordID
	for {
		k, r, err := scan.GetNext()
		if err == ErrDone {
			break
		}
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		if k != key {
			t.Fatalf("unexpected key %d in duplicate-key scan", k)
		}
		remaining = append(remaining, r)
	}
	assertNoLeaks(t, pool)

	if len(remaining) != 2 {
		t.Fatalf("remaining duplicates = %v, want 2 entries", remaining)
	}
	for _, r := range remaining {
		if r == rids[1] {
			t.Fatalf("deleted rid %v still present", rids[1])
		}
	}
}

func TestDeleteCurrentViaScan(t *testing.T) {
	tr, pool := newTestTree(t)
	for k := int32(1); k <= 200; k++ {
		if err := tr.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	scan, err := tr.OpenScan(nil, nil)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	deleted := 0
	for {
		k, _, err := scan.GetNext()
		if err == ErrDone {
			break
		}
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		if k%10 == 0 {
			if err := scan.DeleteCurrent(); err != nil {
				t.Fatalf("DeleteCurrent(%d): %v", k, err)
			}
			deleted++
		}
	}
	assertNoLeaks(t, pool)

	if deleted != 20 {
		t.Fatalf("deleted %d entries via DeleteCurrent, want 20", deleted)
	}

	verify, err := tr.OpenScan(nil, nil)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	count := 0
	for {
		k, _, err := verify.GetNext()
		if err == ErrDone {
			break
		}
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		if k%10 == 0 {
			t.Fatalf("key %d should have been deleted via the cursor", k)
		}
		count++
	}
	assertNoLeaks(t, pool)
	if count != 180 {
		t.Fatalf("%d entries survived, want 180", count)
	}
}

func TestDestroyFileFreesEveryPage(t *testing.T) {
	tr, pool := newTestTree(t)
	for k := int32(1); k <= 2000; k++ {
		if err := tr.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := tr.DestroyFile(); err != nil {
		t.Fatalf("DestroyFile: %v", err)
	}
	if pool.Resident() != 0 {
		t.Fatalf("%d pages still resident after DestroyFile", pool.Resident())
	}
}
