package page

import (
	"encoding/binary"
	"testing"
)

func record(key int32, tail string) []byte {
	b := make([]byte, 4+len(tail))
	binary.LittleEndian.PutUint32(b[0:4], uint32(key))
	copy(b[4:], tail)
	return b
}

func newTestPage(t *testing.T, size int) *Slotted {
	t.Helper()
	buf := make([]byte, size)
	return Init(buf, 1, TypeLeaf)
}

func TestInsertKeepsAscendingOrder(t *testing.T) {
	s := newTestPage(t, 256)
	keys := []int32{5, 1, 9, 3, 7}
	for _, k := range keys {
		if _, err := s.InsertRecord(record(k, "x")); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	want := []int32{1, 3, 5, 7, 9}
	if s.NumSlots() != len(want) {
		t.Fatalf("numSlots = %d, want %d", s.NumSlots(), len(want))
	}
	for i, w := range want {
		rec, err := s.GetRecord(i)
		if err != nil {
			t.Fatalf("GetRecord(%d): %v", i, err)
		}
		if got := keyOf(rec); got != w {
			t.Errorf("slot %d key = %d, want %d", i, got, w)
		}
	}
}

func TestDeleteRecordCompactsDirectoryAndData(t *testing.T) {
	s := newTestPage(t, 256)
	for _, k := range []int32{1, 2, 3, 4} {
		if _, err := s.InsertRecord(record(k, "xx")); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	if err := s.DeleteRecordAt(1); err != nil { // delete key=2
		t.Fatalf("delete: %v", err)
	}
	if s.NumSlots() != 3 {
		t.Fatalf("numSlots after delete = %d, want 3", s.NumSlots())
	}
	var got []int32
	for i := 0; i < s.NumSlots(); i++ {
		rec, err := s.GetRecord(i)
		if err != nil {
			t.Fatalf("GetRecord(%d): %v", i, err)
		}
		got = append(got, keyOf(rec))
	}
	want := []int32{1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys = %v, want %v", got, want)
			break
		}
	}
	// Every remaining record must still be readable intact.
	for i := 0; i < s.NumSlots(); i++ {
		rec, _ := s.GetRecord(i)
		if len(rec) != 6 {
			t.Errorf("slot %d length = %d, want 6", i, len(rec))
		}
	}
}

func TestAvailableSpaceShrinksAndRecoversOnDelete(t *testing.T) {
	s := newTestPage(t, 256)
	before := s.AvailableSpace()
	if _, err := s.InsertRecord(record(1, "12345678")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	mid := s.AvailableSpace()
	if mid >= before {
		t.Fatalf("available space did not shrink: before=%d mid=%d", before, mid)
	}
	if err := s.DeleteRecordAt(0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after := s.AvailableSpace()
	if after != before {
		t.Fatalf("available space after delete = %d, want %d (fully recovered)", after, before)
	}
}

func TestInsertFailsWhenFull(t *testing.T) {
	s := newTestPage(t, HeaderSize+SlotSize+8)
	if _, err := s.InsertRecord(record(1, "1234")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.InsertRecord(record(2, "1234")); err != ErrNoSpace {
		t.Fatalf("second insert err = %v, want ErrNoSpace", err)
	}
}
