package substore

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.snap")
	want := []Record{
		{TenantID: 1, Namespace: "ns", Topic: "t1", Seqno: 5},
		{TenantID: 1, Namespace: "ns", Topic: "t2", Seqno: 9},
	}
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.snap")
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %v", got)
	}
}

func TestWriteSnapshotOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.snap")
	if err := WriteSnapshot(path, []Record{{Namespace: "ns", Topic: "a", Seqno: 1}, {Namespace: "ns", Topic: "b", Seqno: 2}}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteSnapshot(path, []Record{{Namespace: "ns", Topic: "c", Seqno: 3}}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].Topic != "c" {
		t.Fatalf("expected overwrite to leave only the second write's record, got %v", got)
	}
}
