package topicmap

import (
	"fmt"
	"testing"
)

func TestPutGet(t *testing.T) {
	m := New[int]()
	m.Put("ns", "topic.a", 1)
	m.Put("ns", "topic.b", 2)

	v, ok := m.Get("ns", "topic.a")
	if !ok || v != 1 {
		t.Fatalf("got %v,%v want 1,true", v, ok)
	}
	v, ok = m.Get("ns", "topic.b")
	if !ok || v != 2 {
		t.Fatalf("got %v,%v want 2,true", v, ok)
	}
	if _, ok := m.Get("ns", "missing"); ok {
		t.Fatalf("expected miss")
	}
}

func TestPutOverwrite(t *testing.T) {
	m := New[int]()
	m.Put("ns", "t", 1)
	m.Put("ns", "t", 2)
	if m.Len() != 1 {
		t.Fatalf("expected single entry after overwrite, got %d", m.Len())
	}
	v, _ := m.Get("ns", "t")
	if v != 2 {
		t.Fatalf("got %d want 2", v)
	}
}

func TestDeleteThenLookupMiss(t *testing.T) {
	m := New[int]()
	m.Put("ns", "t1", 1)
	m.Put("ns", "t2", 2)
	if !m.Delete("ns", "t1") {
		t.Fatalf("expected delete to succeed")
	}
	if _, ok := m.Get("ns", "t1"); ok {
		t.Fatalf("expected miss after delete")
	}
	v, ok := m.Get("ns", "t2")
	if !ok || v != 2 {
		t.Fatalf("delete of one key disturbed another: %v %v", v, ok)
	}
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	m := New[int]()
	if m.Delete("ns", "nope") {
		t.Fatalf("expected false deleting an absent key")
	}
}

func TestManyEntriesSurviveResize(t *testing.T) {
	m := New[int]()
	const n = 2000
	for i := 0; i < n; i++ {
		m.Put("ns", fmt.Sprintf("topic-%d", i), i)
	}
	if m.Len() != n {
		t.Fatalf("got %d entries, want %d", m.Len(), n)
	}
	for i := 0; i < n; i++ {
		v, ok := m.Get("ns", fmt.Sprintf("topic-%d", i))
		if !ok || v != i {
			t.Fatalf("topic-%d: got %v,%v", i, v, ok)
		}
	}
}

func TestLoadFactorStaysInBand(t *testing.T) {
	m := New[int]()
	for i := 0; i < 5000; i++ {
		m.Put("ns", fmt.Sprintf("t-%d", i), i)
		if lf := m.loadFactor(); lf > highLoad+0.01 {
			t.Fatalf("load factor %.3f exceeded high threshold after %d inserts", lf, i)
		}
	}
}

func TestDeleteManyThenRefill(t *testing.T) {
	m := New[int]()
	const n = 500
	for i := 0; i < n; i++ {
		m.Put("ns", fmt.Sprintf("t-%d", i), i)
	}
	for i := 0; i < n; i += 2 {
		m.Delete("ns", fmt.Sprintf("t-%d", i))
	}
	if m.Len() != n/2 {
		t.Fatalf("got %d want %d", m.Len(), n/2)
	}
	for i := 1; i < n; i += 2 {
		v, ok := m.Get("ns", fmt.Sprintf("t-%d", i))
		if !ok || v != i {
			t.Fatalf("t-%d: got %v,%v", i, v, ok)
		}
	}
}

func TestCompactRemovesDeadEntries(t *testing.T) {
	m := New[int]()
	m.Put("ns", "dead", 1)
	m.Put("ns", "alive", 2)
	removed := m.Compact(func(v int) bool { return v != 1 })
	if removed != 1 {
		t.Fatalf("got %d removed, want 1", removed)
	}
	if _, ok := m.Get("ns", "dead"); ok {
		t.Fatalf("dead entry survived compaction")
	}
	if v, ok := m.Get("ns", "alive"); !ok || v != 2 {
		t.Fatalf("alive entry lost during compaction: %v %v", v, ok)
	}
}

func TestDifferentNamespacesSameTopic(t *testing.T) {
	m := New[string]()
	m.Put("ns1", "t", "a")
	m.Put("ns2", "t", "b")
	v1, _ := m.Get("ns1", "t")
	v2, _ := m.Get("ns2", "t")
	if v1 != "a" || v2 != "b" {
		t.Fatalf("namespace collision: %q %q", v1, v2)
	}
}
