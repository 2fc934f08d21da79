package props

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func decodeSnapshot(t *testing.T, s *Store) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(s.Snapshot(), &m); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	return m
}

func TestPushAndSnapshot(t *testing.T) {
	s := NewStore()

	g1, err := s.Push("service", "billing")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	defer g1.Release()

	g2, err := s.Push("attempt", 3)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	defer g2.Release()

	m := decodeSnapshot(t, s)
	if m["service"] != "billing" {
		t.Errorf("service = %v, want billing", m["service"])
	}
	if m["attempt"] != float64(3) {
		t.Errorf("attempt = %v, want 3", m["attempt"])
	}
	if len(m) != 2 {
		t.Errorf("snapshot has %d keys, want 2", len(m))
	}
}

func TestPushOverwritesSameName(t *testing.T) {
	s := NewStore()

	g1, _ := s.Push("user", "alice")
	defer g1.Release()
	g2, _ := s.Push("user", "bob")
	defer g2.Release()

	m := decodeSnapshot(t, s)
	if m["user"] != "bob" {
		t.Errorf("user = %v, want last-pushed bob", m["user"])
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestReleaseRemovesProperty(t *testing.T) {
	s := NewStore()

	g, _ := s.Push("temp", true)
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	g.Release()
	if s.Len() != 0 {
		t.Errorf("len = %d after release, want 0", s.Len())
	}
}

// Nested pushes under the same name: the inner guard's release removes the
// name outright, even though the outer guard is still live. Documented
// behavior, pinned here on purpose.
func TestNestedSameNameRelease(t *testing.T) {
	s := NewStore()

	outer, _ := s.Push("scope", "outer")
	defer outer.Release()

	inner, _ := s.Push("scope", "inner")
	inner.Release()

	m := decodeSnapshot(t, s)
	if _, ok := m["scope"]; ok {
		t.Errorf("scope still present after inner release: %v", m["scope"])
	}
}

func TestReleaseIdempotent(t *testing.T) {
	s := NewStore()

	g1, _ := s.Push("key", 1)
	g1.Release()

	// Re-push under the same name; the stale guard's second release must
	// not remove the new value.
	g2, _ := s.Push("key", 2)
	defer g2.Release()
	g1.Release()

	m := decodeSnapshot(t, s)
	if m["key"] != float64(2) {
		t.Errorf("key = %v, want 2", m["key"])
	}
}

func TestPushUnserializableValue(t *testing.T) {
	s := NewStore()

	if _, err := s.Push("bad", make(chan int)); err == nil {
		t.Fatal("expected error for unserializable value")
	}
	if s.Len() != 0 {
		t.Errorf("failed push left %d entries in store", s.Len())
	}
}

func TestSnapshotRoundTripsNestedValues(t *testing.T) {
	s := NewStore()

	g, err := s.Push("payload", map[string]any{
		"age":    30,
		"name":   "carol",
		"active": true,
		"tags":   []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	defer g.Release()

	m := decodeSnapshot(t, s)
	p, ok := m["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload is %T, want object", m["payload"])
	}
	if p["age"] != float64(30) {
		t.Errorf("age = %v, want 30", p["age"])
	}
	if p["name"] != "carol" {
		t.Errorf("name = %v, want carol", p["name"])
	}
	if p["active"] != true {
		t.Errorf("active = %v, want true", p["active"])
	}
}

func TestConcurrentPushSnapshotRelease(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				g, err := s.Push(fmt.Sprintf("p%d", n), j)
				if err != nil {
					t.Errorf("push: %v", err)
					return
				}
				_ = s.Snapshot()
				g.Release()
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("len = %d after all guards released, want 0", s.Len())
	}
}
