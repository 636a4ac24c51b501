package sqlite

import (
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	s := newStore(t)
	if err := s.Set("printstack_dev_filaments", `[]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := s.Get("printstack_dev_filaments")
	if err != nil || !ok || value != `[]` {
		t.Fatalf("get = %q ok=%v err=%v", value, ok, err)
	}
	if _, ok, _ := s.Get("missing"); ok {
		t.Fatal("absent key reported present")
	}
}

func TestUpsert(t *testing.T) {
	s := newStore(t)
	s.Set("k", "1")
	if err := s.Set("k", "2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _, _ := s.Get("k")
	if value != "2" {
		t.Fatalf("value = %q", value)
	}
}

func TestRemoveClearKeys(t *testing.T) {
	s := newStore(t)
	for _, k := range []string{"b", "a", "c"} {
		s.Set(k, "v")
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("keys = %v", keys)
	}

	if err := s.Remove("b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove("b"); err != nil {
		t.Fatalf("removing absent key: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	keys, _ = s.Keys()
	if len(keys) != 0 {
		t.Fatalf("keys after clear = %v", keys)
	}
}

func TestPersistenceAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	value, ok, err := second.Get("k")
	if err != nil || !ok || value != "v" {
		t.Fatalf("get after reopen = %q ok=%v err=%v", value, ok, err)
	}
}
