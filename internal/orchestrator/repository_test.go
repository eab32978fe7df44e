package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"blink-crossfade/internal/catalog"
	"blink-crossfade/internal/sim"
)

func newIdleSession(t *testing.T, id SessionID) *Session {
	t.Helper()
	cat, err := catalog.New(2, "")
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return NewSession(id, SessionConfig{}, cat, &sim.Provider{AudioLength: time.Second}, nil, discardLogger())
}

func TestInMemoryRepository_add_get_remove(t *testing.T) {
	repo := NewInMemoryRepository()
	s := newIdleSession(t, "a")

	if err := repo.Add(s); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Add(newIdleSession(t, "a")); !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
	got, ok := repo.Get("a")
	if !ok || got != s {
		t.Fatal("Get should return the added session")
	}
	if n := repo.ActiveSessionCount(); n != 1 {
		t.Errorf("expected 1 active session, got %d", n)
	}

	removed, ok := repo.Remove("a")
	if !ok || removed != s {
		t.Fatal("Remove should return the session")
	}
	if _, ok := repo.Remove("a"); ok {
		t.Error("second Remove should report not found")
	}
	if _, ok := repo.Get("a"); ok {
		t.Error("session should be gone")
	}
}

func TestInMemoryRepository_list(t *testing.T) {
	repo := NewInMemoryRepositoryWithStore(NewInMemoryStore())
	for _, id := range []SessionID{"c", "a", "b"} {
		if err := repo.Add(newIdleSession(t, id)); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}

	var ids []string
	for _, s := range repo.List() {
		ids = append(ids, string(s.ID()))
	}
	sort.Strings(ids)
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestInMemoryRepository_concurrent(t *testing.T) {
	repo := NewInMemoryRepository()
	sessions := make([]*Session, 50)
	for i := range sessions {
		sessions[i] = newIdleSession(t, SessionID(fmt.Sprintf("s%d", i)))
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_ = repo.Add(s)
			_, _ = repo.Get(s.ID())
			_ = repo.ActiveSessionCount()
		}(s)
	}
	wg.Wait()

	if n := repo.ActiveSessionCount(); n != len(sessions) {
		t.Errorf("expected %d sessions, got %d", len(sessions), n)
	}
}

func TestInMemoryStore(t *testing.T) {
	st := NewInMemoryStore()
	s := newIdleSession(t, "x")

	if _, ok := st.GetSession("x"); ok {
		t.Fatal("empty store should not find x")
	}
	st.SetSession(s)
	if got, ok := st.GetSession("x"); !ok || got != s {
		t.Error("GetSession should return the stored session")
	}
	if ids := st.ListSessionIDs(); len(ids) != 1 || ids[0] != "x" {
		t.Errorf("unexpected ids %v", ids)
	}
	st.DeleteSession("x")
	st.DeleteSession("x")
	if len(st.ListSessionIDs()) != 0 {
		t.Error("store should be empty")
	}
}
