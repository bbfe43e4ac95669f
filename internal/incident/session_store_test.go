package incident

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionStore_CopiesAreIsolated(t *testing.T) {
	store := NewSessionStore()
	store.GetOrCreate("a")

	_, err := store.Update("a", func(s *Session) error {
		s.Analysis = &Analysis{Summary: "first", Violations: []Violation{{Severity: SeverityHigh}}}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := store.Get("a")
	got.Analysis.Summary = "mutated"
	got.Analysis.Violations[0].Severity = SeverityLow

	again, _ := store.Get("a")
	if again.Analysis.Summary != "first" || again.Analysis.Violations[0].Severity != SeverityHigh {
		t.Fatalf("stored session was mutated through a returned copy: %+v", again.Analysis)
	}
	if again.Version != 1 {
		t.Fatalf("expected version 1, got %d", again.Version)
	}
}

func TestSessionStore_UpdateErrorLeavesSession(t *testing.T) {
	store := NewSessionStore()
	store.GetOrCreate("a")

	boom := errors.New("boom")
	_, err := store.Update("a", func(s *Session) error {
		s.Transcript = "half written"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := store.Get("a")
	if got.Transcript != "" || got.Version != 0 {
		t.Fatalf("session changed on failed update: %+v", got)
	}

	if _, err := store.Update("missing", func(*Session) error { return nil }); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStore_SessionsIndependent(t *testing.T) {
	store := NewSessionStore()
	store.GetOrCreate("a")
	store.GetOrCreate("b")

	if _, err := store.Update("a", func(s *Session) error { s.Transcript = "A"; return nil }); err != nil {
		t.Fatal(err)
	}
	b, _ := store.Get("b")
	if b.Transcript != "" {
		t.Fatalf("session b affected by update to a: %q", b.Transcript)
	}

	if !store.Delete("a") || store.Delete("a") {
		t.Fatal("expected delete to report existence exactly once")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestExpectVersion(t *testing.T) {
	store := NewSessionStore()
	sess := store.GetOrCreate("a")

	if _, err := store.Update("a", func(s *Session) error { s.Transcript = "racer"; return nil }); err != nil {
		t.Fatal(err)
	}
	_, err := store.Update("a", expectVersion(sess.Version, func(s *Session) error {
		s.Transcript = "stale"
		return nil
	}))
	if !errors.Is(err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}
	got, _ := store.Get("a")
	if got.Transcript != "racer" {
		t.Fatalf("stale write applied: %q", got.Transcript)
	}
}

func TestSessionStore_LockSerializesSameID(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}

	// A different id is never blocked.
	other, err := store.Lock(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	other()

	acquired := make(chan struct{})
	go func() {
		u, err := store.Lock(ctx, "a")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on same id acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	unlock() // idempotent
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestSessionStore_LockHonorsContext(t *testing.T) {
	store := NewSessionStore()
	unlock, err := store.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSessionStore_ConcurrentUpdates(t *testing.T) {
	store := NewSessionStore()
	store.GetOrCreate("a")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Update("a", func(s *Session) error { return nil })
			_, _ = store.Get("a")
		}()
	}
	wg.Wait()

	got, _ := store.Get("a")
	if got.Version != 50 {
		t.Fatalf("expected version 50, got %d", got.Version)
	}
}
