package conversation

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	if sess, err := store.Get(ctx, 1); err != nil || sess != nil {
		t.Fatalf("Get on empty store = %v, %v", sess, err)
	}

	sess := newSession(1, "/x", time.Now())
	sess.Attrs.Set("k", "v")
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, 1)
	if err != nil || got == nil || got.Command != "/x" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len = %d", store.Len())
	}
}

func TestMemoryStoreDetachesSessions(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	sess := newSession(1, "/x", time.Now())
	sess.Attrs.Set("k", "v")
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Mutations on the caller's copy must not leak into the store.
	sess.StateIndex = 9
	sess.Attrs.Set("k", "overwritten")

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StateIndex != 0 {
		t.Fatalf("stored StateIndex = %d, want 0", got.StateIndex)
	}
	if v, _ := got.Attrs.String("k"); v != "v" {
		t.Fatalf("stored attr = %q, want v", v)
	}

	// And mutations on one Get result must not reach another.
	got.Attrs.Set("k2", "x")
	again, _ := store.Get(ctx, 1)
	if again.Attrs.Len() != 1 {
		t.Fatalf("Get results share attrs: %v", again.Attrs.Keys())
	}
}

// The janitor reads stored entries while the engine mutates sessions
// between Get and Put; run both at once so the race detector can see any
// shared state.
func TestSweepDuringActiveTurns(t *testing.T) {
	engine, _, store, _ := newTestEngine(t, groupCommand())
	store.ttl = time.Hour

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				store.sweep(time.Now())
			}
		}
	}()

	ctx := context.Background()
	p := Principal{ID: 31}
	for i := 0; i < 500; i++ {
		if err := engine.HandleMessage(ctx, Inbound{Principal: p, Text: "/x"}); err != nil {
			t.Fatalf("invocation turn: %v", err)
		}
		if err := engine.HandleMessage(ctx, Inbound{Principal: p, Text: "Alpha"}); err != nil {
			t.Fatalf("answer turn: %v", err)
		}
	}
	close(done)
	wg.Wait()

	if store.Len() != 0 {
		t.Fatalf("%d sessions left after completed runs", store.Len())
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	var evicted int
	store.SetEvictHook(func(count int) { evicted += count })

	stale := newSession(1, "/x", time.Now().Add(-2*time.Hour))
	fresh := newSession(2, "/x", time.Now())
	if err := store.Put(ctx, stale); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, fresh); err != nil {
		t.Fatalf("Put: %v", err)
	}

	store.sweep(time.Now())

	if store.Len() != 1 {
		t.Fatalf("Len after sweep = %d", store.Len())
	}
	if evicted != 1 {
		t.Fatalf("evict hook count = %d", evicted)
	}
	if sess, _ := store.Get(ctx, 2); sess == nil {
		t.Fatalf("fresh session swept")
	}
}
