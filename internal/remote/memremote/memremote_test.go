package memremote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmartinez-dev/hilo/internal/remote"
)

func TestCreateAssignsServerTimestamp(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Create(ctx, "chats/c1/messages", map[string]any{
		"content":   "hola",
		"timestamp": remote.ServerTimestamp,
	})
	if err != nil {
		t.Fatal(err)
	}
	doc, ok, err := s.Get(ctx, "chats/c1/messages", id)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	ts, isInt := doc.Fields["timestamp"].(int64)
	if !isInt || ts <= 0 {
		t.Errorf("timestamp = %v, want server-assigned int64", doc.Fields["timestamp"])
	}
}

func TestServerTimestampsMonotonic(t *testing.T) {
	s := New()
	ctx := context.Background()
	var last int64
	for i := 0; i < 20; i++ {
		id, err := s.Create(ctx, "m", map[string]any{"timestamp": remote.ServerTimestamp})
		if err != nil {
			t.Fatal(err)
		}
		doc, _, _ := s.Get(ctx, "m", id)
		ts := doc.Fields["timestamp"].(int64)
		if ts <= last {
			t.Fatalf("timestamp %d not after %d", ts, last)
		}
		last = ts
	}
}

func TestQueryOrderLimitStartAfter(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, ts := range []int64{10, 20, 30, 40, 50} {
		if err := s.Set(ctx, "m", fmt.Sprintf("id-%d", ts), map[string]any{"timestamp": ts}); err != nil {
			t.Fatal(err)
		}
	}

	first, err := s.Query(ctx, remote.Query{Path: "m", OrderBy: "timestamp", Descending: true, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first[0].Fields["timestamp"].(int64) != 50 || first[1].Fields["timestamp"].(int64) != 40 {
		t.Fatalf("first page = %v", first)
	}

	next, err := s.Query(ctx, remote.Query{Path: "m", OrderBy: "timestamp", Descending: true, Limit: 2, StartAfter: int64(40)})
	if err != nil {
		t.Fatal(err)
	}
	if len(next) != 2 || next[0].Fields["timestamp"].(int64) != 30 || next[1].Fields["timestamp"].(int64) != 20 {
		t.Fatalf("next page = %v", next)
	}
}

func TestQueryArrayContains(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "chats", "c1", map[string]any{"participantIds": []string{"u1", "u2"}})
	_ = s.Set(ctx, "chats", "c2", map[string]any{"participantIds": []string{"u2", "u3"}})

	docs, err := s.Query(ctx, remote.Query{
		Path:    "chats",
		Filters: []remote.Filter{{Field: "participantIds", Op: "array-contains", Value: "u1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "c1" {
		t.Errorf("docs = %v, want only c1", docs)
	}
}

func TestSubscribeSnapshotThenIncrement(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "m", "m1", map[string]any{"timestamp": int64(1)})

	snaps := make(chan remote.Snapshot, 10)
	cancel, err := s.Subscribe(remote.Query{Path: "m", OrderBy: "timestamp", Descending: true}, func(snap remote.Snapshot) {
		snaps <- snap
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	initial := waitSnap(t, snaps)
	if !initial.Initial || len(initial.Docs) != 1 {
		t.Fatalf("initial = %+v, want Initial with 1 doc", initial)
	}

	_ = s.Set(ctx, "m", "m2", map[string]any{"timestamp": int64(2)})
	delta := waitSnap(t, snaps)
	if delta.Initial {
		t.Fatal("second delivery still marked initial")
	}
	if len(delta.Changes) != 1 || delta.Changes[0].Kind != remote.Added || delta.Changes[0].NewIndex != 0 {
		t.Fatalf("changes = %+v, want one Added at index 0", delta.Changes)
	}

	// In-place modification of an existing doc.
	_ = s.Update(ctx, "m", "m1", map[string]any{"read": true})
	mod := waitSnap(t, snaps)
	if len(mod.Changes) != 1 || mod.Changes[0].Kind != remote.Modified {
		t.Fatalf("changes = %+v, want one Modified", mod.Changes)
	}
}

func TestSubscribeBackfillIndexNotZero(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "m", "m2", map[string]any{"timestamp": int64(20)})

	snaps := make(chan remote.Snapshot, 10)
	cancel, _ := s.Subscribe(remote.Query{Path: "m", OrderBy: "timestamp", Descending: true}, func(snap remote.Snapshot) {
		snaps <- snap
	})
	defer cancel()
	waitSnap(t, snaps)

	// An older doc landing in the window must not surface at index 0.
	_ = s.Set(ctx, "m", "m1", map[string]any{"timestamp": int64(10)})
	delta := waitSnap(t, snaps)
	if delta.Changes[0].NewIndex == 0 {
		t.Error("back-filled older doc reported at head of window")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	s := New()
	ctx := context.Background()
	snaps := make(chan remote.Snapshot, 10)
	cancel, _ := s.Subscribe(remote.Query{Path: "m"}, func(snap remote.Snapshot) { snaps <- snap })
	waitSnap(t, snaps)

	cancel()
	cancel() // safe to call twice
	_ = s.Set(ctx, "m", "m1", map[string]any{"timestamp": int64(1)})

	select {
	case snap := <-snaps:
		t.Fatalf("delivery after cancel: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdateMissingDocFails(t *testing.T) {
	s := New()
	if err := s.Update(context.Background(), "m", "ghost", map[string]any{"read": true}); err == nil {
		t.Error("Update of missing doc succeeded")
	}
}

func TestInjectedErrors(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.SetWriteError(boom)
	if _, err := s.Create(ctx, "m", nil); !errors.Is(err, boom) {
		t.Errorf("Create error = %v, want boom", err)
	}
	s.SetWriteError(nil)

	s.SetReadError(boom)
	if _, err := s.Query(ctx, remote.Query{Path: "m"}); !errors.Is(err, boom) {
		t.Errorf("Query error = %v, want boom", err)
	}
	if _, err := s.Subscribe(remote.Query{Path: "m"}, func(remote.Snapshot) {}); !errors.Is(err, boom) {
		t.Errorf("Subscribe error = %v, want boom", err)
	}
	if _, err := s.SubscribeDoc("users", "u1", func(remote.Doc) {}); !errors.Is(err, boom) {
		t.Errorf("SubscribeDoc error = %v, want boom", err)
	}
}

func waitSnap(t *testing.T, ch chan remote.Snapshot) remote.Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
		return remote.Snapshot{}
	}
}

func TestSlowSubscriberCatchesUpAfterDrops(t *testing.T) {
	s := New()
	ctx := context.Background()

	gate := make(chan struct{})
	var mu sync.Mutex
	seen := map[string]bool{}
	cancel, err := s.Subscribe(remote.Query{Path: "m", OrderBy: "timestamp"}, func(snap remote.Snapshot) {
		<-gate
		mu.Lock()
		for _, c := range snap.Changes {
			if c.Kind == remote.Added {
				seen[c.Doc.ID] = true
			}
		}
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	// While delivery is blocked, write past the channel's buffer so some
	// deltas are dropped.
	const n = 80
	for i := 0; i < n; i++ {
		if err := s.Set(ctx, "m", fmt.Sprintf("id-%03d", i), map[string]any{"timestamp": int64(i + 1)}); err != nil {
			t.Fatal(err)
		}
	}
	close(gate)

	// The next write must carry a delta diffed against the last window the
	// subscriber received, re-surfacing everything that was dropped.
	time.Sleep(50 * time.Millisecond)
	if err := s.Set(ctx, "m", "id-last", map[string]any{"timestamp": int64(n + 1)}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := len(seen)
		mu.Unlock()
		if got == n+1 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("subscriber saw %d of %d additions", got, n+1)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
