package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/realtime"
	"github.com/desertthunder/tapedeck/internal/shared"
	tu "github.com/desertthunder/tapedeck/internal/testing"
	"github.com/google/go-cmp/cmp"
)

type memCache struct {
	mu      sync.Mutex
	items   map[string]models.LibraryItem
	listErr error
	writes  int
}

func newMemCache(items ...models.LibraryItem) *memCache {
	c := &memCache{items: map[string]models.LibraryItem{}}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *memCache) List(ctx context.Context) ([]models.LibraryItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make([]models.LibraryItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	return out, nil
}

func (c *memCache) ReplaceAll(ctx context.Context, items []models.LibraryItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.items = map[string]models.LibraryItem{}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return nil
}

func (c *memCache) Upsert(ctx context.Context, item models.LibraryItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.items[item.ID] = item
	return nil
}

func (c *memCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	delete(c.items, id)
	return nil
}

func (c *memCache) ids() []string {
	items, _ := c.List(context.Background())
	return ids(NewCollection(items))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReconcilerLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("network load writes through", func(t *testing.T) {
		source := &tu.FakeAudioSource{}
		source.SetItems(item("a", 1), item("b", 0))
		cache := newMemCache()
		r := NewReconciler(NewStore(), source, nil, WithCache(cache))

		if err := r.Load(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := r.Store().Snapshot()
		if !snap.Loaded {
			t.Error("expected snapshot to be marked loaded")
		}
		if diff := cmp.Diff([]string{"b", "a"}, ids(snap.Collection)); diff != "" {
			t.Errorf("store mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"b", "a"}, cache.ids()); diff != "" {
			t.Errorf("cache mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("cache survives network failure", func(t *testing.T) {
		source := &tu.FakeAudioSource{ListErr: shared.ErrAPIRequest}
		r := NewReconciler(NewStore(), source, nil, WithCache(newMemCache(item("cached", 0))))

		if err := r.Load(ctx); err != nil {
			t.Fatalf("expected cached load to succeed, got %v", err)
		}
		snap := r.Store().Snapshot()
		if !snap.Collection.Has("cached") {
			t.Error("expected cached item to be visible")
		}
		if !errors.Is(snap.LastError, shared.ErrAPIRequest) {
			t.Errorf("expected refresh error to be recorded, got %v", snap.LastError)
		}
	})

	t.Run("network failure without cache", func(t *testing.T) {
		source := &tu.FakeAudioSource{ListErr: shared.ErrAPIRequest}
		r := NewReconciler(NewStore(), source, nil)
		if err := r.Load(ctx); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("unreadable cache falls back to network", func(t *testing.T) {
		source := &tu.FakeAudioSource{}
		source.SetItems(item("net", 0))
		cache := newMemCache()
		cache.listErr = errors.New("disk on fire")
		r := NewReconciler(NewStore(), source, nil, WithCache(cache))

		if err := r.Load(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !r.Store().Snapshot().Collection.Has("net") {
			t.Error("expected network item")
		}
	})
}

func TestReconcilerEvents(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Reconciler, *tu.FakeAudioSource, *tu.FakeChannel, *memCache) {
		t.Helper()
		source := &tu.FakeAudioSource{}
		source.SetItems(item("a", 2), item("b", 1))
		channel := tu.NewFakeChannel()
		cache := newMemCache()
		r := NewReconciler(NewStore(), source, channel, WithCache(cache))
		if err := r.Load(ctx); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		return r, source, channel, cache
	}

	t.Run("connected subscribes", func(t *testing.T) {
		r, source, channel, _ := setup(t)
		r.HandleEvent(ctx, realtime.Event{Type: realtime.Connected})

		if channel.Subscriptions() != 1 {
			t.Errorf("expected one subscription, got %d", channel.Subscriptions())
		}
		if r.Store().Snapshot().Channel != ChannelConnected {
			t.Error("expected channel to be marked connected")
		}
		if source.Lists() != 1 {
			t.Errorf("expected no refresh on first connect, got %d lists", source.Lists())
		}
	})

	t.Run("reconnected refreshes", func(t *testing.T) {
		r, source, channel, _ := setup(t)
		r.HandleEvent(ctx, realtime.Event{Type: realtime.Disconnected})
		if r.Store().Snapshot().Channel != ChannelDisconnected {
			t.Error("expected channel to be marked disconnected")
		}

		source.SetItems(item("a", 2), item("missed", 0))
		r.HandleEvent(ctx, realtime.Event{Type: realtime.Reconnected})

		if channel.Subscriptions() != 1 {
			t.Errorf("expected resubscribe, got %d", channel.Subscriptions())
		}
		if diff := cmp.Diff([]string{"missed", "a"}, ids(r.Store().Snapshot().Collection)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("data events write through", func(t *testing.T) {
		r, _, _, cache := setup(t)
		r.HandleEvent(ctx, realtime.Event{Type: realtime.ItemAdded, Item: item("c", 0)})
		r.HandleEvent(ctx, realtime.Event{Type: realtime.ItemAdded, Item: item("c", 0)})
		r.HandleEvent(ctx, realtime.Event{Type: realtime.ItemDeleted, ID: "a"})

		want := []string{"c", "b"}
		if diff := cmp.Diff(want, ids(r.Store().Snapshot().Collection)); diff != "" {
			t.Errorf("store mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want, cache.ids()); diff != "" {
			t.Errorf("cache mismatch (-want +got):\n%s", diff)
		}

		r.HandleEvent(ctx, realtime.Event{Type: realtime.ListReplaced, Items: []models.LibraryItem{item("z", 0)}})
		if diff := cmp.Diff([]string{"z"}, cache.ids()); diff != "" {
			t.Errorf("cache mismatch after replace (-want +got):\n%s", diff)
		}
	})

	t.Run("errors keep the collection", func(t *testing.T) {
		r, _, _, _ := setup(t)
		r.HandleEvent(ctx, realtime.Event{Type: realtime.Error, Err: shared.ErrBadEvent})

		snap := r.Store().Snapshot()
		if !errors.Is(snap.LastError, shared.ErrBadEvent) {
			t.Errorf("expected ErrBadEvent, got %v", snap.LastError)
		}
		if snap.Collection.Len() != 2 {
			t.Errorf("expected collection to survive, got %d items", snap.Collection.Len())
		}
	})

	t.Run("subscribe failure is recorded", func(t *testing.T) {
		r, _, channel, _ := setup(t)
		channel.SubscribeErr = shared.ErrChannelClosed
		r.HandleEvent(ctx, realtime.Event{Type: realtime.Connected})
		if !errors.Is(r.Store().Snapshot().LastError, shared.ErrChannelClosed) {
			t.Error("expected subscribe error to be recorded")
		}
	})
}

func TestReconcilerRun(t *testing.T) {
	source := &tu.FakeAudioSource{}
	source.SetItems(item("a", 1))
	channel := tu.NewFakeChannel()
	r := NewReconciler(NewStore(), source, channel)

	updates, cancelSub := r.Store().Subscribe()
	defer cancelSub()
	<-updates

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	<-channel.Running()
	waitFor(t, "initial load", func() bool { return r.Store().Snapshot().Loaded })

	channel.Emit(realtime.Event{Type: realtime.Connected})
	channel.Emit(realtime.Event{Type: realtime.ItemAdded, Item: item("b", 0)})

	waitFor(t, "item b", func() bool { return r.Store().Snapshot().Collection.Has("b") })
	select {
	case snap := <-updates:
		if snap.Collection.Len() == 0 && !snap.Loaded {
			t.Error("expected a populated snapshot update")
		}
	case <-time.After(time.Second):
		t.Error("expected subscribers to be notified")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

// gatedLister holds each ListSaved call until release is closed.
type gatedLister struct {
	items   []models.LibraryItem
	started chan struct{}
	release chan struct{}
}

func newGatedLister(items ...models.LibraryItem) *gatedLister {
	return &gatedLister{items: items, started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedLister) ListSaved(ctx context.Context) ([]models.LibraryItem, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return g.items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestReconcilerEventsDuringFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh keeps events that arrive mid-fetch", func(t *testing.T) {
		lister := newGatedLister(item("a", 2), item("b", 1))
		cache := newMemCache()
		r := NewReconciler(NewStore(), lister, nil, WithCache(cache))

		done := make(chan error, 1)
		go func() { done <- r.Refresh(ctx) }()
		<-lister.started

		r.HandleEvent(ctx, realtime.Event{Type: realtime.ItemAdded, Item: item("late", 0)})
		r.HandleEvent(ctx, realtime.Event{Type: realtime.ItemDeleted, ID: "a"})
		close(lister.release)

		if err := <-done; err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		want := []string{"late", "b"}
		if diff := cmp.Diff(want, ids(r.Store().Snapshot().Collection)); diff != "" {
			t.Errorf("store mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want, cache.ids()); diff != "" {
			t.Errorf("cache mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("events after the fetch are not replayed", func(t *testing.T) {
		lister := newGatedLister(item("a", 1))
		r := NewReconciler(NewStore(), lister, nil)

		close(lister.release)
		if err := r.Refresh(ctx); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		r.HandleEvent(ctx, realtime.Event{Type: realtime.ItemDeleted, ID: "a"})

		lister.items = []models.LibraryItem{item("a", 1), item("c", 0)}
		if err := r.Refresh(ctx); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if diff := cmp.Diff([]string{"c", "a"}, ids(r.Store().Snapshot().Collection)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("run keeps an item added during the initial load", func(t *testing.T) {
		lister := newGatedLister(item("a", 1))
		channel := tu.NewFakeChannel()
		r := NewReconciler(NewStore(), lister, channel)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() { _ = r.Run(runCtx) }()

		<-channel.Running()
		<-lister.started
		channel.Emit(realtime.Event{Type: realtime.Connected})
		channel.Emit(realtime.Event{Type: realtime.ItemAdded, Item: item("b", 0)})
		close(lister.release)

		waitFor(t, "initial load", func() bool {
			snap := r.Store().Snapshot()
			return snap.Loaded && snap.Collection.Len() == 2
		})
		if diff := cmp.Diff([]string{"b", "a"}, ids(r.Store().Snapshot().Collection)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestReconcilerResync(t *testing.T) {
	source := &tu.FakeAudioSource{}
	r := NewReconciler(NewStore(), source, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("disabled", func(t *testing.T) {
		if err := r.StartResync(ctx, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
		if source.Lists() != 0 {
			t.Errorf("expected no refresh, got %d", source.Lists())
		}
	})

	t.Run("refreshes periodically", func(t *testing.T) {
		if err := r.StartResync(ctx, 50*time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer r.Stop()
		waitFor(t, "resync", func() bool { return source.Lists() >= 2 })
	})
}
