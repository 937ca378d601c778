package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/realtime"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"
)

// Lister fetches the full saved-audio list from the backend.
type Lister interface {
	ListSaved(ctx context.Context) ([]models.LibraryItem, error)
}

// Cache persists the collection between runs.
type Cache interface {
	List(ctx context.Context) ([]models.LibraryItem, error)
	ReplaceAll(ctx context.Context, items []models.LibraryItem) error
	Upsert(ctx context.Context, item models.LibraryItem) error
	Delete(ctx context.Context, id string) error
}

type Option func(*Reconciler)

// WithCache enables the read-through cache.
func WithCache(c Cache) Option {
	return func(r *Reconciler) { r.cache = c }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// Reconciler keeps a [Store] in sync with the backend.
type Reconciler struct {
	store   *Store
	lister  Lister
	channel realtime.Channel
	cache   Cache
	logger  *log.Logger

	mu        sync.Mutex
	scheduler *gocron.Scheduler

	// fetchMu orders listing fetches against channel events. Data events applied
	// while a fetch is in flight are kept in pending and replayed over its result.
	fetchMu  sync.Mutex
	fetching int
	pending  []Action
}

// NewReconciler creates a reconciler. channel may be nil when live updates are disabled.
func NewReconciler(store *Store, lister Lister, channel realtime.Channel, opts ...Option) *Reconciler {
	r := &Reconciler{store: store, lister: lister, channel: channel}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	r.logger = r.logger.With("component", "library")
	return r
}

func (r *Reconciler) Store() *Store { return r.store }

// Load applies the cached collection, if any, then replaces it with the network listing.
// A network failure after a cache hit is recorded but not returned.
func (r *Reconciler) Load(ctx context.Context) error {
	cached := false
	if r.cache != nil {
		items, err := r.cache.List(ctx)
		switch {
		case err != nil:
			r.logger.Warn("failed to read library cache", "error", err)
		case len(items) > 0:
			r.store.Apply(Action{Kind: Loaded, Items: items})
			cached = true
			r.logger.Debug("library loaded from cache", "count", len(items))
		}
	}

	if err := r.Refresh(ctx); err != nil {
		if cached {
			return nil
		}
		return err
	}
	return nil
}

// Refresh fetches the full list and replaces the collection. Channel events that
// arrive during the fetch are applied again on top of the fetched list.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.fetchMu.Lock()
	r.fetching++
	r.fetchMu.Unlock()

	items, err := r.lister.ListSaved(ctx)

	r.fetchMu.Lock()
	r.fetching--
	replay := r.pending
	if r.fetching == 0 {
		r.pending = nil
	}
	if err != nil {
		r.fetchMu.Unlock()
		err = fmt.Errorf("failed to refresh library: %w", err)
		r.store.RecordError(err)
		r.logger.Error("library refresh failed", "error", err)
		return err
	}
	snap := r.store.Apply(Action{Kind: Loaded, Items: items})
	for _, a := range replay {
		snap = r.store.Apply(a)
	}
	r.fetchMu.Unlock()

	if len(replay) > 0 {
		r.logger.Debug("replayed events received during refresh", "count", len(replay))
	}
	r.logger.Info("library refreshed", "count", snap.Collection.Len())

	if r.cache != nil {
		if err := r.cache.ReplaceAll(ctx, snap.Collection.Items()); err != nil {
			r.logger.Warn("failed to write library cache", "error", err)
		}
	}
	return nil
}

// HandleEvent applies one channel event.
func (r *Reconciler) HandleEvent(ctx context.Context, ev realtime.Event) {
	switch ev.Type {
	case realtime.Connected:
		r.store.SetChannel(ChannelConnected)
		r.subscribe(ctx)
	case realtime.Reconnected:
		r.store.SetChannel(ChannelConnected)
		r.subscribe(ctx)
		// Events may have been missed while disconnected.
		_ = r.Refresh(ctx)
	case realtime.Disconnected:
		r.store.SetChannel(ChannelDisconnected)
	case realtime.Error:
		r.logger.Warn("update channel error", "error", ev.Err)
		r.store.RecordError(ev.Err)
	default:
		action, ok := ActionFromEvent(ev)
		if !ok {
			return
		}
		r.fetchMu.Lock()
		if r.fetching > 0 {
			r.pending = append(r.pending, action)
		}
		r.store.Apply(action)
		r.fetchMu.Unlock()
		r.writeThrough(ctx, action)
	}
}

func (r *Reconciler) subscribe(ctx context.Context) {
	if r.channel == nil {
		return
	}
	if err := r.channel.Subscribe(ctx); err != nil {
		r.logger.Warn("subscribe failed", "error", err)
		r.store.RecordError(err)
	}
}

func (r *Reconciler) writeThrough(ctx context.Context, a Action) {
	if r.cache == nil {
		return
	}

	var err error
	switch a.Kind {
	case ItemAdded:
		err = r.cache.Upsert(ctx, a.Item)
	case ItemDeleted:
		err = r.cache.Delete(ctx, a.ID)
	case ListReplaced:
		err = r.cache.ReplaceAll(ctx, r.store.Snapshot().Collection.Items())
	}
	if err != nil {
		r.logger.Warn("failed to write library cache", "action", a.Kind, "error", err)
	}
}

// Run loads the library and follows the update channel until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := r.Load(ctx); err != nil {
			r.logger.Error("initial library load failed", "error", err)
		}
		return nil
	})

	if r.channel != nil {
		g.Go(func() error {
			return r.channel.Run(ctx, func(ev realtime.Event) { r.HandleEvent(ctx, ev) })
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// StartResync schedules a full refresh every interval. A non-positive interval is a no-op.
func (r *Reconciler) StartResync(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).WaitForSchedule().Do(r.resync, ctx); err != nil {
		return fmt.Errorf("%w: failed to schedule resync: %w", shared.ErrInvalidConfig, err)
	}
	s.StartAsync()
	r.scheduler = s
	r.logger.Debug("resync scheduled", "interval", interval)
	return nil
}

func (r *Reconciler) resync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_ = r.Refresh(ctx)
}

// Stop cancels the periodic resync.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		r.scheduler.Stop()
		r.scheduler = nil
	}
}
