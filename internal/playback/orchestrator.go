package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/player"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"golang.org/x/sync/singleflight"
)

const defaultConversionTimeout = 2 * time.Minute

// PermissionChecker is implemented by engines that can be refused access to audio output.
type PermissionChecker interface {
	Permission(ctx context.Context) error
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithConversionTimeout bounds each backend conversion. Zero or less keeps the default.
func WithConversionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.conversionTimeout = d
		}
	}
}

// session is the one loaded resource.
type session struct {
	gen     uint64
	trackID string
	title   string
	ref     string
	handle  player.Handle
	playing bool
}

// Orchestrator serializes play requests onto a single playback slot.
type Orchestrator struct {
	source            services.AudioSource
	engine            player.Engine
	notifier          Notifier
	logger            *log.Logger
	conversionTimeout time.Duration
	flight            singleflight.Group

	// engineMu serializes every call into the engine. Lock order: engineMu, then mu.
	engineMu sync.Mutex

	mu          sync.Mutex
	gen         uint64
	state       State
	current     *session
	pending     string
	conversions int
	convTitle   string
	lastErr     error
	closed      bool
	subscribers map[string]chan Snapshot
	watchers    sync.WaitGroup
}

// New creates an idle orchestrator.
func New(source services.AudioSource, engine player.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:            source,
		engine:            engine,
		conversionTimeout: defaultConversionTimeout,
		subscribers:       map[string]chan Snapshot{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = shared.NewLogger(nil)
	}
	o.logger = o.logger.With("component", "playback")
	if o.notifier == nil {
		o.notifier = LogNotifier{Logger: o.logger}
	}
	return o
}

// Play starts track, or flips play/pause when track is already the active one.
//
// A request for a different track tears the current session down first. A second request for
// a track that is still converting or loading is ignored.
func (o *Orchestrator) Play(ctx context.Context, track models.TrackRef) error {
	return o.report(o.play(ctx, track))
}

// PlayLibraryItem plays saved audio directly.
func (o *Orchestrator) PlayLibraryItem(ctx context.Context, item models.LibraryItem) error {
	return o.Play(ctx, item)
}

// PlayVideo converts a search result and plays it.
func (o *Orchestrator) PlayVideo(ctx context.Context, video models.VideoResult) error {
	return o.Play(ctx, video)
}

func (o *Orchestrator) play(ctx context.Context, track models.TrackRef) error {
	id := track.TrackID()
	if id == "" {
		return &Error{Kind: KindPlayback, Op: "play", Err: fmt.Errorf("%w: track has no id", shared.ErrInvalidArgument)}
	}

	o.engineMu.Lock()
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.engineMu.Unlock()
		return &Error{Kind: KindPlayback, Op: "play", TrackID: id, Err: shared.ErrClosed}
	}
	if o.current != nil && o.current.trackID == id {
		o.mu.Unlock()
		err := o.toggleLocked(ctx, "play")
		o.engineMu.Unlock()
		return err
	}
	if o.pending == id {
		o.mu.Unlock()
		o.engineMu.Unlock()
		o.logger.Debug("already pending", "track", id)
		return nil
	}

	o.gen++
	gen := o.gen
	o.mu.Unlock()

	o.teardownLocked(ctx)

	o.mu.Lock()
	o.pending = id
	o.lastErr = nil
	next := Loading
	if track.AudioRef() == "" {
		next = Converting
	}
	o.setStateLocked(Idle)
	o.setStateLocked(next)
	o.publishLocked()
	o.mu.Unlock()
	o.engineMu.Unlock()

	o.logger.Info("play requested", "track", id, "title", track.DisplayTitle(), "state", next)

	ref := track.AudioRef()
	if ref == "" {
		var err error
		ref, err = o.convert(ctx, id, track.SourceURL(), track.Metadata())
		if err != nil {
			if o.stale(gen) {
				o.logger.Debug("discarding stale conversion failure", "track", id, "err", err)
				return superseded("convert", id)
			}
			o.abort(gen, err)
			return err
		}

		o.mu.Lock()
		if o.gen != gen {
			o.mu.Unlock()
			o.logger.Debug("discarding stale conversion", "track", id, "ref", ref)
			return superseded("convert", id)
		}
		o.setStateLocked(Loading)
		o.publishLocked()
		o.mu.Unlock()
	}

	return o.load(ctx, gen, track, ref)
}

// load performs the single-flight engine transition for gen.
func (o *Orchestrator) load(ctx context.Context, gen uint64, track models.TrackRef, ref string) error {
	id := track.TrackID()

	o.engineMu.Lock()
	defer o.engineMu.Unlock()

	if o.stale(gen) {
		return superseded("load", id)
	}

	o.teardownLocked(ctx)

	if pc, ok := o.engine.(PermissionChecker); ok {
		if err := pc.Permission(ctx); err != nil {
			if !errors.Is(err, shared.ErrPermissionDenied) {
				err = fmt.Errorf("%w: %w", shared.ErrPermissionDenied, err)
			}
			perr := &Error{Kind: KindPermission, Op: "load", TrackID: id, Err: err}
			o.abort(gen, perr)
			return perr
		}
	}

	handle, err := o.engine.Load(ctx, o.source.DownloadURL(ref))
	if err != nil {
		perr := &Error{Kind: KindPlayback, Op: "load", TrackID: id, Err: wrapPlayback(err)}
		o.abort(gen, perr)
		return perr
	}

	if err := handle.Play(ctx); err != nil {
		o.release(handle, id)
		perr := &Error{Kind: KindPlayback, Op: "play", TrackID: id, Err: wrapPlayback(err)}
		o.abort(gen, perr)
		return perr
	}

	o.mu.Lock()
	o.current = &session{gen: gen, trackID: id, title: track.DisplayTitle(), ref: ref, handle: handle, playing: true}
	o.pending = ""
	o.setStateLocked(Playing)
	o.publishLocked()
	o.mu.Unlock()

	o.watchers.Add(1)
	go o.watch(gen, id, handle)

	o.logger.Info("playing", "track", id, "ref", ref)
	return nil
}

// watch applies the engine's completion only while gen and id are still current.
func (o *Orchestrator) watch(gen uint64, id string, handle player.Handle) {
	defer o.watchers.Done()
	err := <-handle.Done()

	o.engineMu.Lock()
	defer o.engineMu.Unlock()

	o.mu.Lock()
	cur := o.current
	if cur == nil || cur.gen != gen || cur.trackID != id {
		o.mu.Unlock()
		o.logger.Debug("ignoring stale completion", "track", id, "err", err)
		return
	}
	o.current = nil
	o.setStateLocked(Idle)
	var perr *Error
	if err != nil && !errors.Is(err, player.ErrStopped) {
		perr = &Error{Kind: KindPlayback, Op: "playback", TrackID: id, Err: wrapPlayback(err)}
		o.lastErr = perr
	}
	o.publishLocked()
	o.mu.Unlock()

	o.release(handle, id)
	if perr != nil {
		o.report(perr)
		return
	}
	o.logger.Info("finished", "track", id)
}

// Toggle flips play/pause on the active track. It fails when id is not the active track.
func (o *Orchestrator) Toggle(ctx context.Context, id string) error {
	o.engineMu.Lock()
	defer o.engineMu.Unlock()

	o.mu.Lock()
	active := o.current != nil && o.current.trackID == id
	o.mu.Unlock()
	if !active {
		return &Error{Kind: KindPlayback, Op: "toggle", TrackID: id, Err: shared.ErrNothingLoaded}
	}
	return o.report(o.toggleLocked(ctx, "toggle"))
}

// Pause pauses the active track. Pausing a paused track does nothing.
func (o *Orchestrator) Pause(ctx context.Context) error {
	return o.setPlaying(ctx, "pause", false)
}

// Resume resumes the active track. Resuming a playing track does nothing.
func (o *Orchestrator) Resume(ctx context.Context) error {
	return o.setPlaying(ctx, "resume", true)
}

func (o *Orchestrator) setPlaying(ctx context.Context, op string, playing bool) error {
	o.engineMu.Lock()
	defer o.engineMu.Unlock()

	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur == nil {
		return &Error{Kind: KindPlayback, Op: op, Err: shared.ErrNothingLoaded}
	}
	if cur.playing == playing {
		return nil
	}
	return o.report(o.toggleLocked(ctx, op))
}

// toggleLocked flips the active session. The caller holds engineMu and has checked a session exists.
func (o *Orchestrator) toggleLocked(ctx context.Context, op string) error {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()

	var err error
	if cur.playing {
		err = cur.handle.Pause(ctx)
	} else {
		err = cur.handle.Play(ctx)
	}

	o.mu.Lock()
	if err != nil {
		perr := &Error{Kind: KindPlayback, Op: op, TrackID: cur.trackID, Err: wrapPlayback(err)}
		o.current = nil
		o.lastErr = perr
		o.setStateLocked(Idle)
		o.publishLocked()
		o.mu.Unlock()

		o.release(cur.handle, cur.trackID)
		return perr
	}

	cur.playing = !cur.playing
	if cur.playing {
		o.setStateLocked(Playing)
	} else {
		o.setStateLocked(Paused)
	}
	o.publishLocked()
	o.mu.Unlock()
	return nil
}

// Stop releases the active track and cancels any pending request.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.engineMu.Lock()
	defer o.engineMu.Unlock()

	o.mu.Lock()
	o.gen++
	o.pending = ""
	o.mu.Unlock()

	o.teardownLocked(ctx)

	o.mu.Lock()
	o.setStateLocked(Idle)
	o.publishLocked()
	o.mu.Unlock()
	return nil
}

// Close stops playback, rejects further requests and closes subscriber channels.
func (o *Orchestrator) Close(ctx context.Context) error {
	err := o.Stop(ctx)

	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.watchers.Wait()

	o.mu.Lock()
	for key, ch := range o.subscribers {
		close(ch)
		delete(o.subscribers, key)
	}
	o.mu.Unlock()
	return err
}

// ConvertAndResolve converts videoURL and returns an audio reference the engine can load.
//
// The conversion indicator is set for the duration of the call and always cleared afterwards.
func (o *Orchestrator) ConvertAndResolve(ctx context.Context, videoURL string, meta models.TrackMetadata) (string, error) {
	ref, err := o.convert(ctx, "", videoURL, meta)
	if err != nil {
		return "", o.report(err)
	}
	return ref, nil
}

func (o *Orchestrator) convert(ctx context.Context, trackID, videoURL string, meta models.TrackMetadata) (string, error) {
	o.beginConversion(meta.Title)
	defer o.endConversion()

	ch := o.flight.DoChan(videoURL, func() (any, error) {
		// shared by every caller converting videoURL, so no single caller may cancel it
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.conversionTimeout)
		defer cancel()
		return o.source.Convert(cctx, videoURL, meta)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", conversionError(trackID, res.Err)
		}
		if res.Shared {
			o.logger.Debug("joined in-flight conversion", "url", videoURL)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &Error{Kind: KindConversion, Op: "convert", TrackID: trackID, Err: ctx.Err()}
	}
}

func (o *Orchestrator) beginConversion(title string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversions++
	o.convTitle = title
	o.publishLocked()
}

func (o *Orchestrator) endConversion() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversions--
	if o.conversions <= 0 {
		o.conversions = 0
		o.convTitle = ""
	}
	o.publishLocked()
}

// teardownLocked stops and unloads the current session, logging failures. The caller holds engineMu.
func (o *Orchestrator) teardownLocked(ctx context.Context) {
	o.mu.Lock()
	cur := o.current
	o.current = nil
	o.mu.Unlock()

	if cur == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if err := cur.handle.Stop(ctx); err != nil {
		o.logger.Warn("stop failed", "track", cur.trackID, "err", err)
	}
	o.release(cur.handle, cur.trackID)
}

func (o *Orchestrator) release(handle player.Handle, id string) {
	if err := handle.Unload(context.Background()); err != nil {
		o.logger.Warn("unload failed", "track", id, "err", err)
	}
}

// abort returns the slot to Idle if gen is still current.
func (o *Orchestrator) abort(gen uint64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return
	}
	o.pending = ""
	if !silent(err) {
		o.lastErr = err
	}
	o.setStateLocked(Idle)
	o.publishLocked()
}

func (o *Orchestrator) stale(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen != gen
}

func (o *Orchestrator) setStateLocked(next State) {
	if !CanTransition(o.state, next) {
		o.logger.Warn("rejected transition", "from", o.state, "to", next)
		return
	}
	o.state = next
}

// report alerts the user about err unless it is silent, and returns err unchanged.
func (o *Orchestrator) report(err error) error {
	if err == nil {
		return nil
	}
	if silent(err) {
		o.logger.Debug("discarded", "err", err)
		return err
	}

	kind := KindOf(err)
	if kind == 0 {
		kind = KindPlayback
	}
	o.logger.Error("operation failed", "kind", kind, "err", err)
	o.notifier.Alert(kind.Title(), err.Error())
	return err
}

func wrapPlayback(err error) error {
	if errors.Is(err, shared.ErrPlaybackFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrPlaybackFailed, err)
}

// Snapshot returns the current state of the slot.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          o.state,
		PendingTrackID: o.pending,
		Conversion:     Conversion{InFlight: o.conversions > 0, Title: o.convTitle},
		LastError:      o.lastErr,
	}
	if cur := o.current; cur != nil {
		snap.ActiveTrackID = cur.trackID
		snap.ActiveTitle = cur.title
		snap.LoadedRef = cur.ref
		snap.IsPlaying = cur.playing
	}
	return snap
}

// Subscribe returns a channel receiving the latest snapshot after every change, and a cancel
// function. Slow readers only miss intermediate snapshots, never the latest one.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := shared.GenerateID()
	ch := make(chan Snapshot, 1)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- o.snapshotLocked()
	o.subscribers[key] = ch

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subscribers[key]; ok {
			close(c)
			delete(o.subscribers, key)
		}
	}
}

func (o *Orchestrator) publishLocked() {
	snap := o.snapshotLocked()
	for _, ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
