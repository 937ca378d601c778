package testing

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/player"
	"github.com/desertthunder/tapedeck/internal/realtime"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// FakeAudioSource is an in-memory conversion backend.
//
// ConvertFunc, when set, replaces the default behaviour of returning "audio-<url>".
// FetchFunc likewise replaces the default stream body "audio:<ref>".
type FakeAudioSource struct {
	mu          sync.Mutex
	ConvertFunc func(ctx context.Context, videoURL string, meta models.TrackMetadata) (string, error)
	FetchFunc   func(ctx context.Context, audioRef string) (io.ReadCloser, int64, error)
	Items       []models.LibraryItem
	ListErr     error
	conversions []string
	lists       int
	fetches     int
}

func (f *FakeAudioSource) Convert(ctx context.Context, videoURL string, meta models.TrackMetadata) (string, error) {
	f.mu.Lock()
	f.conversions = append(f.conversions, videoURL)
	fn := f.ConvertFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, videoURL, meta)
	}
	return "audio-" + videoURL, nil
}

func (f *FakeAudioSource) ListSaved(ctx context.Context) ([]models.LibraryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]models.LibraryItem{}, f.Items...), nil
}

func (f *FakeAudioSource) GetSaved(ctx context.Context, id string) (*models.LibraryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.Items {
		if item.ID == id {
			return &item, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
}

func (f *FakeAudioSource) FetchAudioStream(ctx context.Context, audioRef string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	f.fetches++
	fn := f.FetchFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, audioRef)
	}
	data := "audio:" + audioRef
	return io.NopCloser(strings.NewReader(data)), int64(len(data)), nil
}

// DownloadURL passes absolute URLs through, as the real source does.
func (f *FakeAudioSource) DownloadURL(audioRef string) string {
	if strings.HasPrefix(audioRef, "http://") || strings.HasPrefix(audioRef, "https://") {
		return audioRef
	}
	return "fake://audio/" + audioRef
}

// SetItems replaces the listing returned by ListSaved.
func (f *FakeAudioSource) SetItems(items ...models.LibraryItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Items = items
}

// Conversions returns the video URLs passed to Convert, in call order.
func (f *FakeAudioSource) Conversions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.conversions...)
}

// Fetches returns how many times FetchAudioStream was called.
func (f *FakeAudioSource) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// Lists returns how many times ListSaved was called.
func (f *FakeAudioSource) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// FakeEngine is a [player.Engine] that tracks how many resources are loaded at once.
type FakeEngine struct {
	mu        sync.Mutex
	LoadErr   error
	PlayErr   error
	StopErr   error
	gates     map[string]chan struct{}
	handles   []*FakeHandle
	loads     []string
	maxLoaded int
}

var _ player.Engine = (*FakeEngine)(nil)

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{gates: map[string]chan struct{}{}}
}

// Gate makes the next Load of uri block until release is called.
func (e *FakeEngine) Gate(uri string) (release func()) {
	ch := make(chan struct{})
	e.mu.Lock()
	e.gates[uri] = ch
	e.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (e *FakeEngine) Load(ctx context.Context, uri string) (player.Handle, error) {
	e.mu.Lock()
	gate := e.gates[uri]
	delete(e.gates, uri)
	e.loads = append(e.loads, uri)
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	h := &FakeHandle{URI: uri, engine: e, done: make(chan error, 1)}
	e.handles = append(e.handles, h)
	if n := e.loadedLocked(); n > e.maxLoaded {
		e.maxLoaded = n
	}
	return h, nil
}

func (e *FakeEngine) loadedLocked() int {
	n := 0
	for _, h := range e.handles {
		if !h.unloaded {
			n++
		}
	}
	return n
}

// Loaded returns how many handles have not been unloaded.
func (e *FakeEngine) Loaded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadedLocked()
}

// MaxLoaded is the highest number of handles ever loaded at the same time.
func (e *FakeEngine) MaxLoaded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxLoaded
}

// Loads returns every uri passed to Load, in call order.
func (e *FakeEngine) Loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.loads...)
}

// Handles returns every handle created so far.
func (e *FakeEngine) Handles() []*FakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakeHandle{}, e.handles...)
}

// Last returns the most recently created handle, or nil.
func (e *FakeEngine) Last() *FakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) == 0 {
		return nil
	}
	return e.handles[len(e.handles)-1]
}

// FakeHandle is a loaded resource of [FakeEngine].
type FakeHandle struct {
	URI      string
	engine   *FakeEngine
	playing  bool
	unloaded bool
	done     chan error
	finished bool
}

func (h *FakeHandle) Play(ctx context.Context) error {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	if h.engine.PlayErr != nil {
		return h.engine.PlayErr
	}
	if h.unloaded {
		return shared.ErrNothingLoaded
	}
	h.playing = true
	return nil
}

func (h *FakeHandle) Pause(ctx context.Context) error {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	if h.unloaded {
		return shared.ErrNothingLoaded
	}
	h.playing = false
	return nil
}

func (h *FakeHandle) Stop(ctx context.Context) error {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	h.playing = false
	return h.engine.StopErr
}

// Unload releases the handle even when StopErr is set, then reports StopErr.
func (h *FakeHandle) Unload(ctx context.Context) error {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	h.playing = false
	h.unloaded = true
	if !h.finished {
		h.finished = true
		h.done <- player.ErrStopped
	}
	return h.engine.StopErr
}

func (h *FakeHandle) Done() <-chan error { return h.done }

// Finish simulates the engine reporting end-of-stream (nil) or an asynchronous failure.
func (h *FakeHandle) Finish(err error) {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.playing = false
	h.done <- err
}

func (h *FakeHandle) Playing() bool {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	return h.playing
}

func (h *FakeHandle) Unloaded() bool {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	return h.unloaded
}

// FakeChannel is a [realtime.Channel] driven by Emit.
type FakeChannel struct {
	mu            sync.Mutex
	events        chan delivery
	subscriptions int
	SubscribeErr  error
	running       chan struct{}
}

type delivery struct {
	ev   realtime.Event
	done chan struct{}
}

var _ realtime.Channel = (*FakeChannel)(nil)

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{events: make(chan delivery), running: make(chan struct{})}
}

func (c *FakeChannel) Run(ctx context.Context, handle func(realtime.Event)) error {
	close(c.running)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-c.events:
			handle(d.ev)
			close(d.done)
		}
	}
}

func (c *FakeChannel) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions++
	return c.SubscribeErr
}

// Running is closed once Run has started.
func (c *FakeChannel) Running() <-chan struct{} { return c.running }

// Emit delivers ev to the running handler and waits for the handler to return.
func (c *FakeChannel) Emit(ev realtime.Event) {
	d := delivery{ev: ev, done: make(chan struct{})}
	c.events <- d
	<-d.done
}

func (c *FakeChannel) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions
}

// Alert is one user-visible notification.
type Alert struct {
	Title   string
	Message string
}

// RecordingNotifier collects alerts instead of showing them.
type RecordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *RecordingNotifier) Alert(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, Alert{Title: title, Message: message})
}

func (n *RecordingNotifier) Alerts() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Alert{}, n.alerts...)
}
