package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/shared"
	"gopkg.in/cenkalti/backoff.v1"
)

// Option configures a channel.
type Option func(*options)

type options struct {
	token   string
	backOff func() backoff.BackOff
	logger  *log.Logger
}

// WithToken sends token as a bearer Authorization header.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithBackOff replaces the reconnect policy. fn is called once per Run.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *options) { o.backOff = fn }
}

func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{backOff: defaultBackOff}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = shared.NewLogger(nil)
	}
	return o
}

// defaultBackOff retries forever, capped at 30s between attempts.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// New builds the channel selected by cfg.Transport.
func New(cfg shared.RealtimeConfig, opts ...Option) (Channel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: realtime url is empty", shared.ErrInvalidConfig)
	}
	switch cfg.Transport {
	case shared.TransportSSE, "":
		return NewSSEChannel(cfg.URL, cfg.Stream, opts...), nil
	case shared.TransportWebSocket:
		return NewWSChannel(cfg.URL, cfg.Stream, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", shared.ErrInvalidConfig, cfg.Transport)
	}
}

// lifecycle serializes handler calls and turns raw connect/disconnect signals into
// Connected, Reconnected and Disconnected events.
type lifecycle struct {
	mu        sync.Mutex
	handle    func(Event)
	connected bool
	ever      bool
}

func (l *lifecycle) emit(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handle(ev)
}

func (l *lifecycle) up() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return
	}
	l.connected = true
	if l.ever {
		l.handle(Event{Type: Reconnected})
		return
	}
	l.ever = true
	l.handle(Event{Type: Connected})
}

func (l *lifecycle) down() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return
	}
	l.connected = false
	l.handle(Event{Type: Disconnected})
}
