package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/shared"
	"gopkg.in/cenkalti/backoff.v1"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WSChannel reads library events as JSON messages over a websocket.
type WSChannel struct {
	url    string
	stream string
	opts   options
	logger *log.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ Channel = (*WSChannel)(nil)

// NewWSChannel creates a channel for url that subscribes to stream.
func NewWSChannel(url, stream string, opts ...Option) *WSChannel {
	o := newOptions(opts)
	return &WSChannel{url: url, stream: stream, opts: o, logger: o.logger.With("transport", "websocket")}
}

func (c *WSChannel) Run(ctx context.Context, handle func(Event)) error {
	lc := &lifecycle{handle: handle}
	policy := c.opts.backOff()
	policy.Reset()

	for {
		err := c.session(ctx, lc, policy)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lc.down()
		lc.emit(Event{Type: Error, Err: err})

		next := policy.NextBackOff()
		if next == backoff.Stop {
			return err
		}
		c.logger.Warn("connection lost", "err", err, "retry_in", next)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
	}
}

// session dials once and reads until the connection fails.
func (c *WSChannel) session(ctx context.Context, lc *lifecycle, policy backoff.BackOff) error {
	var dialOpts websocket.DialOptions
	if c.opts.token != "" {
		dialOpts.HTTPHeader = http.Header{"Authorization": {"Bearer " + c.opts.token}}
	}

	conn, _, err := websocket.Dial(ctx, c.url, &dialOpts)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	policy.Reset()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	lc.up()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			lc.emit(badEvent("message", err))
			continue
		}

		ev, ok := Decode(env.Event, env.Data)
		if !ok {
			c.logger.Debug("ignored event", "event", env.Event)
			continue
		}
		lc.emit(ev)
	}
}

// Subscribe sends {"event":"subscribe","data":<stream>} on the open connection.
func (c *WSChannel) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return shared.ErrChannelClosed
	}

	data, err := json.Marshal(c.stream)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, envelope{Event: "subscribe", Data: data}); err != nil {
		return fmt.Errorf("subscribe %q: %w", c.stream, err)
	}
	return nil
}
