package realtime

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"
)

// SSEChannel reads library events from a server-sent events endpoint.
type SSEChannel struct {
	url    string
	stream string
	opts   options
	logger *log.Logger
}

var _ Channel = (*SSEChannel)(nil)

// NewSSEChannel creates a channel for url. stream is sent as the ?stream= query parameter.
func NewSSEChannel(url, stream string, opts ...Option) *SSEChannel {
	o := newOptions(opts)
	return &SSEChannel{url: url, stream: stream, opts: o, logger: o.logger.With("transport", "sse")}
}

func (c *SSEChannel) Run(ctx context.Context, handle func(Event)) error {
	lc := &lifecycle{handle: handle}
	policy := c.opts.backOff()

	client := sse.NewClient(c.url)
	client.ReconnectStrategy = backoff.WithContext(policy, ctx)
	if c.opts.token != "" {
		client.Headers["Authorization"] = "Bearer " + c.opts.token
	}
	client.OnConnect(func(*sse.Client) { lc.up() })
	client.OnDisconnect(func(*sse.Client) { lc.down() })
	client.ReconnectNotify = func(err error, next time.Duration) {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("stream dropped", "err", err, "retry_in", next)
		lc.down()
		lc.emit(Event{Type: Error, Err: err})
	}

	for {
		err := client.SubscribeWithContext(ctx, c.stream, func(msg *sse.Event) {
			lc.up()
			ev, ok := Decode(string(msg.Event), msg.Data)
			if !ok {
				c.logger.Debug("ignored event", "event", string(msg.Event))
				return
			}
			lc.emit(ev)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// a cleanly closed stream ends the subscription without retrying
		lc.down()
		if err != nil {
			lc.emit(Event{Type: Error, Err: err})
		}
		next := policy.NextBackOff()
		if next == backoff.Stop {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
	}
}

// Subscribe is a no-op: the stream is selected on every request.
func (c *SSEChannel) Subscribe(ctx context.Context) error {
	c.logger.Debug("subscribed", "stream", c.stream)
	return ctx.Err()
}
