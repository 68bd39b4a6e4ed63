package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle state of a Subscription.
type State int32

const (
	// StateConnecting means the WebSocket handshake is in progress.
	StateConnecting State = iota
	// StateOpen means notifications are being delivered.
	StateOpen
	// StateClosed means the channel dropped and a reopen is pending.
	StateClosed
	// StateStopped is terminal: the subscription was cancelled.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Message is one notification received on an observation channel.
type Message struct {
	// URL is the observed resource.
	URL  string
	Data []byte

	// Binary is true for binary WebSocket frames.
	Binary bool
}

// ContentType returns the payload format implied by the frame type:
// CBOR for binary frames, JSON otherwise.
func (m Message) ContentType() string {
	if m.Binary {
		return ContentCBOR
	}
	return ContentJSON
}

// MessageHandler is called for every notification. The same handler is
// reused across reconnects. A returned error is logged.
type MessageHandler func(msg Message) error

// Subscription is a long-lived observation of one resource.
//
// It cycles Connecting -> Open -> Closed -> (delay) -> Connecting until it is
// stopped. A failed dial and a remote close are handled the same way. The
// delay is flat and there is no retry cap.
type Subscription struct {
	url      string
	state    atomic.Int32
	attempts atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
}

// URL returns the observed resource URL.
func (s *Subscription) URL() string {
	return s.url
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Attempts returns how many times the channel has been (re)opened.
func (s *Subscription) Attempts() int64 {
	return s.attempts.Load()
}

// Stop cancels the subscription. It is safe to call more than once.
// Use Done to wait for the loop to exit.
func (s *Subscription) Stop() {
	s.cancel()
}

// Done is closed when the subscription loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) setState(st State) {
	s.state.Store(int32(st))
}

// Subscribe opens an observation of resourceURL and keeps it open until ctx
// is cancelled or Stop is called. onMessage runs on the subscription's own
// goroutine.
func (c *Client) Subscribe(ctx context.Context, resourceURL string, onMessage MessageHandler) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		url:    resourceURL,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.setState(StateConnecting)

	go c.run(ctx, sub, onMessage)
	return sub
}

func (c *Client) run(ctx context.Context, sub *Subscription, onMessage MessageHandler) {
	defer close(sub.done)
	defer sub.setState(StateStopped)

	for {
		sub.setState(StateConnecting)
		if sub.attempts.Add(1) > 1 {
			c.metrics.ObserveReconnects.Inc()
		}

		c.observeOnce(ctx, sub, onMessage)
		if ctx.Err() != nil {
			return
		}

		sub.setState(StateClosed)
		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// observeOnce runs one connection to completion.
func (c *Client) observeOnce(ctx context.Context, sub *Subscription, onMessage MessageHandler) {
	conn, resp, err := c.dialer.DialContext(ctx, c.ObserveURL(sub.url), nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return
		}
		c.metrics.ObserveConnects.WithLabelValues("error").Inc()
		c.logger.Warn("observation connect failed",
			"resource", sub.url,
			"attempt", sub.Attempts(),
			"retry_in", c.reconnectDelay,
			"error", err,
		)
		return
	}
	defer conn.Close()

	// Unblock ReadMessage when the subscription is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.metrics.ObserveConnects.WithLabelValues("ok").Inc()
	c.metrics.ObserveOpen.Inc()
	defer c.metrics.ObserveOpen.Dec()

	sub.setState(StateOpen)
	c.logger.Debug("observation open", "resource", sub.url, "attempt", sub.Attempts())

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Info("observation closed",
					"resource", sub.url,
					"retry_in", c.reconnectDelay,
					"reason", err,
				)
			}
			return
		}

		c.deliver(onMessage, Message{
			URL:    sub.url,
			Data:   data,
			Binary: msgType == websocket.BinaryMessage,
		})
	}
}

// deliver calls the handler, recovering from panics so one bad
// notification cannot end the observation.
func (c *Client) deliver(onMessage MessageHandler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("observation handler panic recovered",
				"resource", msg.URL,
				"panic", r,
			)
		}
	}()

	if err := onMessage(msg); err != nil {
		c.logger.Warn("observation handler returned error",
			"resource", msg.URL,
			"error", err,
		)
	}
}
