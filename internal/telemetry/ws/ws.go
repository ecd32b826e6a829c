// Package ws provides a telemetry publisher that delivers payloads over a
// WebSocket connection.
//
// The connection is dialed lazily on the first publish and redialed after
// any write failure, so a broker restart costs one lost payload rather than
// a wedged publisher.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/naphome/naphome/internal/telemetry"
)

const defaultDialTimeout = 10 * time.Second

// Publisher implements telemetry.Publisher over a WebSocket.
type Publisher struct {
	url         string
	header      http.Header
	dialTimeout time.Duration
	onState     func(connected bool)

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ telemetry.Publisher = (*Publisher)(nil)

// Option is a functional option for Publisher.
type Option func(*Publisher)

// WithHeader sets an HTTP header sent on the dial request, typically for
// authentication.
func WithHeader(key, value string) Option {
	return func(p *Publisher) {
		p.header.Set(key, value)
	}
}

// WithDialTimeout bounds each dial attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.dialTimeout = d
	}
}

// WithStateFunc registers a callback invoked whenever the connection state
// changes, so callers can mirror broker connectivity into device state.
func WithStateFunc(fn func(connected bool)) Option {
	return func(p *Publisher) {
		p.onState = fn
	}
}

// New returns a Publisher for the given WebSocket URL.
func New(url string, opts ...Option) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("ws: url must not be empty")
	}
	p := &Publisher{
		url:         url,
		header:      http.Header{},
		dialTimeout: defaultDialTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Publish implements telemetry.Publisher. A write failure drops the
// connection so the next publish redials.
func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		if err := p.dialLocked(ctx); err != nil {
			return fmt.Errorf("ws: dial %s: %w", p.url, err)
		}
	}

	if err := p.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		p.dropLocked(websocket.StatusAbnormalClosure, "write failed")
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

// Close shuts the connection down cleanly. The publisher may be reused; the
// next publish redials.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked(websocket.StatusNormalClosure, "publisher closed")
	return nil
}

func (p *Publisher) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, p.url, &websocket.DialOptions{
		HTTPHeader: p.header,
	})
	if err != nil {
		return err
	}
	p.conn = conn
	if p.onState != nil {
		p.onState(true)
	}
	return nil
}

func (p *Publisher) dropLocked(code websocket.StatusCode, reason string) {
	if p.conn == nil {
		return
	}
	_ = p.conn.Close(code, reason)
	p.conn = nil
	if p.onState != nil {
		p.onState(false)
	}
}
