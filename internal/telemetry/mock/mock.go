// Package mock provides a mock telemetry publisher for testing.
package mock

import (
	"context"
	"sync"

	"github.com/naphome/naphome/internal/telemetry"
)

// Publisher records every payload it is asked to publish.
type Publisher struct {
	mu       sync.Mutex
	Err      error
	payloads [][]byte
}

var _ telemetry.Publisher = (*Publisher)(nil)

// Publish implements telemetry.Publisher.
func (p *Publisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	p.payloads = append(p.payloads, cp)
	return p.Err
}

// Payloads returns copies of the published payloads in order.
func (p *Publisher) Payloads() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.payloads))
	copy(out, p.payloads)
	return out
}
