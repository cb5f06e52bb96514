// Package memory provides an in-memory publisher for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher records published payloads instead of sending them anywhere.
type Publisher struct {
	mu       sync.Mutex
	payloads []any
}

// New creates an empty in-memory publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the payload and returns a synthetic message id.
func (p *Publisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("mem-%d", len(p.payloads)), nil
}

// Payloads returns a copy of everything published so far.
func (p *Publisher) Payloads() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.payloads))
	copy(out, p.payloads)
	return out
}
