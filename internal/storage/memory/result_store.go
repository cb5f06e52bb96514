// Package memory provides in-memory storage implementations for development
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/pagepulse/pagepulse/internal/audit"
)

// ResultStore keeps formatted records in memory.
type ResultStore struct {
	mu      sync.Mutex
	records []audit.Record
}

// NewResultStore creates an empty in-memory store.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// StoreRecords appends the records.
func (s *ResultStore) StoreRecords(_ context.Context, records []audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Records returns a copy of everything stored so far.
func (s *ResultStore) Records() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Record, len(s.records))
	copy(out, s.records)
	return out
}
