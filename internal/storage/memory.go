// Package storage persists finished interview records.
package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/ejanovitz/Rehearse/internal/interview"
)

// ErrNotFound is returned when no record exists for a session.
var ErrNotFound = errors.New("record not found")

// Loader reads persisted records back for report generation.
type Loader interface {
	Load(ctx context.Context, sessionID string) (*interview.Record, error)
}

// Memory is an in-process record store, the loader of last resort when
// no durable store is configured.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*interview.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*interview.Record)}
}

func (m *Memory) Save(_ context.Context, rec *interview.Record) error {
	clone := cloneRecord(rec)
	m.mu.Lock()
	m.records[rec.SessionID] = clone
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context, sessionID string) (*interview.Record, error) {
	m.mu.RLock()
	rec, ok := m.records[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func cloneRecord(rec *interview.Record) *interview.Record {
	clone := *rec
	clone.Turns = append([]interview.Turn(nil), rec.Turns...)
	return &clone
}
