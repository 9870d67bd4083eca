// Package history keeps a record of completed cook cycles.
package history

import (
	"context"
	"sync"
	"time"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Cycle summarises one completed cook cycle.
type Cycle struct {
	ID            string
	Mode          string
	Doneness      string
	TargetC       int
	Duration      time.Duration
	StartedAt     time.Time
	EndedAt       time.Time
	HeaterOnCount int
	// MaxTempC is the highest averaged reading, -1 when none was taken.
	MaxTempC int
}

// Store persists cycles.
type Store interface {
	Append(ctx context.Context, c Cycle) error
	// List returns the most recent cycles, newest first.
	List(ctx context.Context, limit int) ([]Cycle, error)
}

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	cycles []Cycle
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append records c.
func (m *Memory) Append(_ context.Context, c Cycle) error {
	m.mu.Lock()
	m.cycles = append(m.cycles, c)
	m.mu.Unlock()
	return nil
}

// List returns up to limit cycles, newest first.
func (m *Memory) List(_ context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Cycle, 0, min(limit, len(m.cycles)))
	for i := len(m.cycles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.cycles[i])
	}
	return out, nil
}
