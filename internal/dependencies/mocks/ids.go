package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/cubegame/internal/dependencies/ids"
)

// MockIDs is a mock implementation of ids.Generator for testing
type MockIDs struct {
	mu sync.Mutex

	// Queued is a queue of ids to hand out before falling back to a sequence
	Queued []string
	index  int
	seq    int
}

// Ensure MockIDs implements Generator
var _ ids.Generator = (*MockIDs)(nil)

// NewMockIDs creates a new MockIDs
func NewMockIDs() *MockIDs {
	return &MockIDs{}
}

// NewID returns the next queued id, or "id-<n>" once the queue is exhausted
func (m *MockIDs) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < len(m.Queued) {
		id := m.Queued[m.index]
		m.index++
		return id
	}
	m.seq++
	return fmt.Sprintf("id-%d", m.seq)
}

// Queue adds ids to the queue
func (m *MockIDs) Queue(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queued = append(m.Queued, values...)
}
