package session

import (
	"context"
	"sync"
)

// MemoryPersistence keeps template text in memory.
type MemoryPersistence struct {
	mu    sync.Mutex
	text  string
	found bool
	saves int
}

// NewMemoryPersistence returns a store that already holds text.
func NewMemoryPersistence(text string) *MemoryPersistence {
	return &MemoryPersistence{text: text, found: true}
}

// LoadTemplateText returns the held text.
func (m *MemoryPersistence) LoadTemplateText(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, m.found, nil
}

// SaveTemplateText replaces the held text.
func (m *MemoryPersistence) SaveTemplateText(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.found = true
	m.saves++
	return nil
}

// Saves returns how many times text was saved.
func (m *MemoryPersistence) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
