package state

import (
	"context"
	"sync"
)

// MemorySlot keeps the document in process memory. Nothing survives a restart.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
}

// NewMemorySlot returns an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Read implements Slot.
func (m *MemorySlot) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

// Write implements Slot.
func (m *MemorySlot) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

// Close implements Slot.
func (m *MemorySlot) Close() error { return nil }
