package vectorindex

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process index. Upserting an existing ID replaces its
// vector but keeps its original insertion position.
type Memory struct {
	mu      sync.RWMutex
	entries []entry
	pos     map[string]int
	dim     int
}

func NewMemory() *Memory {
	return &Memory{pos: make(map[string]int)}
}

func (m *Memory) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	if len(vec) == 0 {
		return fmt.Errorf("upsert %q: empty vector", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim == 0 {
		m.dim = len(vec)
	}
	if len(vec) != m.dim {
		return fmt.Errorf("upsert %q: %w: got %d, want %d", id, ErrDimensionMismatch, len(vec), m.dim)
	}

	e := entry{id: id, vec: append([]float32(nil), vec...), meta: copyMeta(meta)}
	if i, ok := m.pos[id]; ok {
		m.entries[i] = e
		return nil
	}
	m.pos[id] = len(m.entries)
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) Query(ctx context.Context, vec []float32, topK int) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dim != 0 && len(vec) != m.dim {
		return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(vec), m.dim)
	}
	return rank(m.entries, vec, topK), nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// MemoryProvider creates a new Memory index per collection.
type MemoryProvider struct {
	mu          sync.Mutex
	collections map[string]*Memory
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{collections: make(map[string]*Memory)}
}

func (p *MemoryProvider) ForCollection(ctx context.Context, name string) (Index, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := NewMemory()
	p.collections[name] = idx
	return idx, nil
}

func (p *MemoryProvider) Drop(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.collections, name)
	return nil
}
