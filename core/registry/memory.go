package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/utilcast/core/features"
)

// FuncHandle adapts a function to the Handle interface.
type FuncHandle struct {
	ModelName string
	Fn        func(features.Vector) (float64, error)
}

func (f FuncHandle) Name() string { return f.ModelName }

func (f FuncHandle) Predict(v features.Vector) (float64, error) { return f.Fn(v) }

// MemoryLoader serves handles registered in memory.
type MemoryLoader struct {
	mu      sync.Mutex
	handles map[string]Handle
	loads   map[string]int
}

// NewMemoryLoader returns a loader serving the given handles.
func NewMemoryLoader(handles ...Handle) *MemoryLoader {
	m := &MemoryLoader{handles: make(map[string]Handle), loads: make(map[string]int)}
	for _, h := range handles {
		m.handles[h.Name()] = h
	}
	return m
}

func (m *MemoryLoader) Load(_ context.Context, name string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	m.loads[name]++
	return h, nil
}

func (m *MemoryLoader) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.handles))
	for n := range m.handles {
		names = append(names, n)
	}
	return names, nil
}

// Loads returns how many times name was loaded.
func (m *MemoryLoader) Loads(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[name]
}
