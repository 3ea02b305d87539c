package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// MemoryStore keeps prediction rows in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	rows  []model.PredictionRecord
	saves int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Lookup(_ context.Context, p period.Period) ([]model.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PredictionRecord
	for _, r := range m.rows {
		if r.Current() == p {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, recs []model.PredictionRecord) error {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		r.CreatedAt = now
		m.rows = append(m.rows, r)
	}
	m.saves++
	return nil
}

// Len returns the number of stored rows.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Saves returns the number of Save calls.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
