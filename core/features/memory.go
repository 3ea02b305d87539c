package features

import (
	"context"
	"sync"

	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// MemoryReader is an in-memory Reader used by tests and dry runs.
type MemoryReader struct {
	mu        sync.RWMutex
	buildings map[int64]model.Building
	units     map[period.Period]map[int64]int64
	order     map[period.Period][]int64
	users     map[period.Period]int64
	exam      map[period.Period]bool
	semester  map[period.Period]bool
}

// NewMemoryReader returns an empty MemoryReader.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{
		buildings: make(map[int64]model.Building),
		units:     make(map[period.Period]map[int64]int64),
		order:     make(map[period.Period][]int64),
		users:     make(map[period.Period]int64),
		exam:      make(map[period.Period]bool),
		semester:  make(map[period.Period]bool),
	}
}

// AddBuilding stores building metadata.
func (m *MemoryReader) AddBuilding(b model.Building) {
	m.mu.Lock()
	m.buildings[b.ID] = b
	m.mu.Unlock()
}

// AddUnit stores a unit reading. Buildings are enumerated in insertion order.
func (m *MemoryReader) AddUnit(buildingID int64, p period.Period, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byBuilding, ok := m.units[p]
	if !ok {
		byBuilding = make(map[int64]int64)
		m.units[p] = byBuilding
	}
	if _, seen := byBuilding[buildingID]; !seen {
		m.order[p] = append(m.order[p], buildingID)
	}
	byBuilding[buildingID] = amount
}

// SetUserCount stores the user count of a month.
func (m *MemoryReader) SetUserCount(p period.Period, n int64) {
	m.mu.Lock()
	m.users[p] = n
	m.mu.Unlock()
}

// SetExamStatus stores the exam flag of a month.
func (m *MemoryReader) SetExamStatus(p period.Period, v bool) {
	m.mu.Lock()
	m.exam[p] = v
	m.mu.Unlock()
}

// SetSemesterStatus stores the semester flag of a month.
func (m *MemoryReader) SetSemesterStatus(p period.Period, v bool) {
	m.mu.Lock()
	m.semester[p] = v
	m.mu.Unlock()
}

func (m *MemoryReader) BuildingMeta(_ context.Context, id int64) (model.Building, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buildings[id]
	return b, ok, nil
}

func (m *MemoryReader) UnitAmount(_ context.Context, buildingID int64, p period.Period) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.units[p][buildingID]
	return v, ok, nil
}

func (m *MemoryReader) UserCount(_ context.Context, p period.Period) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.users[p]
	return v, ok, nil
}

func (m *MemoryReader) ExamStatus(_ context.Context, p period.Period) (bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.exam[p]
	return v, ok, nil
}

func (m *MemoryReader) SemesterStatus(_ context.Context, p period.Period) (bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.semester[p]
	return v, ok, nil
}

func (m *MemoryReader) BuildingsWithUnitData(_ context.Context, p period.Period) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, len(m.order[p]))
	copy(ids, m.order[p])
	return ids, nil
}

func (m *MemoryReader) LatestUnitPeriod(_ context.Context) (period.Period, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest period.Period
	found := false
	for p := range m.units {
		if !found || latest.Before(p) {
			latest = p
			found = true
		}
	}
	return latest, found, nil
}
