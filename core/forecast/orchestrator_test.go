package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/utilcast/core/features"
	"github.com/kilianp07/utilcast/core/logger"
	coremetrics "github.com/kilianp07/utilcast/core/metrics"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
	"github.com/kilianp07/utilcast/core/registry"
)

// unitModel predicts the current unit amount plus a per-model offset.
func unitModel(name string, offset float64) registry.Handle {
	return registry.FuncHandle{ModelName: name, Fn: func(v features.Vector) (float64, error) {
		return v.Get(features.SignalUnit, 0) + offset, nil
	}}
}

func canonicalLoader() *registry.MemoryLoader {
	handles := make([]registry.Handle, 0, registry.Horizon)
	for i := 1; i <= registry.Horizon; i++ {
		handles = append(handles, unitModel(registry.CanonicalName(i), float64(i)))
	}
	return registry.NewMemoryLoader(handles...)
}

func twoBuildings(p period.Period) *features.MemoryReader {
	r := features.NewMemoryReader()
	r.AddBuilding(model.Building{ID: 10, Code: "A", Area: 100})
	r.AddBuilding(model.Building{ID: 20, Code: "B", Area: 200})
	r.AddUnit(10, p, 1000)
	r.AddUnit(20, p, 2000)
	return r
}

func TestRun_TwoBuildingsTwoModels(t *testing.T) {
	target := period.Period{Year: 2024, Month: 3}
	o := NewOrchestrator(twoBuildings(target), registry.New(canonicalLoader(), nil), nil)

	recs, err := o.Run(context.Background(), target, "T1,T2")
	require.NoError(t, err)
	require.Len(t, recs, 4)

	want := []struct {
		building string
		model    string
		pred     float64
		predict  period.Period
	}{
		{"10", "T1", 1001, period.Period{Year: 2024, Month: 4}},
		{"10", "T2", 1002, period.Period{Year: 2024, Month: 5}},
		{"20", "T1", 2001, period.Period{Year: 2024, Month: 4}},
		{"20", "T2", 2002, period.Period{Year: 2024, Month: 5}},
	}
	for i, w := range want {
		r := recs[i]
		assert.Equal(t, w.building, r.Building, "record %d", i)
		assert.Equal(t, w.model, r.ModelName, "record %d", i)
		assert.Equal(t, w.pred, r.Prediction, "record %d", i)
		assert.Equal(t, w.predict, r.Predicted(), "record %d", i)
		assert.Equal(t, target, r.Current(), "record %d", i)
	}
	assert.Equal(t, 100.0, recs[0].Area)
	assert.Equal(t, 1000.0, recs[0].Unit)
	assert.Equal(t, 2000.0, recs[3].Unit)
}

func TestRun_AllModelsOffsets(t *testing.T) {
	target := period.Period{Year: 2024, Month: 5}
	r := features.NewMemoryReader()
	r.AddBuilding(model.Building{ID: 1, Area: 1})
	r.AddUnit(1, target, 1)
	o := NewOrchestrator(r, registry.New(canonicalLoader(), nil), nil)

	recs, err := o.Run(context.Background(), target, registry.AllModels)
	require.NoError(t, err)
	require.Len(t, recs, 12)
	assert.Equal(t, "T1", recs[0].ModelName)
	assert.Equal(t, period.Period{Year: 2024, Month: 6}, recs[0].Predicted())
	assert.Equal(t, "T12", recs[11].ModelName)
	assert.Equal(t, period.Period{Year: 2025, Month: 5}, recs[11].Predicted())
	for i, rec := range recs {
		assert.Equal(t, target.Add(i+1), rec.Predicted())
	}
}

func TestRun_OrderingWithManyWorkers(t *testing.T) {
	target := period.Period{Year: 2023, Month: 12}
	r := features.NewMemoryReader()
	ids := []int64{50, 3, 42, 7, 19, 88, 1, 64}
	for _, id := range ids {
		r.AddBuilding(model.Building{ID: id})
		r.AddUnit(id, target, id)
	}
	o := NewOrchestrator(r, registry.New(canonicalLoader(), nil), nil, WithWorkers(8))

	recs, err := o.Run(context.Background(), target, "T3,T1")
	require.NoError(t, err)
	require.Len(t, recs, len(ids)*2)
	for i, id := range ids {
		assert.Equal(t, float64(id), recs[2*i].Unit)
		assert.Equal(t, "T3", recs[2*i].ModelName)
		assert.Equal(t, "T1", recs[2*i+1].ModelName)
	}
	// Selector index, not model name, decides the offset.
	assert.Equal(t, period.Period{Year: 2024, Month: 1}, recs[0].Predicted())
	assert.Equal(t, period.Period{Year: 2024, Month: 2}, recs[1].Predicted())
}

func TestRun_SkipsUnknownBuilding(t *testing.T) {
	target := period.Period{Year: 2024, Month: 3}
	r := twoBuildings(target)
	r.AddUnit(30, target, 5) // no metadata for 30
	o := NewOrchestrator(r, registry.New(canonicalLoader(), nil), nil)

	recs, err := o.Run(context.Background(), target, "T1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "10", recs[0].Building)
	assert.Equal(t, "20", recs[1].Building)
}

func TestRun_NoDataForPeriod(t *testing.T) {
	o := NewOrchestrator(features.NewMemoryReader(), registry.New(canonicalLoader(), nil), nil)
	_, err := o.Run(context.Background(), period.Period{Year: 2099, Month: 1}, "All")
	assert.True(t, errors.Is(err, ErrNoDataForPeriod))
	assert.Equal(t, ClassNotFound, Classify(err))
}

func TestRun_ScoringErrorAborts(t *testing.T) {
	target := period.Period{Year: 2024, Month: 3}
	loader := registry.NewMemoryLoader(
		unitModel("T1", 0),
		registry.FuncHandle{ModelName: "bad", Fn: func(features.Vector) (float64, error) {
			return 0, errors.New("shape mismatch")
		}},
	)
	o := NewOrchestrator(twoBuildings(target), registry.New(loader, nil), nil)

	recs, err := o.Run(context.Background(), target, "T1,bad")
	assert.Nil(t, recs)
	var se *registry.ScoringError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "bad", se.Model)
	assert.Equal(t, ClassInternal, Classify(err))
}

func TestRun_ModelNotFound(t *testing.T) {
	target := period.Period{Year: 2024, Month: 3}
	o := NewOrchestrator(twoBuildings(target), registry.New(canonicalLoader(), nil), nil)
	_, err := o.Run(context.Background(), target, "T1,T99")
	assert.True(t, errors.Is(err, registry.ErrModelNotFound))
	assert.Equal(t, ClassNotFound, Classify(err))
}

func TestRun_InvalidSelector(t *testing.T) {
	target := period.Period{Year: 2024, Month: 3}
	o := NewOrchestrator(twoBuildings(target), registry.New(canonicalLoader(), nil), nil)
	_, err := o.Run(context.Background(), target, "")
	assert.Equal(t, ClassValidation, Classify(err))
}

func TestRun_FirstFailingBuildingDecidesError(t *testing.T) {
	target := period.Period{Year: 2024, Month: 3}
	r := features.NewMemoryReader()
	for _, id := range []int64{10, 20, 30, 40} {
		r.AddBuilding(model.Building{ID: id})
		r.AddUnit(id, target, id)
	}
	// T1 faults on building 10 only; T2 is missing, so every other building
	// fails with a not-found error.
	loader := registry.NewMemoryLoader(registry.FuncHandle{ModelName: "T1", Fn: func(v features.Vector) (float64, error) {
		if v.Get(features.SignalUnit, 0) == 10 {
			return 0, errors.New("shape mismatch")
		}
		return 1, nil
	}})

	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			o := NewOrchestrator(r, registry.New(loader, nil), nil, WithWorkers(workers))
			for i := 0; i < 50; i++ {
				recs, err := o.Run(context.Background(), target, "T1,T2")
				require.Error(t, err)
				assert.Nil(t, recs)
				var se *registry.ScoringError
				require.True(t, errors.As(err, &se), "run %d: %v", i, err)
				assert.Equal(t, "T1", se.Model)
				assert.Equal(t, ClassInternal, Classify(err))
			}
		})
	}
}

type failingScoring struct{}

func (failingScoring) RecordScoring(coremetrics.ScoringEvent) error {
	return errors.New("influx unreachable")
}

type recordLogger struct {
	logger.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func TestRun_ScoringSinkErrorIsLogged(t *testing.T) {
	target := period.Period{Year: 2024, Month: 3}
	log := &recordLogger{}
	o := NewOrchestrator(twoBuildings(target), registry.New(canonicalLoader(), nil), log,
		WithScoringRecorder(failingScoring{}))

	recs, err := o.Run(context.Background(), target, "T1")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.warns, 2)
	for _, w := range log.warns {
		assert.Contains(t, w, "record scoring metrics for model T1")
		assert.Contains(t, w, "influx unreachable")
	}
}
