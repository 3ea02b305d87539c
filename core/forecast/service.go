package forecast

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/utilcast/core/events"
	"github.com/kilianp07/utilcast/core/features"
	"github.com/kilianp07/utilcast/core/logger"
	coremetrics "github.com/kilianp07/utilcast/core/metrics"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/monitoring"
	"github.com/kilianp07/utilcast/core/period"
	"github.com/kilianp07/utilcast/core/registry"
	"github.com/kilianp07/utilcast/internal/eventbus"
)

// Store persists prediction records keyed by the month they were requested for.
type Store interface {
	// Lookup returns the records stored for p, in insertion order.
	Lookup(ctx context.Context, p period.Period) ([]model.PredictionRecord, error)
	// Save inserts every record as a new row. It never merges.
	Save(ctx context.Context, recs []model.PredictionRecord) error
}

// Locker serialises work on a key across concurrent requests.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Result is the answer to a predict-or-fetch request.
type Result struct {
	RunID   string
	Records []model.PredictionRecord
	Cached  bool
}

// Service answers predict-or-fetch requests.
type Service struct {
	store   Store
	reader  features.Reader
	orch    *Orchestrator
	models  *registry.Registry
	locker  Locker
	bus     *eventbus.Bus[events.Event]
	sink    coremetrics.MetricsSink
	monitor monitoring.Monitor
	log     logger.Logger
}

// Deps groups the collaborators of a Service. Locker, Bus, Sink and Monitor
// are optional.
type Deps struct {
	Store   Store
	Reader  features.Reader
	Models  *registry.Registry
	Locker  Locker
	Bus     *eventbus.Bus[events.Event]
	Sink    coremetrics.MetricsSink
	Monitor monitoring.Monitor
	Logger  logger.Logger
}

// NewService wires a Service. Orchestrator options are forwarded.
func NewService(d Deps, opts ...Option) (*Service, error) {
	if d.Store == nil || d.Reader == nil || d.Models == nil {
		return nil, fmt.Errorf("forecast service requires a store, a reader and a model registry")
	}
	if d.Logger == nil {
		d.Logger = logger.NopLogger{}
	}
	if d.Sink == nil {
		d.Sink = coremetrics.NopSink{}
	}
	if d.Monitor == nil {
		d.Monitor = monitoring.NopMonitor{}
	}
	if d.Locker == nil {
		d.Locker = noLock{}
	}
	if rec, ok := d.Sink.(coremetrics.ScoringRecorder); ok {
		opts = append([]Option{WithScoringRecorder(rec)}, opts...)
	}
	return &Service{
		store:   d.Store,
		reader:  d.Reader,
		orch:    NewOrchestrator(d.Reader, d.Models, d.Logger, opts...),
		models:  d.Models,
		locker:  d.Locker,
		bus:     d.Bus,
		sink:    d.Sink,
		monitor: d.Monitor,
		log:     d.Logger,
	}, nil
}

// PredictOrFetch returns the stored records of the requested month or
// computes, stores and returns them. Stored records are keyed by month only:
// a request with a different model selector is answered from storage.
func (s *Service) PredictOrFetch(ctx context.Context, req model.Request) (Result, error) {
	start := time.Now()
	p, err := period.New(req.Year, req.Month)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if recs, err := s.store.Lookup(ctx, p); err != nil {
		return Result{}, s.fail(p, req.ModelName, fmt.Errorf("lookup predictions: %w", err))
	} else if len(recs) > 0 {
		return s.served(p, recs, start), nil
	}

	unlock, err := s.locker.Lock(ctx, LockKey(p))
	if err != nil {
		return Result{}, s.fail(p, req.ModelName, fmt.Errorf("claim %s: %w", p, err))
	}
	defer unlock()

	// Another request may have stored the month while we waited.
	if recs, err := s.store.Lookup(ctx, p); err != nil {
		return Result{}, s.fail(p, req.ModelName, fmt.Errorf("lookup predictions: %w", err))
	} else if len(recs) > 0 {
		return s.served(p, recs, start), nil
	}

	names, err := registry.ParseSelector(req.ModelName)
	if err != nil {
		return Result{}, s.fail(p, req.ModelName, err)
	}
	recs, err := s.orch.Run(ctx, p, req.ModelName)
	if err != nil {
		return Result{}, s.fail(p, req.ModelName, err)
	}
	if err := s.store.Save(ctx, recs); err != nil {
		return Result{}, s.fail(p, req.ModelName, fmt.Errorf("save predictions: %w", err))
	}

	runID := uuid.NewString()
	elapsed := time.Since(start)
	s.log.Infof("forecast %s computed for %s: %d records in %s", runID, p, len(recs), elapsed)
	s.record(coremetrics.ForecastResult{Period: p, Records: len(recs), Duration: elapsed})
	s.publish(events.ForecastComputed{
		RunID:    runID,
		Period:   p,
		Models:   names,
		Records:  recs,
		Duration: elapsed,
		Time:     time.Now(),
	})
	return Result{RunID: runID, Records: recs}, nil
}

// Lookup returns the stored records of a month without computing anything.
func (s *Service) Lookup(ctx context.Context, p period.Period) ([]model.PredictionRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return s.store.Lookup(ctx, p)
}

// CurrentPeriod returns the latest month with unit readings.
func (s *Service) CurrentPeriod(ctx context.Context) (period.Period, error) {
	p, ok, err := s.reader.LatestUnitPeriod(ctx)
	if err != nil {
		return period.Period{}, err
	}
	if !ok {
		return period.Period{}, ErrNoReadings
	}
	return p, nil
}

// Models lists the available model artifacts.
func (s *Service) Models(ctx context.Context) ([]string, error) {
	return s.models.Available(ctx)
}

// LockKey is the claim key of a month.
func LockKey(p period.Period) string { return "forecast:" + p.String() }

func (s *Service) served(p period.Period, recs []model.PredictionRecord, start time.Time) Result {
	s.log.Infof("serving %d stored predictions for %s", len(recs), p)
	s.record(coremetrics.ForecastResult{Period: p, Records: len(recs), Cached: true, Duration: time.Since(start)})
	s.publish(events.ForecastServed{Period: p, Records: len(recs), Time: time.Now()})
	return Result{Records: recs, Cached: true}
}

func (s *Service) fail(p period.Period, selector string, err error) error {
	class := Classify(err)
	switch class {
	case ClassInternal:
		s.log.Errorf("forecast %s failed: %v", p, err)
		s.monitor.CaptureException(err, map[string]string{
			"year":  strconv.Itoa(p.Year),
			"month": strconv.Itoa(p.Month),
			"model": selector,
		})
	case ClassCanceled:
		s.log.Warnf("forecast %s canceled: %v", p, err)
	default:
		s.log.Warnf("forecast %s rejected (%s): %v", p, class, err)
	}
	if rec, ok := s.sink.(coremetrics.FailureRecorder); ok {
		if rerr := rec.RecordFailure(coremetrics.FailureEvent{Period: p, Class: class.String(), Time: time.Now()}); rerr != nil {
			s.log.Warnf("record failure: %v", rerr)
		}
	}
	s.publish(events.ForecastFailed{Period: p, Selector: selector, Class: class.String(), Err: err, Time: time.Now()})
	return err
}

func (s *Service) record(res coremetrics.ForecastResult) {
	if err := s.sink.RecordForecast(res); err != nil {
		s.log.Warnf("record forecast metrics: %v", err)
	}
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }
