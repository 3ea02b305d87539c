// Package forecast turns historical readings into stored monthly forecasts:
// the Orchestrator scores every active building with the selected models and
// the Service adds the predict-or-fetch caching around it.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/utilcast/core/features"
	"github.com/kilianp07/utilcast/core/logger"
	coremetrics "github.com/kilianp07/utilcast/core/metrics"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
	"github.com/kilianp07/utilcast/core/registry"
)

// DefaultWorkers is the number of buildings scored concurrently.
const DefaultWorkers = 4

// Orchestrator scores the buildings active in a month.
type Orchestrator struct {
	reader    features.Reader
	assembler *features.Assembler
	models    *registry.Registry
	scoring   coremetrics.ScoringRecorder
	workers   int
	log       logger.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds the number of buildings processed concurrently.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithScoringRecorder records the latency of every model invocation.
func WithScoringRecorder(r coremetrics.ScoringRecorder) Option {
	return func(o *Orchestrator) { o.scoring = r }
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(reader features.Reader, models *registry.Registry, log logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.NopLogger{}
	}
	o := &Orchestrator{
		reader:    reader,
		assembler: features.NewAssembler(reader, log),
		models:    models,
		scoring:   coremetrics.NopSink{},
		workers:   DefaultWorkers,
		log:       log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run scores every building with unit readings in target. Records are
// ordered by building, in enumeration order, then by model, in selector
// order. The model at selector index i predicts target+i+1. Buildings
// without metadata are skipped. Any model fault fails the whole run with
// the error of the earliest failing building.
func (o *Orchestrator) Run(ctx context.Context, target period.Period, selector string) ([]model.PredictionRecord, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	ids, err := o.reader.BuildingsWithUnitData(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	if len(ids) == 0 {
		o.log.Warnf("no buildings found in unit readings for %s", target)
		return nil, fmt.Errorf("%w: %s", ErrNoDataForPeriod, target)
	}
	names, err := o.models.Resolve(selector)
	if err != nil {
		return nil, err
	}

	slots := make([][]model.PredictionRecord, len(ids))
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, id := range ids {
		g.Go(func() error {
			slots[i], errs[i] = o.runBuilding(ctx, id, target, names)
			return nil
		})
	}
	_ = g.Wait()
	// The first failing building in enumeration order decides the error,
	// whatever the worker count.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make([]model.PredictionRecord, 0, len(ids)*len(names))
	for _, recs := range slots {
		out = append(out, recs...)
	}
	return out, nil
}

func (o *Orchestrator) runBuilding(ctx context.Context, id int64, target period.Period, names []string) ([]model.PredictionRecord, error) {
	asm, err := o.assembler.Assemble(ctx, id, target)
	if errors.Is(err, features.ErrBuildingNotFound) {
		o.log.Warnf("building not found for id: %d", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	building := strconv.FormatInt(id, 10)
	recs := make([]model.PredictionRecord, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		pred, err := o.models.Score(ctx, name, asm.Vector)
		if rerr := o.scoring.RecordScoring(coremetrics.ScoringEvent{
			Model:    name,
			Building: building,
			Duration: time.Since(start),
			Err:      err,
		}); rerr != nil {
			o.log.Warnf("record scoring metrics for model %s: %v", name, rerr)
		}
		if err != nil {
			o.log.Errorf("model prediction error for building %d with model %s: %v", id, name, err)
			return nil, err
		}
		predicted := target.Add(i + 1)
		recs = append(recs, model.PredictionRecord{
			Building:     building,
			Area:         asm.Building.Area,
			Prediction:   pred,
			Unit:         asm.Unit,
			ModelName:    name,
			MonthCurrent: target.Month,
			YearCurrent:  target.Year,
			MonthPredict: predicted.Month,
			YearPredict:  predicted.Year,
		})
		o.log.Infof("model %s building %d prediction %.3f for %s", name, id, pred, predicted)
	}
	return recs, nil
}
