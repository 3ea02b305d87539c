package metrics

import (
	"time"

	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// ForecastResult summarises one predict-or-fetch request.
type ForecastResult struct {
	Period   period.Period
	Records  int
	Cached   bool
	Duration time.Duration
}

// MetricsSink records forecast requests for observability purposes.
type MetricsSink interface {
	RecordForecast(res ForecastResult) error
}

// ScoringEvent captures one model invocation.
type ScoringEvent struct {
	Model    string
	Building string
	Duration time.Duration
	Err      error
}

// ScoringRecorder records model invocations.
type ScoringRecorder interface {
	RecordScoring(ev ScoringEvent) error
}

// PredictionRecorder exports computed predictions as time series.
type PredictionRecorder interface {
	RecordPredictions(recs []model.PredictionRecord) error
}

// FailureEvent records an aborted request.
type FailureEvent struct {
	Period period.Period
	Class  string
	Time   time.Time
}

// FailureRecorder records aborted requests.
type FailureRecorder interface {
	RecordFailure(ev FailureEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordForecast(ForecastResult) error               { return nil }
func (NopSink) RecordScoring(ScoringEvent) error                  { return nil }
func (NopSink) RecordPredictions([]model.PredictionRecord) error { return nil }
func (NopSink) RecordFailure(FailureEvent) error                  { return nil }
