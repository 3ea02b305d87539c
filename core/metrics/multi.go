package metrics

import (
	"errors"

	"github.com/kilianp07/utilcast/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordForecast forwards the result to all sinks. Every sink is called; the
// errors are joined.
func (m *MultiSink) RecordForecast(res ForecastResult) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordForecast(res))
	}
	return errors.Join(errs...)
}

// RecordScoring forwards scoring events when supported by the sink.
func (m *MultiSink) RecordScoring(ev ScoringEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ScoringRecorder); ok {
			errs = append(errs, rec.RecordScoring(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordPredictions forwards predictions when supported by the sink.
func (m *MultiSink) RecordPredictions(recs []model.PredictionRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(PredictionRecorder); ok {
			errs = append(errs, rec.RecordPredictions(recs))
		}
	}
	return errors.Join(errs...)
}

// RecordFailure forwards failures when supported by the sink.
func (m *MultiSink) RecordFailure(ev FailureEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(FailureRecorder); ok {
			errs = append(errs, rec.RecordFailure(ev))
		}
	}
	return errors.Join(errs...)
}
