package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/utilcast/core/metrics"
)

// PromSink records forecast activity in Prometheus metrics.
type PromSink struct {
	requests *prometheus.CounterVec
	records  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	scoring  *prometheus.HistogramVec
	failures *prometheus.CounterVec
	latest   *prometheus.GaugeVec
}

// NewPromSink registers forecast metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	if s.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_requests_total",
		Help: "Predict-or-fetch requests answered, by outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.records, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_records_total",
		Help: "Prediction records returned, by outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forecast_request_duration_seconds",
		Help:    "Time spent answering a predict-or-fetch request",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.scoring, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_scoring_duration_seconds",
		Help:    "Time spent in a single model invocation",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"model", "success"})); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_failures_total",
		Help: "Aborted predict-or-fetch requests, by error class",
	}, []string{"class"})); err != nil {
		return nil, err
	}
	if s.latest, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forecast_last_computed_records",
		Help: "Number of records of the last computed forecast, by requested month",
	}, []string{"period"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func outcome(cached bool) string {
	if cached {
		return "cached"
	}
	return "computed"
}

// RecordForecast counts the request and its records.
func (s *PromSink) RecordForecast(res coremetrics.ForecastResult) error {
	o := outcome(res.Cached)
	s.requests.WithLabelValues(o).Inc()
	s.records.WithLabelValues(o).Add(float64(res.Records))
	s.duration.WithLabelValues(o).Observe(res.Duration.Seconds())
	if !res.Cached {
		s.latest.WithLabelValues(res.Period.String()).Set(float64(res.Records))
	}
	return nil
}

// RecordScoring observes the latency of one model invocation.
func (s *PromSink) RecordScoring(ev coremetrics.ScoringEvent) error {
	s.scoring.WithLabelValues(ev.Model, strconv.FormatBool(ev.Err == nil)).Observe(ev.Duration.Seconds())
	return nil
}

// RecordFailure counts an aborted request.
func (s *PromSink) RecordFailure(ev coremetrics.FailureEvent) error {
	s.failures.WithLabelValues(ev.Class).Inc()
	return nil
}
