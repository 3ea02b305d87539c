package events

import (
	"time"

	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// Event is implemented by every forecast event.
type Event interface {
	EventPeriod() period.Period
}

// ForecastComputed is published once the records of a run are stored.
type ForecastComputed struct {
	RunID    string
	Period   period.Period
	Models   []string
	Records  []model.PredictionRecord
	Duration time.Duration
	Time     time.Time
}

// ForecastServed is published when a request is answered from storage.
type ForecastServed struct {
	Period  period.Period
	Records int
	Time    time.Time
}

// ForecastFailed is published when a run aborts. Class is the error class
// name reported to the caller.
type ForecastFailed struct {
	Period   period.Period
	Selector string
	Class    string
	Err      error
	Time     time.Time
}

func (e ForecastComputed) EventPeriod() period.Period { return e.Period }
func (e ForecastServed) EventPeriod() period.Period   { return e.Period }
func (e ForecastFailed) EventPeriod() period.Period   { return e.Period }
