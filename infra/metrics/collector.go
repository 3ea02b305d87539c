package metrics

import (
	"context"

	"github.com/kilianp07/utilcast/core/events"
	coremetrics "github.com/kilianp07/utilcast/core/metrics"
	"github.com/kilianp07/utilcast/infra/logger"
	"github.com/kilianp07/utilcast/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and exports the records of
// every computed forecast to sinks implementing PredictionRecorder.
// It stops when the context is canceled or the bus is closed. The returned
// channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.PredictionRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, ok := ev.(events.ForecastComputed)
				if !ok {
					continue
				}
				if err := rec.RecordPredictions(e.Records); err != nil && log != nil {
					log.Warnf("export predictions of run %s: %v", e.RunID, err)
				}
			}
		}
	}()
	return done
}
