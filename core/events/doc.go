// Package events defines the forecast events emitted on the event bus.
//
// Available event types:
//   - ForecastComputed: a forecast run finished and its records were stored
//   - ForecastServed: stored records were returned without recomputing
//   - ForecastFailed: a forecast run was aborted
package events
