package forecast

import (
	"context"
	"errors"

	"github.com/kilianp07/utilcast/core/period"
	"github.com/kilianp07/utilcast/core/registry"
)

var (
	// ErrNoDataForPeriod is returned when no unit readings exist for the
	// requested month.
	ErrNoDataForPeriod = errors.New("no buildings found for the specified year and month")
	// ErrNoReadings is returned when the store holds no unit readings at all.
	ErrNoReadings = errors.New("no data found")
	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// Class groups errors by how they are reported to callers.
type Class int

const (
	ClassInternal Class = iota
	ClassNotFound
	ClassValidation
	// ClassCanceled covers runs stopped by the caller's context.
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassValidation:
		return "validation"
	case ClassCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Classify maps an error returned by the service to its class.
func Classify(err error) Class {
	var se *registry.ScoringError
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.As(err, &se):
		return ClassInternal
	case errors.Is(err, ErrNoDataForPeriod),
		errors.Is(err, ErrNoReadings),
		errors.Is(err, registry.ErrModelNotFound):
		return ClassNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, registry.ErrInvalidSelector),
		errors.Is(err, period.ErrInvalidPeriod):
		return ClassValidation
	default:
		return ClassInternal
	}
}
