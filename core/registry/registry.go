// Package registry resolves model selectors to scoring handles and caches
// loaded models for the lifetime of the process.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kilianp07/utilcast/core/features"
	"github.com/kilianp07/utilcast/core/logger"
)

// AllModels is the selector expanding to the twelve monthly-offset models.
const AllModels = "All"

// Horizon is the number of canonical monthly-offset models.
const Horizon = 12

var (
	// ErrModelNotFound is returned when a model artifact does not exist.
	ErrModelNotFound = errors.New("model not found")
	// ErrInvalidSelector is returned for empty or malformed selectors.
	ErrInvalidSelector = errors.New("invalid model selector")
)

// ScoringError wraps a fault raised while invoking a model.
type ScoringError struct {
	Model string
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("model %s prediction error: %v", e.Model, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// Handle is a loaded model.
type Handle interface {
	Name() string
	Predict(v features.Vector) (float64, error)
}

// Loader fetches model artifacts by name.
type Loader interface {
	Load(ctx context.Context, name string) (Handle, error)
	// List returns the names of the artifacts the loader knows about.
	List(ctx context.Context) ([]string, error)
}

// CanonicalName returns the name of the model predicting offset months ahead.
func CanonicalName(offset int) string { return fmt.Sprintf("T%d", offset) }

// ParseSelector expands a selector into an ordered list of model names.
func ParseSelector(sel string) ([]string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrInvalidSelector)
	}
	if sel == AllModels {
		names := make([]string, Horizon)
		for i := range names {
			names[i] = CanonicalName(i + 1)
		}
		return names, nil
	}
	parts := strings.Split(sel, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: empty model name in %q", ErrInvalidSelector, sel)
		}
		names = append(names, p)
	}
	return names, nil
}

// Registry caches loaded handles.
type Registry struct {
	loader Loader
	log    logger.Logger

	mu      sync.RWMutex
	handles map[string]Handle
	group   singleflight.Group
}

// New returns a Registry backed by loader.
func New(loader Loader, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Registry{loader: loader, log: log, handles: make(map[string]Handle)}
}

// Resolve expands the selector. Models are not loaded until first use.
func (r *Registry) Resolve(sel string) ([]string, error) {
	names, err := ParseSelector(sel)
	if err != nil {
		return nil, err
	}
	r.log.Infof("model names to be used: %v", names)
	return names, nil
}

// Handle returns the loaded model, loading it on first use.
func (r *Registry) Handle(ctx context.Context, name string) (Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[name]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		h, ok := r.handles[name]
		r.mu.RUnlock()
		if ok {
			return h, nil
		}
		h, err := r.loader.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.handles[name] = h
		r.mu.Unlock()
		r.log.Infof("model %s loaded", name)
		return h, nil
	})
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			r.log.Errorf("model file does not exist: %s", name)
		}
		return nil, err
	}
	return v.(Handle), nil
}

// Score runs the named model on v. Invocation faults, including non-finite
// outputs, are returned as *ScoringError.
func (r *Registry) Score(ctx context.Context, name string, v features.Vector) (float64, error) {
	h, err := r.Handle(ctx, name)
	if err != nil {
		return 0, err
	}
	out, err := predict(h, v)
	if err != nil {
		return 0, &ScoringError{Model: name, Err: err}
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, &ScoringError{Model: name, Err: fmt.Errorf("non-finite prediction %v", out)}
	}
	return out, nil
}

func predict(h Handle, v features.Vector) (out float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Predict(v)
}

// Available lists the model names known to the loader, sorted.
func (r *Registry) Available(ctx context.Context) ([]string, error) {
	names, err := r.loader.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Loaded reports the number of cached handles.
func (r *Registry) Loaded() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
