package registry

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/utilcast/core/features"
)

func TestParseSelector(t *testing.T) {
	names, err := ParseSelector("All")
	require.NoError(t, err)
	require.Len(t, names, 12)
	for i, n := range names {
		assert.Equal(t, CanonicalName(i+1), n)
	}

	names, err = ParseSelector("T1,T3")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T3"}, names)

	names, err = ParseSelector(" T3 , custom ")
	require.NoError(t, err)
	assert.Equal(t, []string{"T3", "custom"}, names)

	for _, bad := range []string{"", "  ", "T1,,T2", ","} {
		_, err := ParseSelector(bad)
		assert.True(t, errors.Is(err, ErrInvalidSelector), bad)
	}
}

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, name string) (Handle, error) {
	args := m.Called(ctx, name)
	h, _ := args.Get(0).(Handle)
	return h, args.Error(1)
}

func (m *mockLoader) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func constant(name string, v float64) Handle {
	return FuncHandle{ModelName: name, Fn: func(features.Vector) (float64, error) { return v, nil }}
}

func TestRegistry_LoadsLazilyOnce(t *testing.T) {
	ctx := context.Background()
	l := &mockLoader{}
	l.On("Load", mock.Anything, "T1").Return(constant("T1", 42), nil).Once()
	r := New(l, nil)

	_, err := r.Resolve("T1")
	require.NoError(t, err)
	l.AssertNotCalled(t, "Load", mock.Anything, "T1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.Score(ctx, "T1", features.Vector{})
			assert.NoError(t, err)
			assert.Equal(t, 42.0, out)
		}()
	}
	wg.Wait()
	l.AssertNumberOfCalls(t, "Load", 1)
	assert.Equal(t, 1, r.Loaded())
}

func TestRegistry_ModelNotFound(t *testing.T) {
	r := New(NewMemoryLoader(), nil)
	_, err := r.Score(context.Background(), "T9", features.Vector{})
	assert.True(t, errors.Is(err, ErrModelNotFound))
	var se *ScoringError
	assert.False(t, errors.As(err, &se))
}

func TestRegistry_ScoringErrors(t *testing.T) {
	boom := errors.New("boom")
	l := NewMemoryLoader(
		FuncHandle{ModelName: "err", Fn: func(features.Vector) (float64, error) { return 0, boom }},
		FuncHandle{ModelName: "nan", Fn: func(features.Vector) (float64, error) { return math.NaN(), nil }},
		FuncHandle{ModelName: "panic", Fn: func(features.Vector) (float64, error) { panic("index out of range") }},
	)
	r := New(l, nil)
	for _, name := range []string{"err", "nan", "panic"} {
		_, err := r.Score(context.Background(), name, features.Vector{})
		var se *ScoringError
		require.True(t, errors.As(err, &se), name)
		assert.Equal(t, name, se.Model)
	}
	_, err := r.Score(context.Background(), "err", features.Vector{})
	assert.True(t, errors.Is(err, boom))
}

func TestRegistry_Available(t *testing.T) {
	r := New(NewMemoryLoader(constant("T2", 0), constant("T1", 0)), nil)
	names, err := r.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, names)
}
