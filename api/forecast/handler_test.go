package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/utilcast/core/features"
	"github.com/kilianp07/utilcast/core/forecast"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
	"github.com/kilianp07/utilcast/core/registry"
)

func newServer(t *testing.T, withData bool) (*httptest.Server, *forecast.MemoryStore) {
	t.Helper()
	reader := features.NewMemoryReader()
	if withData {
		p := period.Period{Year: 2024, Month: 3}
		reader.AddBuilding(model.Building{ID: 10, Code: "A", Area: 100})
		reader.AddBuilding(model.Building{ID: 20, Code: "B", Area: 200})
		reader.AddUnit(10, p, 1000)
		reader.AddUnit(20, p, 2000)
	}
	handles := []registry.Handle{}
	for i := 1; i <= registry.Horizon; i++ {
		offset := float64(i)
		handles = append(handles, registry.FuncHandle{ModelName: registry.CanonicalName(i), Fn: func(v features.Vector) (float64, error) {
			return v.Get(features.SignalUnit, 0) + offset, nil
		}})
	}
	handles = append(handles, registry.FuncHandle{ModelName: "broken", Fn: func(features.Vector) (float64, error) {
		return 0, errors.New("bad weights")
	}})
	store := forecast.NewMemoryStore()
	svc, err := forecast.NewService(forecast.Deps{
		Store:  store,
		Reader: reader,
		Models: registry.New(registry.NewMemoryLoader(handles...), nil),
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	Routes(mux, svc, nil)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPredictOrFetch_ComputeThenServe(t *testing.T) {
	srv, store := newServer(t, true)

	resp := post(t, srv.URL+"/predict-or-fetch", `{"year":2024,"month":3,"modelName":"T1,T2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "false", resp.Header.Get("X-Forecast-Cached"))
	assert.NotEmpty(t, resp.Header.Get("X-Forecast-Run"))
	recs := decode[[]model.PredictionRecord](t, resp)
	require.Len(t, recs, 4)
	assert.Equal(t, "10", recs[0].Building)
	assert.Equal(t, "T1", recs[0].ModelName)
	assert.InDelta(t, 1001, recs[0].Prediction, 1e-9)
	assert.Equal(t, 4, recs[0].MonthPredict)
	assert.Equal(t, 5, recs[1].MonthPredict)
	assert.Equal(t, 1, store.Saves())

	resp = post(t, srv.URL+"/predict-or-fetch", `{"year":2024,"month":3,"modelName":"All"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Forecast-Cached"))
	assert.Len(t, decode[[]model.PredictionRecord](t, resp), 4)
	assert.Equal(t, 1, store.Saves())
}

func TestPredictOrFetch_JSONFieldNames(t *testing.T) {
	srv, _ := newServer(t, true)
	resp := post(t, srv.URL+"/predict-or-fetch", `{"year":2024,"month":3,"modelName":"T1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw := decode[[]map[string]any](t, resp)
	require.Len(t, raw, 2)
	for _, k := range []string{"building", "area", "prediction", "unit", "modelName",
		"month_current", "year_current", "month_predict", "year_predict"} {
		assert.Contains(t, raw[0], k)
	}
	assert.NotContains(t, raw[0], "created_at")
}

func TestPredictOrFetch_Errors(t *testing.T) {
	srv, _ := newServer(t, true)
	cases := []struct {
		name   string
		body   string
		status int
		class  string
	}{
		{"malformed body", `{"year":`, http.StatusBadRequest, "validation"},
		{"invalid month", `{"year":2024,"month":13,"modelName":"T1"}`, http.StatusBadRequest, "validation"},
		{"empty selector", `{"year":2024,"month":3,"modelName":""}`, http.StatusBadRequest, "validation"},
		{"no data", `{"year":2023,"month":1,"modelName":"T1"}`, http.StatusNotFound, "not_found"},
		{"unknown model", `{"year":2024,"month":3,"modelName":"T99"}`, http.StatusNotFound, "not_found"},
		{"scoring error", `{"year":2024,"month":3,"modelName":"broken"}`, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/predict-or-fetch", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.Equal(t, tc.class, body.Class)
			assert.NotEmpty(t, body.Detail)
		})
	}
}

func TestPredictOrFetch_MethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t, true)
	resp := get(t, srv.URL+"/predict-or-fetch")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestCheckPredictions(t *testing.T) {
	srv, store := newServer(t, true)

	resp := get(t, srv.URL+"/check-predictions?year=2024&month=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.PredictionRecord](t, resp))
	assert.Equal(t, 0, store.Saves())

	post(t, srv.URL+"/predict-or-fetch", `{"year":2024,"month":3,"modelName":"T3"}`)
	resp = get(t, srv.URL+"/check-predictions?year=2024&month=3")
	recs := decode[[]model.PredictionRecord](t, resp)
	require.Len(t, recs, 2)
	assert.Equal(t, "T3", recs[0].ModelName)

	resp = get(t, srv.URL+"/check-predictions?year=2024")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = get(t, srv.URL+"/check-predictions?year=2024&month=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCurrentMonth(t *testing.T) {
	srv, _ := newServer(t, true)
	resp := get(t, srv.URL+"/current-month")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]int{"year": 2024, "month": 3}, decode[map[string]int](t, resp))

	empty, _ := newServer(t, false)
	resp = get(t, empty.URL+"/current-month")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no data found", decode[errorBody](t, resp).Detail)
}

func TestModels(t *testing.T) {
	srv, _ := newServer(t, false)
	resp := get(t, srv.URL+"/models")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	names := decode[[]string](t, resp)
	require.Len(t, names, registry.Horizon+1)
	assert.Equal(t, "T1", names[0])
}

func TestChart(t *testing.T) {
	srv, _ := newServer(t, true)

	resp := get(t, srv.URL+"/forecasts/chart?year=2024&month=3")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	post(t, srv.URL+"/predict-or-fetch", `{"year":2024,"month":3,"modelName":"T1,T2"}`)
	resp = get(t, srv.URL+"/forecasts/chart?year=2024&month=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(b)
	assert.Contains(t, html, "building 10")
	assert.Contains(t, html, "2024-05")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(forecast.ErrInvalidRequest))
	assert.Equal(t, http.StatusNotFound, StatusFor(registry.ErrModelNotFound))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(fmt.Errorf("claim 2024-03: %w", context.Canceled)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("disk full")))
}
