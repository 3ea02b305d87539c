// Package forecast exposes the forecast service over HTTP.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/kilianp07/utilcast/core/forecast"
	"github.com/kilianp07/utilcast/core/logger"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// Forecaster is the part of forecast.Service used by the handlers.
type Forecaster interface {
	PredictOrFetch(ctx context.Context, req model.Request) (forecast.Result, error)
	Lookup(ctx context.Context, p period.Period) ([]model.PredictionRecord, error)
	CurrentPeriod(ctx context.Context) (period.Period, error)
	Models(ctx context.Context) ([]string, error)
}

const maxBodyBytes = 1 << 16

type errorBody struct {
	Detail string `json:"detail"`
	Class  string `json:"class"`
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch forecast.Classify(err) {
	case forecast.ClassValidation:
		return http.StatusBadRequest
	case forecast.ClassNotFound:
		return http.StatusNotFound
	case forecast.ClassCanceled:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorBody{Detail: err.Error(), Class: forecast.Classify(err).String()})
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// NewPredictHandler serves POST /predict-or-fetch.
func NewPredictHandler(svc Forecaster, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req model.Request
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, log, errors.Join(forecast.ErrInvalidRequest, err))
			return
		}
		res, err := svc.PredictOrFetch(r.Context(), req)
		if err != nil {
			writeError(w, log, err)
			return
		}
		w.Header().Set("X-Forecast-Cached", strconv.FormatBool(res.Cached))
		if res.RunID != "" {
			w.Header().Set("X-Forecast-Run", res.RunID)
		}
		writeJSON(w, http.StatusOK, nonNil(res.Records))
	})
}

// NewCheckHandler serves GET /check-predictions?year=&month=. It never
// computes and answers [] when nothing is stored.
func NewCheckHandler(svc Forecaster, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		p, err := periodFromQuery(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		recs, err := svc.Lookup(r.Context(), p)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(recs))
	})
}

// NewCurrentMonthHandler serves GET /current-month.
func NewCurrentMonthHandler(svc Forecaster, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		p, err := svc.CurrentPeriod(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"year": p.Year, "month": p.Month})
	})
}

// NewModelsHandler serves GET /models.
func NewModelsHandler(svc Forecaster, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		names, err := svc.Models(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, names)
	})
}

// NewChartHandler serves GET /forecasts/chart?year=&month= as an HTML line
// chart of the stored predictions.
func NewChartHandler(svc Forecaster, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		p, err := periodFromQuery(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		recs, err := svc.Lookup(r.Context(), p)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if len(recs) == 0 {
			writeError(w, log, forecast.ErrNoDataForPeriod)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := RenderChart(w, p, recs); err != nil {
			log.Errorf("render chart: %v", err)
		}
	})
}

// Routes registers every forecast endpoint on mux.
func Routes(mux *http.ServeMux, svc Forecaster, log logger.Logger) {
	if log == nil {
		log = logger.NopLogger{}
	}
	mux.Handle("/predict-or-fetch", NewPredictHandler(svc, log))
	mux.Handle("/check-predictions", NewCheckHandler(svc, log))
	mux.Handle("/current-month", NewCurrentMonthHandler(svc, log))
	mux.Handle("/models", NewModelsHandler(svc, log))
	mux.Handle("/forecasts/chart", NewChartHandler(svc, log))
}

func periodFromQuery(r *http.Request) (period.Period, error) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return period.Period{}, errors.Join(forecast.ErrInvalidRequest, errors.New("year must be an integer"))
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		return period.Period{}, errors.Join(forecast.ErrInvalidRequest, errors.New("month must be an integer"))
	}
	return period.New(year, month)
}

func nonNil(recs []model.PredictionRecord) []model.PredictionRecord {
	if recs == nil {
		return []model.PredictionRecord{}
	}
	return recs
}
