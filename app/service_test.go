package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/utilcast/config"
	"github.com/kilianp07/utilcast/core/features"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
	"github.com/kilianp07/utilcast/infra/modelfile"
	"github.com/kilianp07/utilcast/infra/storage"
)

const dataset = `buildings:
  - {id: 1, code: "LIB", name: "Library", area: 1200}
units:
  - {building: 1, year: 2024, month: 2, amount: 900}
  - {building: 1, year: 2024, month: 3, amount: 1000}
users:
  - {year: 2024, month: 3, amount: 5000}
exams:
  - {year: 2024, month: 3, status: true}
semesters:
  - {year: 2024, month: 3, status: true}
`

func linearArtifact(intercept float64) string {
	coef := make([]float64, features.NumColumns)
	coef[features.Col(features.SignalUnit, 0)] = 1
	b, _ := json.Marshal(modelfile.Artifact{Kind: modelfile.KindLinear, Intercept: intercept, Coefficients: coef})
	return string(b)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	models := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(models, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(models, "T1.json"), []byte(linearArtifact(1)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(models, "T2.json"), []byte(linearArtifact(2)), 0o644))

	cfg := &config.Config{}
	cfg.Storage.DSN = filepath.Join(dir, "utilcast.db")
	cfg.Models.Dir = models
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func seed(t *testing.T, svc *Service) {
	t.Helper()
	ds, err := storage.ParseDataset(strings.NewReader(dataset))
	require.NoError(t, err)
	_, err = storage.NewImporter(svc.DB, nil).Import(context.Background(), ds)
	require.NoError(t, err)
}

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer svc.Close()
	seed(t, svc)

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/current-month")
	require.NoError(t, err)
	var cur period.Period
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cur))
	resp.Body.Close()
	assert.Equal(t, period.Period{Year: 2024, Month: 3}, cur)

	resp, err = http.Post(srv.URL+"/predict-or-fetch", "application/json",
		strings.NewReader(`{"year":2024,"month":3,"modelName":"T1,T2"}`))
	require.NoError(t, err)
	var recs []model.PredictionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	resp.Body.Close()
	require.Len(t, recs, 2)
	assert.Equal(t, "1", recs[0].Building)
	assert.InDelta(t, 1001, recs[0].Prediction, 1e-9)
	assert.InDelta(t, 1002, recs[1].Prediction, 1e-9)
	assert.Equal(t, 5, recs[1].MonthPredict)

	stored, err := svc.Store.Lookup(ctx, period.Period{Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	names, err := svc.Models.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, names)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Server.Addr = ln.Addr().String()
	require.NoError(t, ln.Close())

	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.Addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNew_InvalidRedisLock(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lock.Backend = config.LockRedis
	cfg.Lock.Redis.Addr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := New(ctx, cfg)
	assert.ErrorContains(t, err, "redis lock")
}
