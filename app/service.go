// Package app wires the storage, model, metrics and notification layers
// into a running forecast service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	apiforecast "github.com/kilianp07/utilcast/api/forecast"
	"github.com/kilianp07/utilcast/config"
	"github.com/kilianp07/utilcast/core/events"
	"github.com/kilianp07/utilcast/core/forecast"
	coremetrics "github.com/kilianp07/utilcast/core/metrics"
	coremon "github.com/kilianp07/utilcast/core/monitoring"
	"github.com/kilianp07/utilcast/core/registry"
	"github.com/kilianp07/utilcast/infra/lock"
	"github.com/kilianp07/utilcast/infra/logger"
	"github.com/kilianp07/utilcast/infra/metrics"
	"github.com/kilianp07/utilcast/infra/modelfile"
	"github.com/kilianp07/utilcast/infra/monitoring"
	"github.com/kilianp07/utilcast/infra/mqtt"
	"github.com/kilianp07/utilcast/infra/storage"
	"github.com/kilianp07/utilcast/internal/eventbus"
)

const busBuffer = 64

// Service holds the wired forecast service and the resources it owns.
type Service struct {
	Forecast *forecast.Service
	Models   *registry.Registry
	DB       *storage.DB
	Store    *storage.PredictionStore

	cfg     *config.Config
	bus     *eventbus.Bus[events.Event]
	sink    coremetrics.MetricsSink
	monitor coremon.Monitor
	mqtt    *mqtt.PahoClient
	closers []func() error
	log     logger.Logger
}

// New creates a Service from the configuration. The caller must Close it.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	s := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.monitor, err = monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	s.closers = append(s.closers, func() error { s.monitor.Flush(2 * time.Second); return nil })

	s.DB, err = storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.DB.Close)
	s.Store = storage.NewPredictionStore(s.DB)
	s.Models = registry.New(modelfile.NewLoader(cfg.Models.Dir, logger.New("modelfile")), logger.New("registry"))

	locker, err := s.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		s.closers = append(s.closers, func() error { c.Close(); return nil })
	}

	s.bus = eventbus.New[events.Event](busBuffer)
	s.closers = append(s.closers, func() error { s.bus.Close(); return nil })

	if cfg.MQTT.Enabled() {
		s.mqtt, err = mqtt.NewPahoClient(cfg.MQTT, s.monitor)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.closers = append(s.closers, func() error { s.mqtt.Disconnect(); return nil })
	}

	s.Forecast, err = forecast.NewService(forecast.Deps{
		Store:   s.Store,
		Reader:  storage.NewReader(s.DB),
		Models:  s.Models,
		Locker:  locker,
		Bus:     s.bus,
		Sink:    s.sink,
		Monitor: s.monitor,
		Logger:  logger.New("forecast"),
	}, forecast.WithWorkers(cfg.Forecast.Workers))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) newLocker(ctx context.Context) (forecast.Locker, error) {
	if s.cfg.Lock.Backend != config.LockRedis {
		return lock.NewMemory(), nil
	}
	l, err := lock.DialRedis(ctx, s.cfg.Lock.Redis, logger.New("lock"))
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	s.closers = append(s.closers, l.Close)
	return l, nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	apiforecast.Routes(mux, s.Forecast, logger.New("api"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Run serves the HTTP API until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	collected := metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("collector"))
	if s.mqtt != nil {
		notified := mqtt.NewNotifier(s.mqtt, s.cfg.MQTT.Topic, logger.New("mqtt_notifier")).Start(ctx, s.bus)
		g.Go(func() error { <-notified; return nil })
	}
	g.Go(func() error { <-collected; return nil })

	if addr := s.cfg.Metrics.PrometheusPort; addr != "" {
		g.Go(func() error {
			if err := metrics.StartPromServer(ctx, addr, prometheus.DefaultGatherer, s.log); err != nil {
				return fmt.Errorf("prom server: %w", err)
			}
			return nil
		})
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		s.log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases resources in reverse order of acquisition.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
