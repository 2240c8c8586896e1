// Package server exposes the Zeilumara clock, events and notification
// triggers over HTTP, with a WebSocket live clock and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/daviddao/zeilumara/pkg/clock"
	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/notify"
	"github.com/daviddao/zeilumara/pkg/recur"
	"github.com/daviddao/zeilumara/pkg/store"
)

// Options configures a Server. Zero values select defaults.
type Options struct {
	Limits   notify.Limits
	Horizon  time.Duration
	Interval time.Duration // live clock push interval
	Logger   *slog.Logger
	Now      func() model.LinearTime
}

// Server serves one store. The conversion engine is swapped atomically
// when the epoch setting changes; requests already running keep the
// engine they started with.
type Server struct {
	store    store.StoreInterface
	engine   atomic.Pointer[clock.Engine]
	limits   notify.Limits
	horizon  time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() model.LinearTime
	metrics  *Metrics

	// writeMu serializes mutations that reschedule triggers.
	writeMu sync.Mutex
}

// New builds a server around st, loading the stored epoch.
func New(st store.StoreInterface, opts Options) (*Server, error) {
	settings, err := st.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	s := &Server{
		store:    st,
		limits:   opts.Limits,
		horizon:  opts.Horizon,
		interval: opts.Interval,
		logger:   opts.Logger,
		now:      opts.Now,
		metrics:  NewMetrics(),
	}
	if s.horizon <= 0 {
		s.horizon = recur.DefaultHorizon
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = model.Now
	}
	s.engine.Store(clock.New(settings.Epoch, nil))
	return s, nil
}

// Engine returns the current conversion engine.
func (s *Server) Engine() *clock.Engine { return s.engine.Load() }

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) scheduler(e *clock.Engine) *notify.Scheduler {
	return notify.NewScheduler(e, s.store,
		notify.WithLimits(s.limits),
		notify.WithHorizon(s.horizon),
		notify.WithClock(s.now),
		notify.WithLogger(s.logger))
}

// SetupMux routes every endpoint.
func (s *Server) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", s.metrics.Handler())
	r.HandleFunc("/ws/clock", s.clockSocketHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.metrics.Middleware)
	api.HandleFunc("/now", s.nowHandler).Methods(http.MethodGet)
	api.HandleFunc("/convert", s.toStructuredHandler).Methods(http.MethodGet)
	api.HandleFunc("/convert", s.toLinearHandler).Methods(http.MethodPost)
	api.HandleFunc("/events", s.listEventsHandler).Methods(http.MethodGet)
	api.HandleFunc("/events", s.saveEventHandler).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}", s.getEventHandler).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", s.deleteEventHandler).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id}/occurrences", s.occurrencesHandler).Methods(http.MethodGet)
	api.HandleFunc("/triggers", s.triggersHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.getSettingsHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.putSettingsHandler).Methods(http.MethodPut)
	api.HandleFunc("/export", s.exportHandler).Methods(http.MethodGet)
	api.HandleFunc("/import", s.importHandler).Methods(http.MethodPost)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting zeilumara server", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
