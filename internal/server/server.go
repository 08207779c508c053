// Package server exposes the controller over a small JSON HTTP API.
// Mutating endpoints start work in the background and answer 202 with the
// current status.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/ramadan-times/internal/controller"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/ics"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
)

const shutdownTimeout = 5 * time.Second

// Controller is the part of *controller.Controller the server drives.
type Controller interface {
	Snapshot() controller.Snapshot
	Refresh(ctx context.Context) (*ramadan.Calendar, error)
	SetMethod(ctx context.Context, method int) (*ramadan.Calendar, error)
	SetLocation(ctx context.Context, loc geo.Location) (*ramadan.Calendar, error)
	ToggleOffsets(ctx context.Context) (*ramadan.Calendar, error)
	Clear()
}

// Server serves the HTTP API.
type Server struct {
	ctrl    Controller
	metrics http.Handler
	logger  zerolog.Logger

	// ctx outlives requests so background loads are not cancelled when the
	// triggering request completes.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server. metrics may be nil to disable /metrics.
func New(ctrl Controller, metrics http.Handler, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctrl:    ctrl,
		metrics: metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/calendar.ics", s.handleICS)
		r.Get("/today", s.handleToday)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/clear", s.handleClear)
		r.Put("/method", s.handleMethod)
		r.Post("/offsets/toggle", s.handleToggleOffsets)
		r.Put("/location", s.handleLocation)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and waits for background loads to stop.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server started")
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("shutting down http server")
	err := httpSrv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close cancels background loads and waits for them.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every background load has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot().Status())
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	cal := s.ctrl.Snapshot().Calendar
	if cal == nil {
		writeError(w, http.StatusNotFound, "no calendar loaded")
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (s *Server) handleToday(w http.ResponseWriter, _ *http.Request) {
	cal := s.ctrl.Snapshot().Calendar
	if cal == nil {
		writeError(w, http.StatusNotFound, "no calendar loaded")
		return
	}
	d, ok := cal.Today()
	if !ok {
		writeError(w, http.StatusNotFound, "today is not in Ramadan")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	cal := s.ctrl.Snapshot().Calendar
	if cal == nil {
		writeError(w, http.StatusNotFound, "no calendar loaded")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ramadan-%d.ics"`, cal.HijriYear))
	if err := ics.Write(w, cal); err != nil {
		s.logger.Warn().Err(err).Msg("writing ics failed")
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.trigger("refresh", s.ctrl.Refresh)
	s.accepted(w)
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Clear()
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot().Status())
}

func (s *Server) handleToggleOffsets(w http.ResponseWriter, _ *http.Request) {
	s.trigger("toggle offsets", s.ctrl.ToggleOffsets)
	s.accepted(w)
}

type methodRequest struct {
	Method *int `json:"method"`
}

func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	var req methodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Method == nil || *req.Method < 0 || *req.Method > 23 {
		writeError(w, http.StatusBadRequest, "method must be between 0 and 23")
		return
	}
	method := *req.Method
	s.trigger("set method", func(ctx context.Context) (*ramadan.Calendar, error) {
		return s.ctrl.SetMethod(ctx, method)
	})
	s.accepted(w)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var loc geo.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !loc.HasCoordinates() && loc.City == "" {
		writeError(w, http.StatusBadRequest, "location needs lat/lng or city")
		return
	}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		writeError(w, http.StatusBadRequest, "lat/lng out of range")
		return
	}
	if loc.Timezone != "" {
		if _, err := time.LoadLocation(loc.Timezone); err != nil {
			writeError(w, http.StatusBadRequest, "unknown timezone")
			return
		}
	}
	s.trigger("set location", func(ctx context.Context) (*ramadan.Calendar, error) {
		return s.ctrl.SetLocation(ctx, loc)
	})
	s.accepted(w)
}

func (s *Server) accepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, s.ctrl.Snapshot().Status())
}

// trigger runs fn in the background under the server's context.
func (s *Server) trigger(name string, fn func(context.Context) (*ramadan.Calendar, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := fn(s.ctx); err != nil && !errors.Is(err, controller.ErrLoadAborted) {
			s.logger.Warn().Err(err).Str("trigger", name).Msg("background load failed")
		}
	}()
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
