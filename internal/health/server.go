// Package health exposes the liveness HTTP endpoint.
//
// The handler shares nothing mutable with the monitor: it reads a
// point-in-time counters snapshot through the injected StatusFunc.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stockwatch/internal/monitor"
	logx "stockwatch/pkg/logx"
)

// StatusFunc returns the monitor's current counters snapshot.
type StatusFunc func() monitor.Status

type Server struct {
	httpServer *http.Server
	log        logx.Logger
	status     StatusFunc
	startedAt  time.Time
}

type response struct {
	Status string         `json:"status"`
	Uptime string         `json:"uptime"`
	Stats  monitor.Status `json:"stats"`
}

func NewServer(addr string, status StatusFunc, log logx.Logger) *Server {
	if addr == "" {
		addr = ":5000"
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{
		log:       log,
		status:    status,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleStatus)
	r.Get("/healthz", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := response{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.status != nil {
		resp.Stats = s.status()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("liveness endpoint listening", logx.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("liveness endpoint stopping")
	return s.httpServer.Shutdown(ctx)
}
