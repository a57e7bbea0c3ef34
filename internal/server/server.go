// Package server exposes the reflex engine over HTTP: strategy and tick
// ingest, risk control, a WebSocket monitor subscription, and a Prometheus
// metrics endpoint. Routing, middleware, and the auth pattern are grounded on
// the teacher's dashboard server; the monitor subscription replaces the
// teacher's HTML dashboard with a JSON/WebSocket API since there is no
// browser-facing UI in this spec.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/engine"
	"github.com/antigravity-labs/reflex-engine/internal/eventbus"
	"github.com/antigravity-labs/reflex-engine/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// historyCapacity bounds the in-memory event-history ring independent of any
// persistence sink.
const historyCapacity = 500

// Config bundles a Server's dependencies and tunables.
type Config struct {
	Port        int
	AuthToken   string // checked against the X-Api-Key header; empty disables auth
	Engine      *engine.Engine
	Bus         *eventbus.Bus
	Metrics     *metrics.Metrics
	Log         *logrus.Entry
	StatsPeriod time.Duration
}

// Server is the reflex engine's HTTP/WS front end.
type Server struct {
	router    *chi.Mux
	httpSrv   *http.Server
	engine    *engine.Engine
	bus       *eventbus.Bus
	metrics   *metrics.Metrics
	log       *logrus.Entry
	port      int
	authToken string

	history *eventRing
}

// New constructs a Server and wires its routes. It starts a background
// subscriber that feeds the in-memory event-history ring; that subscriber
// stays on the bus for the process lifetime, and Server has no method that
// stops it.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		router:    chi.NewRouter(),
		engine:    cfg.Engine,
		bus:       cfg.Bus,
		metrics:   cfg.Metrics,
		log:       cfg.Log,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
		history:   newEventRing(historyCapacity),
	}
	s.setupRoutes()
	go s.recordHistory()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(middleware.Compress(5))

	s.router.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.router.Group(func(r chi.Router) {
		if s.authToken != "" {
			r.Use(s.authMiddleware)
		}
		r.Post("/v1/strategy", s.handleStrategyIngest)
		r.Get("/v1/strategy", s.handleStrategyRead)
		r.Post("/v1/strategy/disarm", s.handleStrategyDisarm)
		r.Post("/v1/ticks", s.handleTickIngest)
		r.Post("/v1/positions/close", s.handlePositionClose)
		r.Post("/v1/risk/kill", s.handleRiskKill)
		r.Post("/v1/risk/rearm", s.handleRiskRearm)
		r.Get("/v1/risk/status", s.handleRiskStatus)
		r.Get("/v1/events", s.handleEventsWS)
		r.Get("/v1/events/history", s.handleEventsHistory)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := s.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		entry.WithFields(logrus.Fields{
			"status":   wrapped.Status(),
			"duration": time.Since(start),
		}).Debug("http request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Api-Key")
		if len(token) != len(s.authToken) || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordHistory subscribes to the bus for the server's lifetime and appends
// every event to the bounded ring, independent of any persistence sink.
func (s *Server) recordHistory() {
	if s.bus == nil {
		return
	}
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for event := range sub.Events {
		s.history.push(event)
	}
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.WithField("port", s.port).Info("starting reflex server")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
