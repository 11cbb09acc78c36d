package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"kelora/internal/tracker"
)

// Server is the "--metrics" HTTP endpoint (spec.md §6.1 "--metrics").
// Grounded on the teacher's internal/app.registerHandlers, which wires a
// *mux.Router to named routes ("/health", "/stats", "/metrics", ...);
// this generalizes that pattern down to the two routes Kelora's
// diagnostics actually need rather than the teacher's full operational
// surface.
type Server struct {
	httpSrv *http.Server
	router  *mux.Router
	logger  *logrus.Logger

	collector *Collector
	tracker   func() *tracker.Tracker
}

// NewServer builds the diagnostics HTTP server bound to addr (e.g.
// ":9090"). trackerFn is consulted lazily on every /stats request so the
// JSON reflects the latest merged tracker, not a snapshot taken at
// startup.
func NewServer(addr string, collector *Collector, trackerFn func() *tracker.Tracker, logger *logrus.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		collector: collector,
		tracker:   trackerFn,
	}
	s.registerRoutes()
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/stats", s.statsHandler).Methods("GET")
}

// statsHandler returns the same Summary shape as --metrics-file, letting
// a monitoring system poll the running process instead of waiting for
// the file written at shutdown.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	var tr *tracker.Tracker
	if s.tracker != nil {
		tr = s.tracker()
	}
	summary := s.collector.Build(tr)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Error("failed to encode stats response")
		}
	}
}

// Start begins serving in the background. Errors other than
// http.ErrServerClosed are logged, mirroring how the teacher's metrics
// server runs detached from the main request path.
func (s *Server) Start() {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.WithError(err).Error("diagnostics server stopped unexpectedly")
			}
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
