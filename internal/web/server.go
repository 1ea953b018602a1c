// Package web serves the room reading and the daemon status over HTTP.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/sweeney/room-sensor/internal/analog"
	"github.com/sweeney/room-sensor/internal/status"
)

// Server serves the room reading and status pages over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	logger     *slog.Logger
	limiter    *rate.Limiter

	adcMu sync.Mutex // one conversion at a time
	adc   analog.ADC
}

// New creates a Server reading the door level from tracker and the light
// level from adc. rps limits reads of the room endpoint; zero or negative
// means unlimited.
func New(addr string, tracker *status.Tracker, adc analog.ADC, rps float64, logger *slog.Logger) *Server {
	limit := rate.Inf
	burst := 0
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps) + 1
	}
	s := &Server{
		tracker: tracker,
		adc:     adc,
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
	}

	r := mux.NewRouter()
	r.Handle("/", s.limit(http.HandlerFunc(s.handleRoom))).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/status.json", s.handleStatus).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the router, for serving on a custom listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	s.adcMu.Lock()
	sample, err := s.adc.Read()
	calibrated := s.adc.Calibrated()
	s.adcMu.Unlock()
	if err != nil {
		s.logger.Warn("light read failed", "err", err)
		http.Error(w, "light sensor unavailable", http.StatusServiceUnavailable)
		return
	}

	body := formatRoom(s.tracker.Door(), sample, calibrated)
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
	s.logger.Debug("served room", "remote", r.RemoteAddr, "raw", sample.Raw)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Warn("render index", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
