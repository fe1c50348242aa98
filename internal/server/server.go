// Package server exposes telemetry over HTTP: Prometheus metrics, a JSON
// snapshot, a WebSocket stream and a health probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/fault"
	"groundlink.klederson.com/internal/link"
	"groundlink.klederson.com/internal/telemetry"
)

const writeWait = 10 * time.Second

// Deps groups the server's collaborators. Status, Gatherer and Logger may be
// nil.
type Deps struct {
	Addr      string
	Processor *telemetry.Processor
	Status    func() link.Status
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
	// PushInterval bounds how often a WebSocket client receives a snapshot.
	PushInterval time.Duration
}

// SnapshotView is the JSON shape served by /snapshot and /ws.
type SnapshotView struct {
	telemetry.Snapshot
	AccuracyPercent float64      `json:"accuracy_percent"`
	JitterPercent   float64      `json:"jitter_percent"`
	Link            *link.Status `json:"link,omitempty"`
}

// Server serves the telemetry endpoints.
type Server struct {
	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	done     chan error
	// cancelStreams ends WebSocket streams, which Shutdown does not track
	// once hijacked.
	cancelStreams context.CancelFunc
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PushInterval <= 0 {
		deps.PushInterval = time.Second / config.TargetFPS
	}
	s := &Server{
		deps:   deps,
		logger: deps.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(_ *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		mux: http.NewServeMux(),
	}

	if deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	s.mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return fault.ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.deps.Addr)
	if err != nil {
		return fault.WrapFatal(err, "Server", "Start")
	}
	base, cancel := context.WithCancel(context.Background())
	s.listener = ln
	s.cancelStreams = cancel
	s.http = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	s.done = make(chan error, 1)

	go func(srv *http.Server, done chan<- error) {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}(s.http, s.done)

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown closes WebSocket streams, stops accepting requests and waits for
// open ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done, cancelStreams := s.http, s.done, s.cancelStreams
	s.http, s.listener = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return fault.ErrNotStarted
	}

	cancelStreams()
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	if serveErr := <-done; serveErr != nil && err == nil {
		err = serveErr
	}
	s.logger.Info("http server stopped")
	return err
}

func (s *Server) view(snap telemetry.Snapshot) SnapshotView {
	v := SnapshotView{
		Snapshot:        snap,
		AccuracyPercent: snap.Accuracy(s.deps.Processor.Now()),
		JitterPercent:   snap.Jitter(),
	}
	if s.deps.Status != nil {
		st := s.deps.Status()
		v.Link = &st
	}
	return v
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.view(s.deps.Processor.Snapshot())); err != nil {
		s.logger.Debug("write snapshot", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Status != nil && !s.deps.Status().Connected {
		http.Error(w, "engine not connected", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
