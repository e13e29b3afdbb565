// Package proxy provides the HTTP server in front of the run service: the
// chat relay, the health probe and the live record feed.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/burpheart/runchat/internal/api"
	"github.com/burpheart/runchat/internal/dialer"
	"github.com/burpheart/runchat/internal/httpstream"
	"github.com/burpheart/runchat/internal/probe"
	"github.com/burpheart/runchat/internal/relay"
	"github.com/burpheart/runchat/pkg/types"
)

const (
	shutdownTimeout = 5 * time.Second

	// Recorded SSE payloads are capped; inline data URLs can be megabytes.
	maxRecordedEvent = 64 << 10
)

// Server is the chat proxy server.
type Server struct {
	config   types.Config
	logger   httpstream.Logger
	recorder *httpstream.Recorder
	upstream *http.Client
	relay    *relay.Relay

	// WebSocket hub for real-time updates
	hub *api.Hub

	httpServer *http.Server

	mu      sync.Mutex
	started bool
	addr    net.Addr
	cancel  context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default colored stdout logger.
func WithLogger(l httpstream.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new proxy server.
func NewServer(config types.Config, opts ...Option) (*Server, error) {
	s := &Server{config: config}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = httpstream.NewDefaultLogger(
			httpstream.WithLevel(config.LogLevel),
			httpstream.WithColor(true),
		)
	}

	d := dialer.New(config.UpstreamProxy)
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("configure upstream dialer: %w", err)
	}
	s.upstream = &http.Client{Transport: d.Transport()}
	if config.UpstreamProxy != "" {
		s.logger.Info("Upstream proxy: %s", config.UpstreamProxy)
	}

	// Create WebSocket hub for real-time updates
	s.hub = api.NewHub()

	recorder, err := httpstream.NewRecorder(
		config.RecordFile,
		httpstream.WithOnRecord(func(rec httpstream.Record) {
			// Broadcast to WebSocket clients
			s.hub.Broadcast(rec)
		}),
		httpstream.WithCacheSize(10000),
		httpstream.WithMaxEventData(maxRecordedEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("create stream recorder: %w", err)
	}
	s.recorder = recorder
	if config.RecordFile != "" {
		s.logger.Info("Stream recording enabled: %s", config.RecordFile)
	}

	s.relay = relay.New(config.UpstreamURL, config.Identity,
		relay.WithAPIKey(config.APIKey),
		relay.WithHTTPClient(s.upstream),
		relay.WithLogger(s.logger),
		relay.WithRecorder(recorder),
	)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/chat", allow(http.MethodPost, s.relay))
	mux.Handle("/api/health", allow(http.MethodGet, http.HandlerFunc(s.handleHealth)))
	mux.HandleFunc("/api/status", s.handleStatus)

	handler := api.NewHandler(s.hub, s.recorder)
	handler.RegisterRoutes(mux)

	return mux
}

// Start listens on the configured address and serves until ctx is done or
// Stop is called. A Server can be started once.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.started = true
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		s.setStopped()
		return fmt.Errorf("listen: %w", err)
	}
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	s.logger.Info("Chat proxy listening on %s", listener.Addr())
	s.logger.Info("Relaying to %s (tenant=%s project=%s graph=%s)",
		probe.Resource(s.config.UpstreamURL), s.config.Identity.TenantID,
		s.config.Identity.ProjectID, s.config.Identity.GraphID)

	g, gctx := errgroup.WithContext(ctx)

	// Start WebSocket hub
	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Shutdown incomplete, closing open streams: %v", err)
			s.httpServer.Close()
		}
		return nil
	})

	err = g.Wait()
	s.setStopped()
	if cerr := s.recorder.Close(); cerr != nil {
		s.logger.Warn("Close recorder: %v", cerr)
	}
	return err
}

// Stop stops a running server. Start returns once shutdown completes.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Addr returns the listening address, or nil before Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

// handleHealth probes the run service. It always answers 200; failures are
// reported in the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := probe.Check(r.Context(), s.upstream, s.config.HealthBase(), s.config.Identity)
	if !report.Reachable {
		s.logger.Warn("Health probe %s: %s", report.Resource, report.Message)
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "running",
		"upstream":   s.config.UpstreamURL,
		"graph_id":   s.config.Identity.GraphID,
		"records":    s.recorder.RecordCount(),
		"ws_clients": s.hub.ClientCount(),
	})
}

// allow restricts h to one method.
func allow(method string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
