package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soundbridge/soundbridge/internal/discovery"
	"github.com/soundbridge/soundbridge/internal/logging"
	"github.com/soundbridge/soundbridge/internal/proxy"
	"github.com/soundbridge/soundbridge/internal/state"
	"go.uber.org/zap"
)

// Config holds the server configuration
type Config struct {
	Host             string
	Port             int
	DiscoveryTimeout time.Duration
}

// Discoverer runs one discovery pass and returns the fresh result set
type Discoverer interface {
	Discover(ctx context.Context, timeout time.Duration) map[string]*discovery.Device
}

// Server is the local control endpoint: discovery triggers, selection
// state, and the request relay to the selected speaker.
type Server struct {
	config     *Config
	state      *state.State
	discoverer Discoverer
	forwarder  *proxy.Forwarder
	httpServer *http.Server
}

// New creates a Server around the shared selection state
func New(config *Config, st *state.State, discoverer Discoverer) *Server {
	s := &Server{
		config:     config,
		state:      st,
		discoverer: discoverer,
		forwarder:  proxy.NewForwarder(st),
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root HTTP handler. Exposed so tests can drive
// the full routing table through httptest without a listener.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.route)
}

// route dispatches inbound requests. Anything outside the known
// surface is not-found; OPTIONS anywhere answers the CORS preflight.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path)

	if r.Method == http.MethodOptions {
		s.handlePreflight(w)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/discover" && r.Method == http.MethodGet:
		s.handleDiscover(w, r)
	case path == "/current-device" && r.Method == http.MethodGet:
		s.handleCurrentDevice(w)
	case path == "/set-device" && r.Method == http.MethodPost:
		s.handleSetDevice(w, r)
	case strings.HasPrefix(path, proxy.PathPrefix+"/") && (r.Method == http.MethodGet || r.Method == http.MethodPost):
		s.forwarder.Forward(w, r)
	case path == "/events" && r.Method == http.MethodGet:
		s.handleEvents(w, r)
	default:
		proxy.SetCORSHeaders(w)
		http.NotFound(w, r)
	}
}

// handlePreflight answers the standard cross-origin handshake for
// GET/POST without authentication
func (s *Server) handlePreflight(w http.ResponseWriter) {
	proxy.SetCORSHeaders(w)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

// handleDiscover triggers a discovery run and returns the resulting
// ip -> device mapping
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	logging.Info("starting device discovery")
	devices := s.discoverer.Discover(r.Context(), s.config.DiscoveryTimeout)
	logging.Info("discovery finished", zap.Int("devices", len(devices)))
	s.writeJSON(w, devices)
}

// handleCurrentDevice reports the selection state snapshot
func (s *Server) handleCurrentDevice(w http.ResponseWriter) {
	ip, devices := s.state.Snapshot()
	s.writeJSON(w, map[string]any{
		"ip":      ip,
		"devices": devices,
	})
}

// handleSetDevice records a new proxy target. The IP is a trusted
// client directive and is not validated against the discovered set.
func (s *Server) handleSetDevice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		proxy.SetCORSHeaders(w)
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	s.state.SetDevice(body.IP)
	s.writeJSON(w, map[string]any{
		"success": true,
		"ip":      body.IP,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	proxy.SetCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error("failed to encode JSON response", zap.Error(err))
	}
}

// Start runs the server and blocks until a shutdown signal or a
// listener error
func (s *Server) Start() error {
	logging.Info("starting SoundTouch bridge",
		zap.String("addr", s.httpServer.Addr),
		zap.Duration("discovery_timeout", s.config.DiscoveryTimeout),
	)
	if ip := s.state.CurrentIP(); ip != "" {
		logging.Info("initial device", zap.String("ip", ip))
	} else {
		logging.Info("no device selected; use /discover to find devices")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logging.Info("shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Shutdown drains in-flight requests, bounded to 10 seconds
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		logging.Warn("shutdown incomplete, forcing close", zap.Error(err))
		_ = s.httpServer.Close()
	} else {
		logging.Info("all connections closed gracefully")
	}

	logging.Sync()
	return err
}
