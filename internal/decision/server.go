// Package decision exposes a blocked checkpoint over loopback HTTP so an
// external reviewer (or another process) can approve or reject it. The
// server fronts a checkpoint.Gate: the executor blocks in Gate.Decide while
// this bridge lists pending requests and accepts resolutions.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rowanhale/conveyor/internal/checkpoint"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrDisabled is returned by Start when the bridge is disabled in settings.
var ErrDisabled = errors.New("decision: server disabled")

// Logger is the minimal logging contract the server consumes.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Server wraps the HTTP listener and handlers backing the decision bridge.
type Server struct {
	settings Settings
	gate     *checkpoint.Gate
	logger   Logger
	clock    func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a decision bridge for a gate.
func NewServer(settings Settings, gate *checkpoint.Gate, opts ...Option) (*Server, error) {
	if gate == nil {
		return nil, fmt.Errorf("decision: checkpoint gate is required")
	}
	s := &Server{
		settings: settings,
		gate:     gate,
		logger:   nopLogger{},
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if !s.settings.Enabled {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("decision: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("decision: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/checkpoints", s.handlePending)
	mux.HandleFunc("/checkpoints/resolve", s.handleResolve)
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("decision: serve error: %v", err)
		}
	}()
	s.logger.Printf("decision: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return "http://" + s.settings.Address()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Pending       int    `json:"pending"`
}

type resolveRequest struct {
	CheckpointID string `json:"checkpoint_id"`
	Approved     bool   `json:"approved"`
	Note         string `json:"note,omitempty"`
}

type resolveResponse struct {
	Status       string `json:"status"`
	CheckpointID string `json:"checkpoint_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.mu.RLock()
	var uptime int64
	if !s.startTime.IsZero() {
		uptime = int64(s.clock().Sub(s.startTime).Seconds())
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		UptimeSeconds: uptime,
		Pending:       len(s.gate.Pending()),
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	pending := s.gate.Pending()
	if pending == nil {
		pending = []checkpoint.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return
	}
	var req resolveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.CheckpointID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "checkpoint_id is required"})
		return
	}
	if req.Approved {
		err = s.gate.Approve(req.CheckpointID, req.Note)
	} else {
		err = s.gate.Reject(req.CheckpointID, req.Note)
	}
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotPending) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Printf("decision: resolve error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolution failed"})
		return
	}
	s.logger.Printf("decision: checkpoint %s resolved (approved=%t)", req.CheckpointID, req.Approved)
	writeJSON(w, http.StatusOK, resolveResponse{Status: "resolved", CheckpointID: req.CheckpointID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
