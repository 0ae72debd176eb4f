// Package server exposes a *session.Conversation over local HTTP: an
// embedded single page, a JSON snapshot endpoint and a websocket that
// pushes a snapshot after every change.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"mattr/internal/logging"
	"mattr/internal/session"
)

//go:embed static/index.html
var indexHTML []byte

// Server serves one conversation.
type Server struct {
	conv       *session.Conversation
	httpServer *http.Server
	logger     *zap.Logger
	audit      *logging.AuditLogger

	// ctx outlives individual clients: exchanges and websocket handlers
	// derive from it, and Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed and clients.Add so no client is admitted once
	// Shutdown has started waiting.
	mu        sync.Mutex
	closed    bool
	exchanges sync.WaitGroup
	clients   sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server for conv listening on addr.
func New(addr string, conv *session.Conversation, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		conv:   conv,
		logger: logging.Get(logging.CategoryServer),
		audit:  logging.AuditWithSession(conv.ID()),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/conversation", s.handleConversation)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("serving conversation",
		zap.String("addr", l.Addr().String()),
		zap.String("session", s.conv.ID()),
	)
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels the in-flight exchange and
// closes websocket clients, then waits for them or for ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		s.exchanges.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// admitClient registers a websocket client, or reports false once the
// server is shutting down.
func (s *Server) admitClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients.Add(1)
	return true
}

// Submit admits text and resolves the exchange in the background on the
// server context.
func (s *Server) Submit(text string) error {
	ex, err := s.conv.Submit(text)
	if err != nil {
		return err
	}
	s.exchanges.Add(1)
	go func() {
		defer s.exchanges.Done()
		ex.Resolve(s.ctx)
	}()
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleConversation(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.conv.Snapshot()); err != nil {
		s.logger.Warn("encode snapshot failed", zap.Error(err))
	}
}
