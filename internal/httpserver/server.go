package httpserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

// ShutdownTimeout caps how long Shutdown waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

type route struct {
	path    string
	method  string
	handler http.HandlerFunc
}

// Server is one HTTP server instance. A new instance is created for every
// connectivity mode; routes may be added before or after Start.
type Server struct {
	name string
	addr string

	routeMu  sync.RWMutex
	routes   []route
	notFound http.HandlerFunc
	router   *mux.Router

	mu          sync.Mutex
	httpServer  *http.Server
	listener    net.Listener
	cancelBase  context.CancelFunc
	serveDone   chan struct{}
	activeConns map[net.Conn]struct{}
}

// New creates a stopped server for addr. name labels log lines ("captive_ap",
// "station").
func New(name, addr string) *Server {
	return &Server{
		name:        name,
		addr:        addr,
		router:      mux.NewRouter(),
		activeConns: make(map[net.Conn]struct{}),
	}
}

// Name returns the label given to New.
func (s *Server) Name() string {
	return s.name
}

// Handle registers h for path and method. An empty method matches any.
func (s *Server) Handle(path, method string, h http.HandlerFunc) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()

	s.routes = append(s.routes, route{path: path, method: method, handler: h})
	s.router = s.buildLocked()
	logging.Debug("Route registered",
		zap.String("server", s.name),
		zap.String("method", method),
		zap.String("path", path),
	)
}

// SetNotFound sets the handler for unmatched paths.
func (s *Server) SetNotFound(h http.HandlerFunc) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	s.notFound = h
	s.router = s.buildLocked()
}

// buildLocked returns a fresh router holding every route. Routers are never
// mutated after they are published, so requests in flight keep a consistent
// view.
func (s *Server) buildLocked() *mux.Router {
	r := mux.NewRouter()
	for _, rt := range s.routes {
		m := r.HandleFunc(rt.path, rt.handler)
		if rt.method != "" {
			m.Methods(rt.method)
		}
	}
	if s.notFound != nil {
		r.NotFoundHandler = s.notFound
	}
	return r
}

// Routes returns the number of registered routes.
func (s *Server) Routes() int {
	s.routeMu.RLock()
	defer s.routeMu.RUnlock()
	return len(s.routes)
}

// ServeHTTP dispatches to the current router snapshot.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.routeMu.RLock()
	router := s.router
	s.routeMu.RUnlock()

	router.ServeHTTP(rec, r)
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("%s server already running", s.name)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ConnState:         s.trackConn,
	}

	s.httpServer = srv
	s.listener = listener
	s.cancelBase = cancel
	s.serveDone = make(chan struct{})

	done := s.serveDone
	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server stopped unexpectedly",
				zap.String("server", s.name),
				zap.Error(err),
			)
		}
	}()

	logging.Info("HTTP server listening",
		zap.String("server", s.name),
		zap.String("addr", listener.Addr().String()),
	)
	return nil
}

func (s *Server) trackConn(conn net.Conn, state http.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch state {
	case http.StateNew:
		s.activeConns[conn] = struct{}{}
	case http.StateClosed, http.StateHijacked:
		delete(s.activeConns, conn)
	}
}

// Addr returns the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpServer != nil
}

// ActiveConnections returns the number of tracked, non-hijacked connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Shutdown stops the server. Request contexts are cancelled first so
// long-lived handlers (websockets) return, then in-flight requests are given
// up to ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	cancel := s.cancelBase
	done := s.serveDone
	s.httpServer = nil
	s.listener = nil
	s.cancelBase = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	logging.Info("Shutting down HTTP server", zap.String("server", s.name))
	cancel()

	ctx, stop := context.WithTimeout(ctx, ShutdownTimeout)
	defer stop()

	err := srv.Shutdown(ctx)
	if err != nil {
		logging.Warn("Shutdown timeout, forcing close",
			zap.String("server", s.name),
			zap.Error(err),
		)
		_ = srv.Close()
	}
	<-done

	logging.Info("HTTP server stopped", zap.String("server", s.name))
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Flush forwards to the underlying writer when supported.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
