// ABOUTME: HTTP server carrying the WebSocket bridge, metrics and health
// ABOUTME: Each connection gets a session id and is served sequentially
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/metrics"
	"github.com/Resonate-Protocol/resonate-spatial/internal/version"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/protocol"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health reports service state for /healthz
type Health interface {
	ActiveSources() int
	ActiveVoices() int
}

// ServerConfig configures a Server
type ServerConfig struct {
	// Addr to listen on; bind to loopback since callers are not authenticated
	Addr string

	Dispatcher *Dispatcher
	Health     Health
	Metrics    *metrics.Metrics
	Logger     *log.Logger
}

// Server serves the bridge over HTTP
type Server struct {
	config     ServerConfig
	logger     *log.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	connsMu    sync.Mutex
	conns      map[string]*websocket.Conn
	isShutdown bool

	wg sync.WaitGroup
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(config ServerConfig) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8930"
	}

	s := &Server{
		config: config,
		logger: config.Logger.WithPrefix("bridge"),
		upgrader: websocket.Upgrader{
			// Browsers on other origins must not drive the host's audio
			CheckOrigin: func(r *http.Request) bool {
				return r.Header.Get("Origin") == ""
			},
		},
		conns: make(map[string]*websocket.Conn),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(protocol.Path, s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	if config.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(config.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "err", err)
		}
	}()

	s.logger.Info("Bridge listening", "addr", ln.Addr().String(), "path", protocol.Path)
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting, closes every bridge connection and waits for
// handlers to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.connsMu.Lock()
	s.isShutdown = true
	for _, conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": version.Version,
	}
	if s.config.Health != nil {
		body["sources"] = s.config.Health.ActiveSources()
		body["voices"] = s.config.Health.ActiveVoices()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Health write failed", "err", err)
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", "err", err)
		return
	}

	session := uuid.New().String()

	s.connsMu.Lock()
	if s.isShutdown {
		s.connsMu.Unlock()
		conn.Close()
		return
	}
	s.conns[session] = conn
	s.wg.Add(1)
	s.connsMu.Unlock()

	defer s.wg.Done()
	s.handleConnection(r.Context(), session, conn)
}

// handleConnection serves one host until it disconnects
func (s *Server) handleConnection(ctx context.Context, session string, conn *websocket.Conn) {
	logger := s.logger.With("session", session[:8])
	s.config.Metrics.SessionOpened()
	logger.Info("Host connected", "remote", conn.RemoteAddr().String())

	defer func() {
		s.connsMu.Lock()
		delete(s.conns, session)
		s.connsMu.Unlock()
		conn.Close()
		s.config.Metrics.SessionClosed()
		logger.Info("Host disconnected")
	}()

	hello := protocol.Hello{
		Type:      protocol.TypeHello,
		Session:   session,
		Product:   version.Product,
		Version:   version.Version,
		Functions: s.config.Dispatcher.Functions(),
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Warn("Error sending hello", "err", err)
		return
	}

	// Calls are answered in order, one at a time per connection
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket error", "err", err)
			}
			return
		}

		resp := handleRequest(ctx, s.config.Dispatcher, data)
		if err := conn.WriteJSON(resp); err != nil {
			logger.Warn("Error writing response", "err", err)
			return
		}
	}
}

// handleRequest decodes one request and runs it
func handleRequest(ctx context.Context, d *Dispatcher, data []byte) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return protocol.Response{Type: protocol.TypeResponse, Error: fmt.Sprintf("invalid request: %v", err)}
	}

	result, err := d.Call(ctx, req.Fn, req.Args)
	resp := protocol.Response{Type: protocol.TypeResponse, Seq: req.Seq, Result: result}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
