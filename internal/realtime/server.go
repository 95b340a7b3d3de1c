package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/casewire/casewire/internal/authz"
	"github.com/casewire/casewire/internal/config"
	"github.com/casewire/casewire/internal/logger"
)

const defaultMaxConnections = 256

// Server exposes the collaboration transport over HTTP: a websocket
// upgrade endpoint plus health and stats probes.
type Server struct {
	cfg        *config.Config
	registry   *Registry
	auth       *Authenticator
	router     *httprouter.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	connMu   sync.Mutex
	clients  map[string]*Client
	maxConns int
}

// NewServer wires the session layer together
func NewServer(cfg *config.Config, authorizer authz.CaseAuthorizer) *Server {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = defaultMaxConnections
	}

	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(authorizer),
		auth:     NewAuthenticator([]byte(cfg.AuthSecret)),
		router:   httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*Client),
		maxConns: maxConns,
	}

	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/stats", s.handleStats)

	return s
}

// Registry returns the room registry owned by this server
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start begins serving in the background
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s.router,
		ReadTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("Collaboration server listening on %s", s.cfg.ListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down, closing every live connection
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("Stopping collaboration server...")

	s.connMu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.connMu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}

// handleWebSocket upgrades the connection and starts its pumps
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.connMu.Lock()
	atLimit := len(s.clients) >= s.maxConns
	s.connMu.Unlock()
	if atLimit {
		logger.Warn("Connection limit reached (%d), rejecting %s", s.maxConns, r.RemoteAddr)
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(uuid.NewString(), conn, s.registry, s.auth, s.removeClient)

	s.connMu.Lock()
	s.clients[client.ID] = client
	total := len(s.clients)
	s.connMu.Unlock()

	logger.Info("Connection %s accepted from %s (total: %d)", client.ID, r.RemoteAddr, total)

	go client.WritePump()
	go client.ReadPump()
}

// removeClient drops the bookkeeping entry once a connection's read pump
// has finished cleanup
func (s *Server) removeClient(c *Client) {
	s.connMu.Lock()
	delete(s.clients, c.ID)
	total := len(s.clients)
	s.connMu.Unlock()

	logger.Info("Connection %s closed (total: %d)", c.ID, total)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	rooms, members, typing := s.registry.Stats()

	s.connMu.Lock()
	connections := len(s.clients)
	s.connMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"connections": connections,
		"rooms":       rooms,
		"members":     members,
		"typing":      typing,
	})
}
