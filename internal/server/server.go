package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"moving-head/internal/color"
	"moving-head/internal/dispatch"
	"moving-head/internal/servo"
)

// Config for the server
type Config struct {
	ListenAddr string
	// OperatorSecret enables HS256 bearer auth on operator actions
	OperatorSecret string
}

// Server is the HTTP side of the moving head: the websocket command
// transport and the operator endpoints
type Server struct {
	cfg       Config
	d         *dispatch.Dispatcher
	mixer     *color.Mixer
	port      *servo.Port
	clients   map[*Client]bool
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server instance
func New(cfg Config, d *dispatch.Dispatcher, mixer *color.Mixer, port *servo.Port) *Server {
	ctx, cancel := context.WithCancel(dispatch.WithTransport(context.Background(), "websocket"))
	return &Server{
		cfg:     cfg,
		d:       d,
		mixer:   mixer,
		port:    port,
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local use
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	auth := operatorAuth{secret: []byte(s.cfg.OperatorSecret)}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("POST /resetIndexCounter", auth.require(s.handleResetIndexCounter))
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/dispatches", s.handleDispatches)
	return mux
}

// Serve listens on the configured address until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		s.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown")
		}
	})
	defer stop()

	log.Info().Stringer("addr", ln.Addr()).Msg("Server starting")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every websocket client and cancels in-flight websocket dispatches
func (s *Server) Stop() {
	s.cancel()

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()
}

// ClientCount returns the number of connected websocket clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		send:   make(chan []byte, 256),
	}

	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()

	log.Info().Str("client", client.id).Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	client.sendWelcome()
}
