package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"snappad/coordinator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Local dashboard only
	},
}

// Server exposes the dashboard JSON API and pushes coordinator
// notifications to connected clients over WebSocket.
type Server struct {
	coord *coordinator.Coordinator
	port  int
	hub   *Hub
	srv   *http.Server

	unsubscribe func()
}

// NewServer creates a dashboard server backed by the coordinator.
func NewServer(coord *coordinator.Coordinator, port int) *Server {
	hub := NewHub()
	go hub.Run()

	return &Server{
		coord: coord,
		port:  port,
		hub:   hub,
	}
}

// Start begins serving and forwarding notifications. Blocks until the
// listener fails or Stop is called.
func (s *Server) Start() error {
	notifications, unsubscribe := s.coord.Subscribe()
	s.unsubscribe = unsubscribe
	go s.forwardNotifications(notifications)

	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/notes", s.handleNotes)
	mux.HandleFunc("/api/notes/", s.handleNoteByID)
	mux.HandleFunc("/api/clipboard", s.handleClipboard)
	mux.HandleFunc("/api/clipboard/restore", s.handleClipboardRestore)
	mux.HandleFunc("/api/enhance", s.handleEnhance)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	addr := fmt.Sprintf("localhost:%d", s.port)
	slog.Info("Starting dashboard server", "url", fmt.Sprintf("http://%s", addr))

	s.srv = &http.Server{Addr: addr, Handler: mux}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down and detaches from the coordinator.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// forwardNotifications relays coordinator notifications to the hub until
// the subscription channel closes.
func (s *Server) forwardNotifications(notifications <-chan coordinator.Notification) {
	for n := range notifications {
		s.hub.BroadcastMessage(Message{
			Type: string(n.Kind),
			Data: n,
		})
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
