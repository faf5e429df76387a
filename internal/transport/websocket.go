// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketPath is the endpoint clients connect to.
const WebSocketPath = "/ws"

const wsWriteTimeout = 250 * time.Millisecond

// WebSocketHub broadcasts band frames as JSON text messages to every
// connected client. A client whose write fails or times out is dropped.
//
// Rate Limiting:
//   - Frames arriving sooner than the minimum interval after the last
//     broadcast are skipped
//   - A zero interval sends every frame
type WebSocketHub struct {
	addr        string
	upgrader    websocket.Upgrader
	minInterval time.Duration
	lastSend    time.Time // Only touched by Send.

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	server   *http.Server
	listener net.Listener
}

// NewWebSocketHub creates a hub that will listen on addr once started and
// broadcast at most once per minInterval.
func NewWebSocketHub(addr string, minInterval time.Duration) *WebSocketHub {
	return &WebSocketHub{
		addr:        addr,
		minInterval: minInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualizers are served from anywhere.
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the hub's HTTP handler, serving WebSocketPath.
func (h *WebSocketHub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, h.handleWebSocket)
	return mux
}

// Start binds the listen address and serves in the background.
func (h *WebSocketHub) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("websocket listen on %s: %w", h.addr, err)
	}
	h.listener = ln
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("WebSocket server listening on ws://%s%s", ln.Addr(), WebSocketPath)
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("WebSocket server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (h *WebSocketHub) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.addr
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *WebSocketHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()
	logger.Infof("Client %s connected, total: %d", conn.RemoteAddr(), n)

	// Clients only listen; reading detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		conn.Close()
		logger.Infof("Client %s disconnected, total: %d", conn.RemoteAddr(), n)
	}
}

// Send encodes frame once and writes it to every client.
func (h *WebSocketHub) Send(frame *BandFrame) error {
	if h.Clients() == 0 {
		return nil
	}
	now := time.Now()
	if now.Sub(h.lastSend) < h.minInterval {
		return nil
	}
	h.lastSend = now

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.Seq, err)
	}
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		return fmt.Errorf("prepare frame %d: %w", frame.Seq, err)
	}

	h.clientsMu.Lock()
	var failed []*websocket.Conn
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WritePreparedMessage(msg); err != nil {
			logger.Warnf("Error sending to client %s: %v", conn.RemoteAddr(), err)
			failed = append(failed, conn)
		}
	}
	h.clientsMu.Unlock()

	for _, conn := range failed {
		h.remove(conn)
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (h *WebSocketHub) Close() error {
	h.clientsMu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	clear(h.clients)
	h.clientsMu.Unlock()

	if h.server != nil {
		logger.Infof("Closing WebSocket server")
		return h.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketHub)(nil)
