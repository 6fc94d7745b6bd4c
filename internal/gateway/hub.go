package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"chowline/internal/channels"
	"chowline/internal/logger"
)

// hub tracks the live subscribers of one push channel. Frames are written
// to every client; a client whose write fails is dropped on the spot.
type hub struct {
	channel channels.Channel
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	lg      *logger.Logger
}

func newHub(ch channels.Channel, lg *logger.Logger) *hub {
	return &hub{channel: ch, clients: make(map[*websocket.Conn]bool), lg: lg}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.lg.Debug("client_subscribed", map[string]any{"channel": string(h.channel), "clients": n})
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// broadcast preserves per-connection delivery order: writes happen under
// the hub lock, in the order frames arrive from the bus.
func (h *hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			_ = conn.Close()
			delete(h.clients, conn)
			h.lg.Debug("client_dropped", map[string]any{"channel": string(h.channel)})
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
