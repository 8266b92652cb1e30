package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		allowed := []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
			"http://[::1]:8080",
		}
		for _, a := range allowed {
			if origin == a {
				return true
			}
		}
		log.Printf("websocket: rejected origin %s", origin)
		return false
	},
}

// WSMessage is the envelope for every streamed event.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub streams scan events to connected websocket clients. Safe for
// concurrent use.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the peer goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer conn.Close()
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastScanResult streams one discovered BSS.
func (h *Hub) BroadcastScanResult(res domain.ScanResult) {
	h.broadcast(WSMessage{Type: "scan.result", Payload: res})
}

// BroadcastScanEnd streams the end of a scan transaction.
func (h *Hub) BroadcastScanEnd(end domain.ScanEnd) {
	h.broadcast(WSMessage{Type: "scan.end", Payload: end})
}

// BroadcastEvent streams an arbitrary typed payload, used for query replies.
func (h *Hub) BroadcastEvent(typ string, payload any) {
	h.broadcast(WSMessage{Type: typ, Payload: payload})
}

func (h *Hub) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("websocket: marshal %s: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
