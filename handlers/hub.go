package handlers

import (
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"plexbeat/metrics"
)

const writeDeadline = 10 * time.Second

// Hub fans player state out to websocket clients. Connections that cannot
// keep up or have gone away are dropped on the next broadcast; clients are
// expected to reconnect and re-sync from /now-playing.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *log.Entry

	mutex   sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			// The daemon lives on a LAN box and carries no cookies, so any
			// origin may subscribe to state updates.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
		logger: log.WithFields(log.Fields{
			"module": "handlers",
		}),
	}
}

// Serve upgrades one HTTP request and registers the connection. It blocks
// in a read loop (discarding anything the client sends) until the peer
// disconnects, which is how gorilla notices closed connections.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = true
	count := len(h.clients)
	h.mutex.Unlock()

	metrics.WebsocketClients.Set(float64(count))
	h.logger.Debugf("websocket client connected (%d total)", count)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(conn)
}

// Broadcast sends one JSON payload to every connected client. Write
// failures drop the client rather than failing the broadcast.
func (h *Hub) Broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Errorf("encoding broadcast payload: %v", err)
		return
	}

	h.mutex.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mutex.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debugf("dropping websocket client: %v", err)
			h.drop(conn)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mutex.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mutex.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	metrics.WebsocketClients.Set(0)
}

func (h *Hub) drop(conn *websocket.Conn) {
	conn.Close()

	h.mutex.Lock()
	if !h.clients[conn] {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.mutex.Unlock()

	metrics.WebsocketClients.Set(float64(count))
	h.logger.Debugf("websocket client disconnected (%d total)", count)
}
