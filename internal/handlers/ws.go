package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kanband/kanband/internal/models"
)

// Hub fans task events out to the WebSocket connections watching each
// board.
type Hub struct {
	log         *slog.Logger
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:         log,
		connections: make(map[uuid.UUID]map[*websocket.Conn]bool),
	}
}

func (hub *Hub) register(boardID uuid.UUID, conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if hub.connections[boardID] == nil {
		hub.connections[boardID] = make(map[*websocket.Conn]bool)
	}
	hub.connections[boardID][conn] = true
}

func (hub *Hub) unregister(boardID uuid.UUID, conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.connections[boardID], conn)
	if len(hub.connections[boardID]) == 0 {
		delete(hub.connections, boardID)
	}
}

// BroadcastTaskEvent sends an event to every connection watching the
// board. Dead connections are dropped on write failure.
func (hub *Hub) BroadcastTaskEvent(boardID uuid.UUID, event string, task *models.Task) {
	if hub == nil {
		return
	}
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	conns, exists := hub.connections[boardID]
	if !exists {
		return
	}

	message, err := json.Marshal(map[string]any{
		"event": event,
		"task":  task,
	})
	if err != nil {
		hub.log.Error("marshal ws event", "error", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			hub.log.Warn("ws write failed, dropping connection", "board_id", boardID, "error", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

// HandleWebSocket upgrades the connection and subscribes it to a
// board's task events. Sits behind RequireAuth, so visibility is
// checked against the principal before the subscription is registered.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.RateLimiter.Allow(clientIP(r)) {
		h.respondError(w, http.StatusTooManyRequests, "too many connection attempts")
		return
	}

	board, _, ok := h.loadVisibleBoard(w, r, r.URL.Query().Get("board_id"))
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error("ws upgrade failed", "error", err)
		return
	}

	h.Hub.register(board.ID, conn)
	defer func() {
		h.Hub.unregister(board.ID, conn)
		conn.Close()
	}()

	// Drain client frames until the peer goes away; the server side of
	// the stream is write-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// checkOrigin allows upgrades from the configured origins; an empty
// list allows everything (dev mode).
func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.Cfg.AllowedOrigins == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range strings.Split(h.Cfg.AllowedOrigins, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}
