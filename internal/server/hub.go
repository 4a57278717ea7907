package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub tracks live WebSocket connections and their game membership.
type Hub struct {
	mu        sync.RWMutex
	conns     map[*Connection]bool
	gameConns map[string][]*Connection
	logger    *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:     make(map[*Connection]bool),
		gameConns: make(map[string][]*Connection),
		logger:    logger,
	}
}

// Register adds a new connection.
func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = true
}

// Unregister drops a connection and removes it from its game.
func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	h.leaveLocked(c)
}

// JoinGame subscribes a connection to a game's broadcasts.
func (h *Hub) JoinGame(c *Connection, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
	c.gameID = gameID
	h.gameConns[gameID] = append(h.gameConns[gameID], c)
}

// LeaveGame unsubscribes a connection from its game.
func (h *Hub) LeaveGame(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

func (h *Hub) leaveLocked(c *Connection) {
	if c.gameID == "" {
		return
	}
	conns := h.gameConns[c.gameID]
	for i, conn := range conns {
		if conn == c {
			h.gameConns[c.gameID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.gameConns[c.gameID]) == 0 {
		delete(h.gameConns, c.gameID)
	}
	c.gameID = ""
}

// Broadcast sends a message to every connection watching a game.
func (h *Hub) Broadcast(gameID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshaling broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.gameConns[gameID] {
		if err := c.writeMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("broadcast write failed",
				zap.String("game_id", gameID),
				zap.String("player", c.playerID),
				zap.Error(err),
			)
		}
	}
}

// GameConnections returns how many connections watch a game.
func (h *Hub) GameConnections(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.gameConns[gameID])
}
