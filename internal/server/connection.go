package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Connection is one client WebSocket session.
type Connection struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	srv      *Server
	playerID string
	gameID   string
}

// ServeWS upgrades an HTTP request and starts the read loop.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &Connection{ws: ws, srv: s}
	s.hub.Register(c)
	go c.readLoop()
}

func (c *Connection) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) sendJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.srv.logger.Error("marshaling response", zap.Error(err))
		return
	}
	if err := c.writeMessage(websocket.TextMessage, data); err != nil {
		c.srv.logger.Warn("write failed", zap.String("player", c.playerID), zap.Error(err))
	}
}

func (c *Connection) readLoop() {
	defer func() {
		c.srv.hub.Unregister(c)
		c.ws.Close()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendJSON(errorResponse("", "malformed message"))
			continue
		}
		c.srv.dispatch(c, msg)
	}
}
