package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestHubMembership(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	c1 := &Connection{playerID: "alice"}
	c2 := &Connection{playerID: "bob"}

	h.Register(c1)
	h.Register(c2)
	h.JoinGame(c1, "g1")
	h.JoinGame(c2, "g1")
	assert.Equal(t, 2, h.GameConnections("g1"))

	h.LeaveGame(c1)
	assert.Equal(t, 1, h.GameConnections("g1"))
	assert.Empty(t, c1.gameID)

	h.Unregister(c2)
	assert.Equal(t, 0, h.GameConnections("g1"))
}

func TestJoinGameSwitchesSubscription(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	c := &Connection{playerID: "alice"}

	h.Register(c)
	h.JoinGame(c, "g1")
	h.JoinGame(c, "g2")

	assert.Equal(t, 0, h.GameConnections("g1"))
	assert.Equal(t, 1, h.GameConnections("g2"))
	assert.Equal(t, "g2", c.gameID)
}

func TestUnregisterUnknownConnectionIsNoop(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	h.Unregister(&Connection{})
	assert.Equal(t, 0, h.GameConnections("g1"))
}
