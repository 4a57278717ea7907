package server

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/cards"
	"github.com/opencommander/commander-server-go/internal/config"
	"github.com/opencommander/commander-server-go/internal/game"
	"github.com/opencommander/commander-server-go/internal/repository"
)

// ClientMessage is the envelope for every inbound request.
type ClientMessage struct {
	Type     string      `json:"type"`
	GameID   string      `json:"gameId,omitempty"`
	Player   string      `json:"player,omitempty"`
	Code     string      `json:"code,omitempty"`
	Seats    []string    `json:"seats,omitempty"`
	Seed     int64       `json:"seed,omitempty"`
	Creature string      `json:"creature,omitempty"`
	Action   game.Action `json:"action,omitempty"`
}

// ServerMessage is the envelope for every outbound response.
type ServerMessage struct {
	Type   string         `json:"type"`
	GameID string         `json:"gameId,omitempty"`
	Error  string         `json:"error,omitempty"`
	Reason string         `json:"reason,omitempty"`
	State  *game.GameView `json:"state,omitempty"`
}

func errorResponse(gameID, detail string) ServerMessage {
	return ServerMessage{Type: "error", GameID: gameID, Error: detail}
}

// Server wires the rules engine to the WebSocket transport.
type Server struct {
	engine    *game.CommanderEngine
	hub       *Hub
	tableAuth *TableAuth
	catalog   *cards.Catalog
	results   *repository.ResultRepository
	cfg       *config.Config
	logger    *zap.Logger
}

// NewServer builds the transport layer around an engine. catalog and
// results may be nil when those features are disabled.
func NewServer(engine *game.CommanderEngine, catalog *cards.Catalog, results *repository.ResultRepository, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    engine,
		hub:       NewHub(logger),
		tableAuth: NewTableAuth(cfg.Auth.TableCodeCost),
		catalog:   catalog,
		results:   results,
		cfg:       cfg,
		logger:    logger,
	}
}

// Hub exposes the connection hub.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) dispatch(c *Connection, msg ClientMessage) {
	switch msg.Type {
	case "create_game":
		s.handleCreateGame(c, msg)
	case "join_game":
		s.handleJoinGame(c, msg)
	case "spawn_creature":
		s.handleSpawnCreature(c, msg)
	case "game_action":
		s.handleGameAction(c, msg)
	case "advance_step":
		s.handleAdvanceStep(c, msg)
	case "resolve_stack":
		s.handleResolveStack(c, msg)
	case "get_state":
		s.handleGetState(c, msg)
	default:
		c.sendJSON(errorResponse(msg.GameID, "unknown message type "+msg.Type))
	}
}

// replyError maps engine errors to wire responses: rule violations carry
// their reason code, engine faults only a generic notice.
func (s *Server) replyError(c *Connection, gameID string, err error) {
	var resp ServerMessage
	var illegal *game.IllegalActionError
	if errors.As(err, &illegal) {
		resp = errorResponse(gameID, illegal.Detail)
		resp.Reason = string(illegal.Reason)
	} else {
		s.logger.Error("engine fault", zap.String("game_id", gameID), zap.Error(err))
		resp = errorResponse(gameID, "internal engine fault, action not applied")
	}
	c.sendJSON(resp)
}

func (s *Server) broadcastState(gameID string) {
	g, ok := s.engine.Game(gameID)
	if !ok {
		return
	}
	view := g.View()
	s.hub.Broadcast(gameID, ServerMessage{Type: "state", GameID: gameID, State: &view})
}

func (s *Server) handleCreateGame(c *Connection, msg ClientMessage) {
	if len(s.engine.GameIDs()) >= s.cfg.Server.MaxGames {
		c.sendJSON(errorResponse("", "server is at its game limit"))
		return
	}
	seed := msg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g, err := s.engine.StartGame(msg.GameID, msg.Seats, seed)
	if err != nil {
		s.replyError(c, msg.GameID, err)
		return
	}
	if msg.Code != "" {
		if err := s.tableAuth.SetCode(g.ID, msg.Code); err != nil {
			s.replyError(c, g.ID, err)
			return
		}
	}

	c.playerID = msg.Player
	s.hub.JoinGame(c, g.ID)
	s.logger.Info("game created over websocket",
		zap.String("game_id", g.ID),
		zap.Strings("seats", msg.Seats),
	)
	s.broadcastState(g.ID)
}

func (s *Server) handleJoinGame(c *Connection, msg ClientMessage) {
	if _, ok := s.engine.Game(msg.GameID); !ok {
		c.sendJSON(errorResponse(msg.GameID, "no such game"))
		return
	}
	if !s.tableAuth.Verify(msg.GameID, msg.Code) {
		c.sendJSON(errorResponse(msg.GameID, "wrong access code"))
		return
	}
	c.playerID = msg.Player
	s.hub.JoinGame(c, msg.GameID)
	s.broadcastState(msg.GameID)
}

// handleSpawnCreature places a catalog creature onto the battlefield
// during game setup.
func (s *Server) handleSpawnCreature(c *Connection, msg ClientMessage) {
	g, ok := s.engine.Game(msg.GameID)
	if !ok {
		c.sendJSON(errorResponse(msg.GameID, "no such game"))
		return
	}
	if s.catalog == nil {
		c.sendJSON(errorResponse(msg.GameID, "no creature catalog loaded"))
		return
	}
	p, err := s.catalog.Build(msg.Creature, msg.Player)
	if err != nil {
		c.sendJSON(errorResponse(msg.GameID, err.Error()))
		return
	}
	p.SummoningSick = true
	g.AddPermanent(p)
	s.broadcastState(msg.GameID)
}

func (s *Server) handleGameAction(c *Connection, msg ClientMessage) {
	if err := s.engine.ProcessAction(msg.GameID, msg.Action); err != nil {
		s.replyError(c, msg.GameID, err)
		return
	}
	s.broadcastState(msg.GameID)
	s.afterMutation(msg.GameID)
}

func (s *Server) handleAdvanceStep(c *Connection, msg ClientMessage) {
	if err := s.engine.AdvanceStep(msg.GameID); err != nil {
		s.replyError(c, msg.GameID, err)
		return
	}
	s.broadcastState(msg.GameID)
	s.afterMutation(msg.GameID)
}

func (s *Server) handleResolveStack(c *Connection, msg ClientMessage) {
	if err := s.engine.ResolveTopOfStack(msg.GameID); err != nil {
		s.replyError(c, msg.GameID, err)
		return
	}
	s.broadcastState(msg.GameID)
	s.afterMutation(msg.GameID)
}

func (s *Server) handleGetState(c *Connection, msg ClientMessage) {
	g, ok := s.engine.Game(msg.GameID)
	if !ok {
		c.sendJSON(errorResponse(msg.GameID, "no such game"))
		return
	}
	view := g.View()
	c.sendJSON(ServerMessage{Type: "state", GameID: msg.GameID, State: &view})
}

// afterMutation persists the replay and tears the table down once the
// game ends.
func (s *Server) afterMutation(gameID string) {
	g, ok := s.engine.Game(gameID)
	if !ok {
		return
	}
	over, winner := g.IsOver()
	if !over {
		return
	}

	if s.cfg.Replay.Enabled {
		path := filepath.Join(s.cfg.Replay.Dir, gameID+".replay")
		if err := game.SaveReplay(path, g.BuildReplay()); err != nil {
			s.logger.Error("saving replay", zap.String("game_id", gameID), zap.Error(err))
		} else {
			s.logger.Info("replay saved", zap.String("game_id", gameID), zap.String("path", path))
		}
	}

	if s.results != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		result := repository.GameResult{
			GameID:     gameID,
			Winner:     winner,
			Seats:      g.Seats(),
			Turns:      g.Turns().TurnNumber(),
			Seed:       g.Seed(),
			FinishedAt: time.Now(),
		}
		if err := s.results.SaveResult(ctx, result); err != nil {
			s.logger.Error("persisting result", zap.String("game_id", gameID), zap.Error(err))
		} else if err := s.results.AppendActions(ctx, gameID, g.ActionLog()); err != nil {
			s.logger.Error("persisting action log", zap.String("game_id", gameID), zap.Error(err))
		}
	}

	s.hub.Broadcast(gameID, ServerMessage{Type: "game_over", GameID: gameID, Reason: winner})
	s.tableAuth.Remove(gameID)
	s.engine.EndGame(gameID)
}
