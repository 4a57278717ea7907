package game

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game/effects"
	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// Game holds the full state of one Commander game: players in seating
// order, battlefield permanents, turn structure, the stack, triggers,
// damage replacement effects, and combat bookkeeping.
type Game struct {
	ID         string
	seats      []string // seating order, never reordered
	players    map[string]*Player
	permanents map[string]*Permanent

	turns       *rules.TurnManager
	priority    *rules.PriorityTracker
	stack       *rules.StackManager
	triggers    *rules.TriggerManager
	bus         *rules.EventBus
	pipeline    *effects.Pipeline
	constraints *effects.ConstraintSet
	attachments *AttachmentTable
	triggerQ    *TriggerQueue

	combat *combatState

	// attachments phased out together with their host, keyed by
	// attachment ID; they phase back in only when the host does
	phasedWithHost map[string]string

	rng    *rand.Rand
	seed   int64
	logger *zap.Logger

	over     bool
	winnerID string

	actionLog []ActionRecord
	bookmarks map[int]*gameSnapshot
	nextMark  int
}

// NewGame creates a game with the given seats in turn order. The RNG is
// injected so games replay deterministically; pass rand.New with a fixed
// seed for tests and replays.
func NewGame(id string, seats []string, rng *rand.Rand, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if id == "" {
		id = uuid.NewString()
	}

	g := &Game{
		ID:             id,
		seats:          append([]string(nil), seats...),
		players:        make(map[string]*Player, len(seats)),
		permanents:     make(map[string]*Permanent),
		stack:          rules.NewStackManager(),
		triggers:       rules.NewTriggerManager(),
		bus:            rules.NewEventBus(),
		pipeline:       effects.NewPipeline(logger),
		constraints:    effects.NewConstraintSet(),
		attachments:    NewAttachmentTable(),
		phasedWithHost: make(map[string]string),
		rng:            rng,
		logger:         logger,
		bookmarks:      make(map[int]*gameSnapshot),
	}
	g.triggerQ = NewTriggerQueue(g)

	// Fired triggers wait in the queue until the engine opens the next
	// priority window and flushes them to the stack.
	g.bus.Subscribe(func(evt rules.Event) {
		g.triggerQ.Enqueue(g.triggers.Handle(evt)...)
	})

	for _, seat := range seats {
		g.players[seat] = NewPlayer(seat, seat)
	}
	if len(seats) > 0 {
		g.turns = rules.NewTurnManager(seats[0])
		g.priority = rules.NewPriorityTracker(g.PlayersInAPNAPOrder())
	}
	return g
}

// NewSeededGame creates a game with a recorded RNG seed so its replay
// log can reconstruct it.
func NewSeededGame(id string, seats []string, seed int64, logger *zap.Logger) *Game {
	g := NewGame(id, seats, rand.New(rand.NewSource(seed)), logger)
	g.seed = seed
	return g
}

// Seats returns the seating order the game was created with.
func (g *Game) Seats() []string {
	return append([]string(nil), g.seats...)
}

// Seed returns the RNG seed recorded at creation, zero for unseeded games.
func (g *Game) Seed() int64 { return g.seed }

// EventBus exposes the game's event bus for subscribers.
func (g *Game) EventBus() *rules.EventBus { return g.bus }

// Turns exposes the turn manager.
func (g *Game) Turns() *rules.TurnManager { return g.turns }

// Priority exposes the priority tracker.
func (g *Game) Priority() *rules.PriorityTracker { return g.priority }

// Stack exposes the stack manager.
func (g *Game) Stack() *rules.StackManager { return g.stack }

// Triggers exposes the trigger manager.
func (g *Game) Triggers() *rules.TriggerManager { return g.triggers }

// Pipeline exposes the damage replacement pipeline.
func (g *Game) Pipeline() *effects.Pipeline { return g.pipeline }

// Constraints exposes the combat constraint set.
func (g *Game) Constraints() *effects.ConstraintSet { return g.constraints }

// Attachments exposes the attachment table.
func (g *Game) Attachments() *AttachmentTable { return g.attachments }

// TriggerDeck exposes the pending trigger queue.
func (g *Game) TriggerDeck() *TriggerQueue { return g.triggerQ }

// Player returns the player with the given ID.
func (g *Game) Player(id string) (*Player, bool) {
	pl, ok := g.players[id]
	return pl, ok
}

// Permanent returns the permanent with the given ID.
func (g *Game) Permanent(id string) (*Permanent, bool) {
	p, ok := g.permanents[id]
	return p, ok
}

// AddPermanent places a permanent onto the battlefield.
func (g *Game) AddPermanent(p *Permanent) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Keywords == nil {
		p.Keywords = make(map[Keyword]bool)
	}
	p.Zone = ZoneBattlefield
	if p.EnteredAt.IsZero() {
		p.EnteredAt = time.Now()
	}
	g.permanents[p.ID] = p
}

// Battlefield returns all permanents on the battlefield, phased-out
// included, sorted by ID for deterministic iteration.
func (g *Game) Battlefield() []*Permanent {
	out := make([]*Permanent, 0, len(g.permanents))
	for _, p := range g.permanents {
		if p.Zone == ZoneBattlefield {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ControlledBy returns the battlefield permanents controlled by a player.
func (g *Game) ControlledBy(player string) []*Permanent {
	var out []*Permanent
	for _, p := range g.Battlefield() {
		if p.Controller == player {
			out = append(out, p)
		}
	}
	return out
}

// ActivePlayers returns the seats still in the game, in seating order.
func (g *Game) ActivePlayers() []string {
	var out []string
	for _, seat := range g.seats {
		if pl, ok := g.players[seat]; ok && !pl.Eliminated {
			out = append(out, seat)
		}
	}
	return out
}

// PlayersInAPNAPOrder returns the remaining players starting with the
// active player, following seating order.
func (g *Game) PlayersInAPNAPOrder() []string {
	remaining := g.ActivePlayers()
	if g.turns == nil || len(remaining) == 0 {
		return remaining
	}
	active := g.turns.ActivePlayer()
	for i, seat := range remaining {
		if seat == active {
			return append(append([]string(nil), remaining[i:]...), remaining[:i]...)
		}
	}
	return remaining
}

// OpponentsOf returns the remaining players other than the given one, in
// APNAP order.
func (g *Game) OpponentsOf(player string) []string {
	var out []string
	for _, seat := range g.PlayersInAPNAPOrder() {
		if seat != player {
			out = append(out, seat)
		}
	}
	return out
}

// NextActivePlayer returns the seat after the current active player,
// skipping eliminated players.
func (g *Game) NextActivePlayer() string {
	remaining := g.ActivePlayers()
	if len(remaining) == 0 {
		return ""
	}
	active := g.turns.ActivePlayer()
	for i, seat := range remaining {
		if seat == active {
			return remaining[(i+1)%len(remaining)]
		}
	}
	return remaining[0]
}

// IsOver reports whether the game has ended, and the winner if one exists.
func (g *Game) IsOver() (bool, string) {
	return g.over, g.winnerID
}

// FlipCoin resolves a coin flip with the injected RNG and publishes the
// result.
func (g *Game) FlipCoin(player string) bool {
	heads := g.rng.Intn(2) == 0
	evt := rules.NewEvent(rules.EventCoinFlipped, player, "", player)
	evt.Flag = heads
	g.bus.Publish(evt)
	return heads
}
