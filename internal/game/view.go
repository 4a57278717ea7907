package game

import "sort"

// View types are copies handed to transports and logs. Mutating a view
// never affects the game.

// PlayerView is a read-only summary of one seat.
type PlayerView struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Life            int            `json:"life"`
	Eliminated      bool           `json:"eliminated"`
	CommanderDamage map[string]int `json:"commanderDamage"`
}

// PermanentView is a read-only summary of one battlefield object.
type PermanentView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Controller   string   `json:"controller"`
	Power        int      `json:"power"`
	Toughness    int      `json:"toughness"`
	DamageMarked int      `json:"damageMarked"`
	Keywords     []string `json:"keywords,omitempty"`
	Tapped       bool     `json:"tapped"`
	PhasedOut    bool     `json:"phasedOut"`
	Commander    bool     `json:"commander"`
	Attacking    string   `json:"attacking,omitempty"`
	Blocking     string   `json:"blocking,omitempty"`
}

// GameView is the full spectator snapshot sent over the wire.
type GameView struct {
	GameID       string             `json:"gameId"`
	TurnNumber   int                `json:"turnNumber"`
	ActivePlayer string             `json:"activePlayer"`
	Phase        string             `json:"phase"`
	Step         string             `json:"step"`
	Priority     string             `json:"priority,omitempty"`
	Players      []PlayerView       `json:"players"`
	Battlefield  []PermanentView    `json:"battlefield"`
	Combat       []CombatAssignment `json:"combat,omitempty"`
	Over         bool               `json:"over"`
	Winner       string             `json:"winner,omitempty"`
}

// CommanderDamageFor returns a copy of the player's commander damage
// ledger.
func (g *Game) CommanderDamageFor(playerID string) map[string]int {
	pl, ok := g.players[playerID]
	if !ok {
		return nil
	}
	out := make(map[string]int, len(pl.CommanderDamage))
	for id, total := range pl.CommanderDamage {
		out[id] = total
	}
	return out
}

// PlayerViewFor returns a read-only view of one player.
func (g *Game) PlayerViewFor(playerID string) (PlayerView, bool) {
	pl, ok := g.players[playerID]
	if !ok {
		return PlayerView{}, false
	}
	return PlayerView{
		ID:              pl.ID,
		Name:            pl.Name,
		Life:            pl.Life,
		Eliminated:      pl.Eliminated,
		CommanderDamage: g.CommanderDamageFor(playerID),
	}, true
}

// View builds the full spectator snapshot.
func (g *Game) View() GameView {
	view := GameView{
		GameID:       g.ID,
		TurnNumber:   g.turns.TurnNumber(),
		ActivePlayer: g.turns.ActivePlayer(),
		Phase:        g.turns.CurrentPhase().String(),
		Step:         g.turns.CurrentStep().String(),
		Priority:     g.priority.AwaitingPlayer(),
		Combat:       g.CombatAssignments(),
		Over:         g.over,
		Winner:       g.winnerID,
	}
	for _, seat := range g.seats {
		if pv, ok := g.PlayerViewFor(seat); ok {
			view.Players = append(view.Players, pv)
		}
	}
	for _, p := range g.Battlefield() {
		pv := PermanentView{
			ID:           p.ID,
			Name:         p.Name,
			Controller:   p.Controller,
			Power:        p.Power,
			Toughness:    p.Toughness,
			DamageMarked: p.DamageMarked,
			Tapped:       p.Tapped,
			PhasedOut:    p.PhasedOut,
			Commander:    p.Commander,
			Attacking:    p.Attacking,
			Blocking:     p.Blocking,
		}
		for kw, has := range p.Keywords {
			if has {
				pv.Keywords = append(pv.Keywords, string(kw))
			}
		}
		sort.Strings(pv.Keywords)
		view.Battlefield = append(view.Battlefield, pv)
	}
	return view
}
