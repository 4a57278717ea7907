package effects

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game/rules"
)

// Pipeline holds the active damage replacement effects for one game and
// applies them to pending damage events in a deterministic order:
// prevention shields first, then doubling, then redirection. Within one
// kind, ties break by APNAP order of the controlling player, then by
// effect timestamp. Each effect gets one opportunity per event.
type Pipeline struct {
	mu        sync.Mutex
	modifiers map[string]DamageModifier
	logger    *zap.Logger
}

// NewPipeline creates an empty replacement pipeline.
func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		modifiers: make(map[string]DamageModifier),
		logger:    logger,
	}
}

// Add registers a damage modifier and returns its ID.
func (p *Pipeline) Add(m DamageModifier) string {
	if m == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modifiers[m.ID()] = m
	p.logger.Debug("added damage modifier",
		zap.String("effect_id", m.ID()),
		zap.String("kind", m.Kind().String()),
		zap.String("source_id", m.SourceID()),
	)
	return m.ID()
}

// Remove drops a modifier by ID.
func (p *Pipeline) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.modifiers, id)
}

// RemoveBySource drops all modifiers created by the given source entity.
func (p *Pipeline) RemoveBySource(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, m := range p.modifiers {
		if m.SourceID() == sourceID {
			delete(p.modifiers, id)
		}
	}
}

// RemoveByController drops all modifiers controlled by the given player.
func (p *Pipeline) RemoveByController(controller string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, m := range p.modifiers {
		if m.Controller() == controller {
			delete(p.modifiers, id)
		}
	}
}

// Expire removes modifiers whose duration ends at the given point
// (DurationEndOfCombat or DurationEndOfTurn).
func (p *Pipeline) Expire(point Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, m := range p.modifiers {
		if expiresAt(m.Duration(), point) {
			delete(p.modifiers, id)
			removed++
		}
	}
	if removed > 0 {
		p.logger.Debug("expired damage modifiers",
			zap.String("point", string(point)),
			zap.Int("removed", removed),
		)
	}
	return removed
}

// Copy returns an independent pipeline with copies of every modifier,
// used for state snapshots.
func (p *Pipeline) Copy() *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	cpy := NewPipeline(p.logger)
	for id, m := range p.modifiers {
		cpy.modifiers[id] = m.Copy()
	}
	return cpy
}

// Len returns the number of active modifiers.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.modifiers)
}

// Apply runs the pending damage event through every applicable modifier.
// apnap is the current player order, active player first; it decides ties
// between same-kind modifiers with different controllers. The returned
// event may have a different amount, target, and type than the input.
func (p *Pipeline) Apply(event rules.Event, apnap []string) rules.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.modifiers) == 0 {
		return event
	}

	applied := make(map[string]bool, len(event.AppliedEffects))
	for _, id := range event.AppliedEffects {
		applied[id] = true
	}

	apnapIndex := make(map[string]int, len(apnap))
	for i, player := range apnap {
		apnapIndex[player] = i
	}

	for _, kind := range []ModifierKind{KindPrevention, KindDoubling, KindRedirection} {
		// A redirection can make new same-or-later-kind effects
		// applicable, so candidates are re-evaluated per kind.
		candidates := p.candidatesLocked(event, kind, applied)
		sort.SliceStable(candidates, func(i, j int) bool {
			oi, iok := apnapIndex[candidates[i].Controller()]
			oj, jok := apnapIndex[candidates[j].Controller()]
			if iok && jok && oi != oj {
				return oi < oj
			}
			return candidates[i].Timestamp().Before(candidates[j].Timestamp())
		})

		for _, m := range candidates {
			if applied[m.ID()] || !m.Applies(event) {
				continue
			}
			var consumed bool
			event, consumed = m.Apply(event)
			applied[m.ID()] = true
			event.AppliedEffects = append(event.AppliedEffects, m.ID())
			p.logger.Debug("applied damage modifier",
				zap.String("effect_id", m.ID()),
				zap.String("kind", m.Kind().String()),
				zap.Int("amount_after", event.Amount),
			)
			if consumed {
				delete(p.modifiers, m.ID())
			}
			if event.Amount <= 0 {
				event.Amount = 0
				return event
			}
		}
	}

	return event
}

func (p *Pipeline) candidatesLocked(event rules.Event, kind ModifierKind, applied map[string]bool) []DamageModifier {
	var out []DamageModifier
	for _, m := range p.modifiers {
		if m.Kind() != kind || applied[m.ID()] {
			continue
		}
		if m.Applies(event) {
			out = append(out, m)
		}
	}
	return out
}
