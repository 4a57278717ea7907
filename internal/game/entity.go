package game

import (
	"strings"
	"sync"
	"time"
)

// Zone identifies where a card object currently lives.
type Zone string

const (
	ZoneBattlefield Zone = "BATTLEFIELD"
	ZoneGraveyard   Zone = "GRAVEYARD"
	ZoneExile       Zone = "EXILE"
	ZoneCommand     Zone = "COMMAND"
	ZoneHand        Zone = "HAND"
	ZoneLibrary     Zone = "LIBRARY"
)

// Keyword is a static combat-relevant ability.
type Keyword string

const (
	KeywordFlying         Keyword = "FLYING"
	KeywordReach          Keyword = "REACH"
	KeywordFirstStrike    Keyword = "FIRST_STRIKE"
	KeywordDoubleStrike   Keyword = "DOUBLE_STRIKE"
	KeywordDeathtouch     Keyword = "DEATHTOUCH"
	KeywordTrample        Keyword = "TRAMPLE"
	KeywordVigilance      Keyword = "VIGILANCE"
	KeywordIndestructible Keyword = "INDESTRUCTIBLE"
	KeywordHaste          Keyword = "HASTE"
	KeywordMenace         Keyword = "MENACE"
	KeywordLifelink       Keyword = "LIFELINK"
	KeywordDefender       Keyword = "DEFENDER"
	KeywordGambler        Keyword = "GAMBLER"
)

// Permanent is a battlefield object. Power and Toughness are the current
// (post-modifier) values; DamageMarked accumulates within a turn and is
// wiped during cleanup.
type Permanent struct {
	ID               string
	Name             string
	Controller       string
	Owner            string
	Zone             Zone
	Power            int
	Toughness        int
	DamageMarked     int
	DeathtouchMarked bool
	Keywords         map[Keyword]bool
	Tapped           bool
	PhasedOut        bool
	SummoningSick    bool
	Commander        bool
	Attacking        string // defender ID while attacking, "" otherwise
	Blocking         string // attacker ID while blocking, "" otherwise
	EnteredAt        time.Time
}

// HasKeyword reports whether the permanent carries the given keyword.
func (p *Permanent) HasKeyword(kw Keyword) bool {
	return p != nil && p.Keywords[kw]
}

// IsCreatureOnBattlefield reports whether the permanent is a live combat
// participant candidate. Phased-out permanents are treated as though
// they do not exist.
func (p *Permanent) IsCreatureOnBattlefield() bool {
	return p != nil && p.Zone == ZoneBattlefield && !p.PhasedOut
}

// LethalDamage reports whether marked damage meets or exceeds toughness,
// counting deathtouch marks as lethal regardless of amount.
func (p *Permanent) LethalDamage() bool {
	if p.DeathtouchMarked && p.DamageMarked > 0 {
		return true
	}
	return p.Toughness > 0 && p.DamageMarked >= p.Toughness
}

// ResetCombatState clears attack and block assignments.
func (p *Permanent) ResetCombatState() {
	p.Attacking = ""
	p.Blocking = ""
}

// Copy returns a deep copy of the permanent.
func (p *Permanent) Copy() *Permanent {
	if p == nil {
		return nil
	}
	cpy := *p
	cpy.Keywords = make(map[Keyword]bool, len(p.Keywords))
	for kw, v := range p.Keywords {
		cpy.Keywords[kw] = v
	}
	return &cpy
}

// EliminationCause records why a player left the game.
type EliminationCause string

const (
	CauseLifeLoss        EliminationCause = "LIFE_TOTAL"
	CauseCommanderDamage EliminationCause = "COMMANDER_DAMAGE"
	CauseConcession      EliminationCause = "CONCESSION"
)

// Player is one seat in a Commander game. CommanderDamage is the lifetime
// ledger of combat damage received per commander; it only grows.
type Player struct {
	ID                string
	Name              string
	Life              int
	Eliminated        bool
	EliminationCauses []EliminationCause
	CommanderDamage   map[string]int // commander permanent ID -> total
}

// NewPlayer creates a player at the Commander starting life total.
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:              strings.TrimSpace(id),
		Name:            name,
		Life:            40,
		CommanderDamage: make(map[string]int),
	}
}

// Copy returns a deep copy of the player.
func (pl *Player) Copy() *Player {
	if pl == nil {
		return nil
	}
	cpy := *pl
	cpy.EliminationCauses = append([]EliminationCause(nil), pl.EliminationCauses...)
	cpy.CommanderDamage = make(map[string]int, len(pl.CommanderDamage))
	for id, total := range pl.CommanderDamage {
		cpy.CommanderDamage[id] = total
	}
	return &cpy
}

// AttachmentTable tracks which permanents are attached to which hosts,
// with a reverse index so phasing can move a host and its attachments as
// one unit.
type AttachmentTable struct {
	mu       sync.Mutex
	hostOf   map[string]string   // attachment -> host
	attached map[string][]string // host -> attachments
}

// NewAttachmentTable creates an empty attachment table.
func NewAttachmentTable() *AttachmentTable {
	return &AttachmentTable{
		hostOf:   make(map[string]string),
		attached: make(map[string][]string),
	}
}

// Attach records that attachment is attached to host, detaching it from
// any previous host first.
func (at *AttachmentTable) Attach(attachment, host string) {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.detachLocked(attachment)
	at.hostOf[attachment] = host
	at.attached[host] = append(at.attached[host], attachment)
}

// Detach removes the attachment from its host, if any.
func (at *AttachmentTable) Detach(attachment string) {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.detachLocked(attachment)
}

func (at *AttachmentTable) detachLocked(attachment string) {
	host, ok := at.hostOf[attachment]
	if !ok {
		return
	}
	delete(at.hostOf, attachment)
	list := at.attached[host]
	for i, id := range list {
		if id == attachment {
			at.attached[host] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(at.attached[host]) == 0 {
		delete(at.attached, host)
	}
}

// HostOf returns the host of the attachment, if attached.
func (at *AttachmentTable) HostOf(attachment string) (string, bool) {
	at.mu.Lock()
	defer at.mu.Unlock()
	host, ok := at.hostOf[attachment]
	return host, ok
}

// AttachedTo returns a copy of the attachments on the given host.
func (at *AttachmentTable) AttachedTo(host string) []string {
	at.mu.Lock()
	defer at.mu.Unlock()
	return append([]string(nil), at.attached[host]...)
}

// RemoveEntity drops the entity both as host and as attachment; used when
// it leaves the battlefield.
func (at *AttachmentTable) RemoveEntity(id string) {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.detachLocked(id)
	for _, attachment := range at.attached[id] {
		delete(at.hostOf, attachment)
	}
	delete(at.attached, id)
}

// Copy returns a deep copy of the table.
func (at *AttachmentTable) Copy() *AttachmentTable {
	at.mu.Lock()
	defer at.mu.Unlock()
	cpy := NewAttachmentTable()
	for attachment, host := range at.hostOf {
		cpy.hostOf[attachment] = host
	}
	for host, list := range at.attached {
		cpy.attached[host] = append([]string(nil), list...)
	}
	return cpy
}
