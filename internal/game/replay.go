package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"time"
)

// ActionRecord is one entry in a game's action log. The log plus the
// RNG seed reconstructs the entire game deterministically.
type ActionRecord struct {
	Seq        int
	Player     string
	Type       string
	CreatureID string
	TargetID   string
	Order      []string
	At         time.Time
}

// ReplayLog is the serializable replay of one game.
type ReplayLog struct {
	GameID  string
	Seed    int64
	Seats   []string
	Actions []ActionRecord
}

func (g *Game) recordAction(record ActionRecord) {
	record.Seq = len(g.actionLog)
	if record.At.IsZero() {
		record.At = time.Now()
	}
	g.actionLog = append(g.actionLog, record)
}

// ActionLog returns a copy of the action log so far.
func (g *Game) ActionLog() []ActionRecord {
	return append([]ActionRecord(nil), g.actionLog...)
}

// BuildReplay packages the game's log for persistence.
func (g *Game) BuildReplay() ReplayLog {
	return ReplayLog{
		GameID:  g.ID,
		Seed:    g.seed,
		Seats:   append([]string(nil), g.seats...),
		Actions: g.ActionLog(),
	}
}

// SaveReplay writes a replay to disk as gzipped gob.
func SaveReplay(path string, replay ReplayLog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating replay file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(replay); err != nil {
		zw.Close()
		return fmt.Errorf("encoding replay: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing replay: %w", err)
	}
	return nil
}

// LoadReplay reads a replay written by SaveReplay.
func LoadReplay(path string) (ReplayLog, error) {
	var replay ReplayLog

	f, err := os.Open(path)
	if err != nil {
		return replay, fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return replay, fmt.Errorf("reading replay header: %w", err)
	}
	defer zr.Close()

	if err := gob.NewDecoder(zr).Decode(&replay); err != nil {
		return replay, fmt.Errorf("decoding replay: %w", err)
	}
	return replay, nil
}
