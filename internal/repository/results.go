package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/opencommander/commander-server-go/internal/game"
)

// GameResult is the persisted outcome of a finished game.
type GameResult struct {
	GameID     string
	Winner     string
	Seats      []string
	Turns      int
	Seed       int64
	FinishedAt time.Time
}

// ResultRepository stores finished games and their action logs.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a repository over the shared pool.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveResult upserts the outcome of one game.
func (r *ResultRepository) SaveResult(ctx context.Context, result GameResult) error {
	if result.FinishedAt.IsZero() {
		result.FinishedAt = time.Now()
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO game_results (game_id, winner, seats, turns, seed, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id) DO UPDATE
		SET winner = EXCLUDED.winner, turns = EXCLUDED.turns, finished_at = EXCLUDED.finished_at`,
		result.GameID, result.Winner, result.Seats, result.Turns, result.Seed, result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("saving result for game %s: %w", result.GameID, err)
	}
	r.db.logger.Info("game result saved",
		zap.String("game_id", result.GameID),
		zap.String("winner", result.Winner),
	)
	return nil
}

// AppendActions bulk-inserts a game's action log in one batch.
func (r *ResultRepository) AppendActions(ctx context.Context, gameID string, actions []game.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, action := range actions {
		batch.Queue(`
			INSERT INTO game_actions (game_id, seq, player, action_type, creature_id, target_id, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (game_id, seq) DO NOTHING`,
			gameID, action.Seq, action.Player, action.Type, action.CreatureID, action.TargetID, action.At,
		)
	}
	results := r.db.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range actions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("appending actions for game %s: %w", gameID, err)
		}
	}
	return nil
}

// LoadResult fetches one game's outcome.
func (r *ResultRepository) LoadResult(ctx context.Context, gameID string) (GameResult, error) {
	var result GameResult
	err := r.db.pool.QueryRow(ctx, `
		SELECT game_id, winner, seats, turns, seed, finished_at
		FROM game_results WHERE game_id = $1`, gameID,
	).Scan(&result.GameID, &result.Winner, &result.Seats, &result.Turns, &result.Seed, &result.FinishedAt)
	if err != nil {
		return GameResult{}, fmt.Errorf("loading result for game %s: %w", gameID, err)
	}
	return result, nil
}
