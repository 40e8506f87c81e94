package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/lib/pq"
)

// ResultRepository provides PostgreSQL-backed storage of finished games
type ResultRepository struct {
	pool *Pool
}

// NewResultRepository creates a new PostgreSQL result repository
func NewResultRepository(pool *Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const resultColumns = `id, session_id, date, folder, players, max_images, images, accuracies,
	best_accuracy, targets, video_path, created_at`

func scanResult(scanner interface{ Scan(...any) error }) (database.GameResult, error) {
	var r database.GameResult
	var accuracies pq.Int64Array
	err := scanner.Scan(
		&r.ID,
		&r.SessionID,
		&r.Date,
		&r.Folder,
		&r.Players,
		&r.MaxImages,
		pq.Array(&r.Images),
		&accuracies,
		&r.BestAccuracy,
		pq.Array(&r.Targets),
		&r.VideoPath,
		&r.CreatedAt,
	)
	if err != nil {
		return r, err //nolint:wrapcheck // callers wrap
	}
	r.Accuracies = make([]int, len(accuracies))
	for i, a := range accuracies {
		r.Accuracies[i] = int(a)
	}
	return r, nil
}

// SaveResult stores a finished game, replacing an earlier row of the same session
func (r *ResultRepository) SaveResult(ctx context.Context, res *database.GameResult) error {
	accuracies := make(pq.Int64Array, len(res.Accuracies))
	for i, a := range res.Accuracies {
		accuracies[i] = int64(a)
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO game_results (session_id, date, folder, players, max_images, images, accuracies,
		                          best_accuracy, targets, video_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			date = EXCLUDED.date,
			folder = EXCLUDED.folder,
			players = EXCLUDED.players,
			max_images = EXCLUDED.max_images,
			images = EXCLUDED.images,
			accuracies = EXCLUDED.accuracies,
			best_accuracy = EXCLUDED.best_accuracy,
			targets = EXCLUDED.targets,
			video_path = EXCLUDED.video_path
		RETURNING id, created_at
	`,
		res.SessionID,
		res.Date,
		res.Folder,
		res.Players,
		res.MaxImages,
		pq.Array(res.Images),
		accuracies,
		res.BestAccuracy,
		pq.Array(res.Targets),
		res.VideoPath,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// LatestResult returns the most recently finished game, nil if none
func (r *ResultRepository) LatestResult(ctx context.Context) (*database.GameResult, error) {
	res, err := scanResult(r.pool.QueryRow(ctx,
		"SELECT "+resultColumns+" FROM game_results ORDER BY created_at DESC, id DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest result: %w", err)
	}
	return &res, nil
}

// GetResult returns the result of a session, nil if not found
func (r *ResultRepository) GetResult(ctx context.Context, sessionID uuid.UUID) (*database.GameResult, error) {
	res, err := scanResult(r.pool.QueryRow(ctx,
		"SELECT "+resultColumns+" FROM game_results WHERE session_id = $1", sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}
	return &res, nil
}

// ListResults returns the newest results first
func (r *ResultRepository) ListResults(ctx context.Context, limit int) ([]database.GameResult, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+resultColumns+" FROM game_results ORDER BY created_at DESC, id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []database.GameResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
