package database

import (
	"context"

	"github.com/google/uuid"
)

// TargetReader provides read-only access to target poses
type TargetReader interface {
	// GetTarget retrieves a target with its people by name, returns nil if not found
	GetTarget(ctx context.Context, name string) (*StoredTarget, error)
	// ListTargets returns targets for a player count ordered by index (players <= 0 lists all)
	ListTargets(ctx context.Context, players int) ([]StoredTarget, error)
	// CountTargets returns the total number of targets stored
	CountTargets(ctx context.Context) (int, error)
	// FindSimilarPeople finds target people with similar pose vectors and returns cosine distances
	FindSimilarPeople(ctx context.Context, vector []float32, limit int) ([]TargetPerson, []float64, error)
}

// TargetWriter provides write access to target poses
type TargetWriter interface {
	TargetReader

	// SaveTarget stores a target and its people, replacing any target with the same name.
	// ID fields of t and its people are filled in.
	SaveTarget(ctx context.Context, t *StoredTarget) error

	// DeleteTarget removes a target and its people
	DeleteTarget(ctx context.Context, name string) error
}

// ResultReader provides read-only access to finished games
type ResultReader interface {
	// LatestResult returns the most recently finished game, nil if none
	LatestResult(ctx context.Context) (*GameResult, error)
	// GetResult returns the result of a session, nil if not found
	GetResult(ctx context.Context, sessionID uuid.UUID) (*GameResult, error)
	// ListResults returns the newest results first
	ListResults(ctx context.Context, limit int) ([]GameResult, error)
}

// ResultWriter provides write access to finished games
type ResultWriter interface {
	ResultReader

	// SaveResult stores a finished game. Saving the same session twice replaces the earlier row.
	SaveResult(ctx context.Context, r *GameResult) error
}
