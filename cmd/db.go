package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/database/postgres"
)

// repositories are the PostgreSQL repositories shared by the commands.
type repositories struct {
	pool    *postgres.Pool
	targets *postgres.TargetRepository
	results *postgres.ResultRepository
}

// openDatabase connects to PostgreSQL, applies migrations and registers the
// repositories with the database package.
func openDatabase(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	repos := &repositories{
		pool:    pool,
		targets: postgres.NewTargetRepository(pool),
		results: postgres.NewResultRepository(pool),
	}
	database.RegisterPostgresBackend(
		func() database.TargetReader { return repos.targets },
		func() database.TargetWriter { return repos.targets },
		func() database.ResultWriter { return repos.results },
	)
	database.RegisterTargetHNSWRebuilder(repos.targets)
	return repos, nil
}

// initTargetHNSW builds or loads the target HNSW index for fast similarity search.
func initTargetHNSW(ctx context.Context, repo *postgres.TargetRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading target HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for target poses...\n")
	}
	if err := repo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build target HNSW index: %v\n", err)
		fmt.Printf("Similar pose search will use PostgreSQL queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("Target HNSW index ready with %d people (persisted to %s)\n", repo.HNSWCount(), indexPath)
	} else {
		fmt.Printf("Target HNSW index built with %d people (in-memory only)\n", repo.HNSWCount())
	}
}
