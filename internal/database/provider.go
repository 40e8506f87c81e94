package database

import (
	"context"
	"errors"
)

// HNSWRebuilder is an interface for repositories that support HNSW index rebuilding
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// IsHNSWEnabled returns whether HNSW is enabled
	IsHNSWEnabled() bool
	// SaveHNSWIndex saves the current index to disk (if path configured)
	SaveHNSWIndex() error
}

var errNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

var (
	postgresTargetReader func() TargetReader
	postgresTargetWriter func() TargetWriter
	postgresResultWriter func() ResultWriter
	postgresTargetHNSW   HNSWRebuilder // Singleton for target HNSW rebuilding
	postgresInitialized  bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the cmd package to avoid import cycles.
func RegisterPostgresBackend(
	targetReader func() TargetReader,
	targetWriter func() TargetWriter,
	resultWriter func() ResultWriter,
) {
	postgresTargetReader = targetReader
	postgresTargetWriter = targetWriter
	postgresResultWriter = resultWriter
	postgresInitialized = true
}

// ResetBackend clears all registrations. Tests use it to start from a clean state.
func ResetBackend() {
	postgresTargetReader = nil
	postgresTargetWriter = nil
	postgresResultWriter = nil
	postgresTargetHNSW = nil
	postgresInitialized = false
}

// RegisterTargetHNSWRebuilder registers the HNSW rebuilder for the target repository.
func RegisterTargetHNSWRebuilder(rebuilder HNSWRebuilder) {
	postgresTargetHNSW = rebuilder
}

// GetTargetHNSWRebuilder returns the registered target HNSW rebuilder, or nil if not registered.
func GetTargetHNSWRebuilder() HNSWRebuilder {
	return postgresTargetHNSW
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetTargetReader returns a TargetReader from the PostgreSQL backend
func GetTargetReader(ctx context.Context) (TargetReader, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresTargetReader == nil {
		return nil, errors.New("PostgreSQL target reader not registered")
	}
	return postgresTargetReader(), nil
}

// GetTargetWriter returns a TargetWriter from the PostgreSQL backend
func GetTargetWriter(ctx context.Context) (TargetWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresTargetWriter == nil {
		return nil, errors.New("PostgreSQL target writer not registered")
	}
	return postgresTargetWriter(), nil
}

// GetResultWriter returns a ResultWriter from the PostgreSQL backend
func GetResultWriter(ctx context.Context) (ResultWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresResultWriter == nil {
		return nil, errors.New("PostgreSQL result writer not registered")
	}
	return postgresResultWriter(), nil
}

// GetResultReader returns a ResultReader from the PostgreSQL backend
func GetResultReader(ctx context.Context) (ResultReader, error) {
	return GetResultWriter(ctx)
}
