// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/pose-match/internal/database"
)

// MockTargetStore is an in-memory implementation of database.TargetWriter
type MockTargetStore struct {
	mu      sync.RWMutex
	targets map[string]*database.StoredTarget
	nextID  int64

	// Error injection
	GetError         error
	ListError        error
	SaveError        error
	FindSimilarError error
}

// NewMockTargetStore creates a new empty target store
func NewMockTargetStore() *MockTargetStore {
	return &MockTargetStore{targets: make(map[string]*database.StoredTarget)}
}

// AddTarget stores a target without error injection, assigning IDs
func (m *MockTargetStore) AddTarget(t database.StoredTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(&t)
}

func (m *MockTargetStore) store(t *database.StoredTarget) {
	m.nextID++
	t.ID = m.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	for i := range t.People {
		m.nextID++
		t.People[i].ID = m.nextID
		t.People[i].TargetID = t.ID
		t.People[i].TargetName = t.Name
	}
	stored := *t
	stored.People = slices.Clone(t.People)
	m.targets[t.Name] = &stored
}

// GetTarget retrieves a target by name
func (m *MockTargetStore) GetTarget(ctx context.Context, name string) (*database.StoredTarget, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[name]
	if !ok {
		return nil, nil
	}
	out := *t
	out.People = slices.Clone(t.People)
	return &out, nil
}

// ListTargets returns targets for a player count ordered by index
func (m *MockTargetStore) ListTargets(ctx context.Context, players int) ([]database.StoredTarget, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.StoredTarget
	for _, t := range m.targets {
		if players <= 0 || t.Players == players {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Players != out[j].Players {
			return out[i].Players < out[j].Players
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// CountTargets returns the number of stored targets
func (m *MockTargetStore) CountTargets(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.targets), nil
}

// FindSimilarPeople performs a brute force cosine search
func (m *MockTargetStore) FindSimilarPeople(
	ctx context.Context, vector []float32, limit int,
) ([]database.TargetPerson, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		person   database.TargetPerson
		distance float64
	}
	var candidates []candidate
	for _, t := range m.targets {
		for _, p := range t.People {
			candidates = append(candidates, candidate{p, database.CosineDistance(vector, p.Vector)})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].person.ID < candidates[j].person.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	people := make([]database.TargetPerson, len(candidates))
	distances := make([]float64, len(candidates))
	for i, c := range candidates {
		people[i] = c.person
		distances[i] = c.distance
	}
	return people, distances, nil
}

// SaveTarget stores a target, replacing any with the same name
func (m *MockTargetStore) SaveTarget(ctx context.Context, t *database.StoredTarget) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(t)
	return nil
}

// DeleteTarget removes a target
func (m *MockTargetStore) DeleteTarget(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, name)
	return nil
}

// MockResultStore is an in-memory implementation of database.ResultWriter
type MockResultStore struct {
	mu      sync.RWMutex
	results []database.GameResult

	// Error injection
	SaveError error
	GetError  error
}

// NewMockResultStore creates a new empty result store
func NewMockResultStore() *MockResultStore {
	return &MockResultStore{}
}

// SaveResult stores a result, replacing an earlier one of the same session
func (m *MockResultStore) SaveResult(ctx context.Context, r *database.GameResult) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r.CreatedAt = time.Now()
	for i := range m.results {
		if m.results[i].SessionID == r.SessionID {
			r.ID = m.results[i].ID
			m.results[i] = *r
			return nil
		}
	}
	r.ID = int64(len(m.results) + 1)
	m.results = append(m.results, *r)
	return nil
}

// LatestResult returns the last saved result
func (m *MockResultStore) LatestResult(ctx context.Context) (*database.GameResult, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.results) == 0 {
		return nil, nil
	}
	r := m.results[len(m.results)-1]
	return &r, nil
}

// GetResult returns the result of a session
func (m *MockResultStore) GetResult(ctx context.Context, sessionID uuid.UUID) (*database.GameResult, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.SessionID == sessionID {
			return &r, nil
		}
	}
	return nil, nil
}

// ListResults returns the newest results first
func (m *MockResultStore) ListResults(ctx context.Context, limit int) ([]database.GameResult, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.GameResult, 0, len(m.results))
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}

// Results returns every saved result in insertion order
func (m *MockResultStore) Results() []database.GameResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.results)
}
