package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
)

var (
	ErrInvalidPlayers = errors.New("invalid number of players")
	ErrInvalidPhotos  = errors.New("invalid number of photos")
	ErrNotFound       = errors.New("session not found")
)

// Manager owns the running sessions.
type Manager struct {
	rules     config.GameConfig
	resultDir string
	targets   database.TargetReader

	// Now and Rand are replaceable for tests.
	Now  func() time.Time
	Rand func() *rand.Rand

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a manager storing captures and videos under resultDir.
func NewManager(rules config.GameConfig, resultDir string, targets database.TargetReader) *Manager {
	return &Manager{
		rules:     rules,
		resultDir: resultDir,
		targets:   targets,
		Now:       time.Now,
		Rand:      func() *rand.Rand { return nil },
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Rules returns the game rules the manager was created with.
func (m *Manager) Rules() config.GameConfig {
	return m.rules
}

// Start validates the options, allocates the next numbered folder for today
// and plays the first round.
func (m *Manager) Start(ctx context.Context, opts Options) (*Session, error) {
	if !m.rules.ValidPlayers(opts.Players) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPlayers, opts.Players)
	}
	if !m.rules.ValidPhotos(opts.Photos) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhotos, opts.Photos)
	}

	now := m.Now()
	date := now.Format(DateLayout)

	m.mu.Lock()
	captureRoot := filepath.Join(m.resultDir, "capture", date)
	folder, err := NextFolder(captureRoot)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	s := &Session{
		ID:         uuid.New(),
		Options:    opts,
		Date:       date,
		Folder:     folder,
		CaptureDir: filepath.Join(captureRoot, folder),
		VideoDir:   filepath.Join(m.resultDir, "video", date, folder),
		CreatedAt:  now,
		targets:    m.targets,
		picker:     NewPicker(m.rules.PoolSize(opts.Players), m.Rand()),
		now:        m.Now,
		lastActive: now,
	}
	// The capture folder is created under the lock so concurrent starts
	// never share a folder number.
	if err := os.MkdirAll(s.CaptureDir, 0o755); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("creating capture folder: %w", err)
	}
	m.mu.Unlock()

	if _, err := s.NextRound(ctx); err != nil {
		// Free the folder number; nothing was captured into it.
		if rmErr := os.RemoveAll(s.CaptureDir); rmErr != nil {
			fmt.Printf("Failed to remove capture folder %s: %v\n", s.CaptureDir, rmErr)
		}
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	fmt.Printf("Started session %s (%d players, %d photos) in %s\n", s.ID, opts.Players, opts.Photos, s.CaptureDir)
	return s, nil
}

// Get returns a running session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove forgets a session.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of sessions held.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle forgets sessions that nobody is connected to and that have had no
// activity for longer than maxIdle. The capture folder of an evicted session
// is removed only when it holds no photos. A non-positive maxIdle disables
// eviction.
func (m *Manager) EvictIdle(maxIdle time.Duration) []uuid.UUID {
	if maxIdle <= 0 {
		return nil
	}
	cutoff := m.Now().Add(-maxIdle)

	m.mu.Lock()
	var evicted []*Session
	for id, s := range m.sessions {
		if s.ListenerCount() > 0 || s.LastActive().After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		evicted = append(evicted, s)
	}
	m.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(evicted))
	for _, s := range evicted {
		ids = append(ids, s.ID)
		// os.Remove fails on a folder with captures in it, which are kept.
		_ = os.Remove(s.CaptureDir)
		fmt.Printf("Evicted idle session %s (%s)\n", s.ID, s.CaptureDir)
	}
	return ids
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if maxIdle <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(maxIdle)
		}
	}
}
