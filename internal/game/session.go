// Package game runs motion matching sessions: rounds against target poses,
// live scoring, captures and the final result.
package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/posematch"
)

var (
	ErrFinished     = errors.New("session already finished")
	ErrNoMoreRounds = errors.New("all rounds played")
	ErrNoTarget     = errors.New("target not found")
	ErrEmptyCapture = errors.New("capture image is empty")
)

// Options select how a session is played.
type Options struct {
	Players int `json:"players"`
	Photos  int `json:"photos"`
	Attempt int `json:"attempt"`
}

// Session is one game: Photos rounds, each against a randomly picked target.
type Session struct {
	EventBroadcaster

	ID         uuid.UUID
	Options    Options
	Date       string
	Folder     string
	CaptureDir string
	VideoDir   string
	CreatedAt  time.Time

	// Latest holds the newest live detection, fed by the pose estimator.
	Latest LatestDetection

	targets database.TargetReader
	picker  *Picker
	now     func() time.Time

	mu           sync.Mutex
	lastActive   time.Time
	round        int
	target       *database.StoredTarget
	targetPeople []pose.Person
	current      int
	best         int
	images       []string
	accuracies   []int
	targetNames  []string
	videoPath    string
	finished     bool
}

// Round describes the round in progress.
type Round struct {
	Number    int    `json:"number"`
	Of        int    `json:"of"`
	Target    string `json:"target"`
	ImagePath string `json:"image_path"`
	People    int    `json:"people"`
}

// Capture describes a saved round photo.
type Capture struct {
	File     string `json:"file"`
	Round    int    `json:"round"`
	Accuracy int    `json:"accuracy"`
	Target   string `json:"target"`
}

// State is a snapshot of a session for clients.
type State struct {
	ID         uuid.UUID `json:"id"`
	Options    Options   `json:"options"`
	Date       string    `json:"date"`
	Folder     string    `json:"folder"`
	Round      *Round    `json:"round,omitempty"`
	Current    int       `json:"current"`
	Best       int       `json:"best"`
	Images     []string  `json:"images"`
	Accuracies []int     `json:"accuracies"`
	Targets    []string  `json:"targets"`
	Video      string    `json:"video,omitempty"`
	Finished   bool      `json:"finished"`
}

// Score matches observed people against the round target and updates the
// current and best accuracy. Frames without people do not change the score.
func (s *Session) Score(observed []pose.Person) (Tick, bool) {
	s.mu.Lock()
	if s.finished || s.target == nil || len(observed) == 0 {
		s.mu.Unlock()
		return Tick{}, false
	}

	s.touchLocked()
	r := posematch.Match(observed, s.targetPeople)
	percent := r.Percent()
	s.current = percent
	newBest := percent > s.best
	if newBest {
		s.best = percent
	}
	tick := Tick{
		Round:       s.round,
		Score:       r.Score,
		Percent:     percent,
		Best:        s.best,
		NewBest:     newBest,
		Assignments: r.Assignments,
		Dropped:     r.DroppedA,
	}
	s.mu.Unlock()

	s.SendEvent(Event{Type: EventScore, Data: tick})
	if newBest {
		s.SendEvent(Event{Type: EventNewBest, Message: fmt.Sprintf("New best %d%%", percent), Data: tick})
	}
	return tick, true
}

// NextRound picks a new target and starts the next round.
func (s *Session) NextRound(ctx context.Context) (Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return Round{}, ErrFinished
	}
	if s.round >= s.Options.Photos {
		return Round{}, ErrNoMoreRounds
	}

	s.touchLocked()
	name := database.TargetName(s.Options.Players, s.picker.Next())
	target, err := s.targets.GetTarget(ctx, name)
	if err != nil {
		return Round{}, fmt.Errorf("loading target %s: %w", name, err)
	}
	if target == nil {
		return Round{}, fmt.Errorf("%w: %s", ErrNoTarget, name)
	}

	s.round++
	s.target = target
	s.targetPeople = target.Persons()
	s.current = 0
	s.Latest.Clear()

	round := s.roundLocked()
	s.SendEvent(Event{Type: EventRound, Data: round})
	return round, nil
}

func (s *Session) roundLocked() Round {
	return Round{
		Number:    s.round,
		Of:        s.Options.Photos,
		Target:    s.target.Name,
		ImagePath: s.target.ImagePath,
		People:    len(s.targetPeople),
	}
}

// TargetPeople returns the people of the round target.
func (s *Session) TargetPeople() []pose.Person {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetPeople
}

// Capture saves the round photo as <date>_<n>.jpg and records the accuracy at
// the moment of capture together with the round target.
func (s *Session) Capture(jpeg []byte) (Capture, error) {
	if len(jpeg) == 0 {
		return Capture{}, ErrEmptyCapture
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return Capture{}, ErrFinished
	}

	s.touchLocked()
	file := fmt.Sprintf("%s_%d.jpg", s.Date, len(s.images)+1)
	path := filepath.Join(s.CaptureDir, file)
	if err := os.WriteFile(path, jpeg, 0o644); err != nil { //nolint:gosec // captures are served to the result page
		return Capture{}, fmt.Errorf("saving capture: %w", err)
	}

	c := Capture{File: file, Round: s.round, Accuracy: s.current}
	s.images = append(s.images, file)
	s.accuracies = append(s.accuracies, s.current)
	if s.target != nil {
		c.Target = s.target.Name
		s.targetNames = append(s.targetNames, s.target.Name)
	}

	s.SendEvent(Event{Type: EventCapture, Data: c})
	return c, nil
}

// SaveVideo stores the session recording as <date>.mp4 and returns its path.
func (s *Session) SaveVideo(r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()
	if err := os.MkdirAll(s.VideoDir, 0o755); err != nil {
		return "", fmt.Errorf("creating video folder: %w", err)
	}
	path := filepath.Join(s.VideoDir, s.Date+".mp4")
	f, err := os.Create(path) //nolint:gosec // path is built from the session folder
	if err != nil {
		return "", fmt.Errorf("creating video file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("writing video: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing video: %w", err)
	}
	s.videoPath = path
	return path, nil
}

// Finish ends the session and returns its result record.
func (s *Session) Finish() (*database.GameResult, error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return nil, ErrFinished
	}
	s.finished = true
	result := s.resultLocked()
	s.mu.Unlock()

	s.SendEvent(Event{Type: EventFinished, Data: result})
	return result, nil
}

func (s *Session) resultLocked() *database.GameResult {
	return &database.GameResult{
		SessionID:    s.ID,
		Date:         s.Date,
		Folder:       s.Folder,
		Players:      s.Options.Players,
		MaxImages:    s.Options.Photos,
		Images:       append([]string{}, s.images...),
		Accuracies:   append([]int{}, s.accuracies...),
		BestAccuracy: s.best,
		Targets:      append([]string{}, s.targetNames...),
		VideoPath:    s.videoPath,
	}
}

func (s *Session) touchLocked() {
	if s.now != nil {
		s.lastActive = s.now()
	}
}

// LastActive is the time of the last frame, round, capture or upload.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Finished reports whether Finish has been called.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:         s.ID,
		Options:    s.Options,
		Date:       s.Date,
		Folder:     s.Folder,
		Current:    s.current,
		Best:       s.best,
		Images:     append([]string{}, s.images...),
		Accuracies: append([]int{}, s.accuracies...),
		Targets:    append([]string{}, s.targetNames...),
		Video:      s.videoPath,
		Finished:   s.finished,
	}
	if s.target != nil {
		r := s.roundLocked()
		st.Round = &r
	}
	return st
}
