package database

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/pose-match/internal/pose"
)

// StoredTarget is a reference image players try to imitate, together with the
// people detected in it.
type StoredTarget struct {
	ID           int64
	Name         string // "<players>/<index>", e.g. "2/7"
	Players      int
	Index        int
	ImagePath    string
	PosePath     string
	SourceWidth  int
	SourceHeight int
	CreatedAt    time.Time
	People       []TargetPerson
}

// TargetPerson is one person of a target with its normalized pose vector.
type TargetPerson struct {
	ID         int64
	TargetID   int64
	TargetName string
	Slot       int
	Keypoints  pose.Person
	Vector     []float32 // pose.VectorLen floats
	Score      float64   // detector confidence
}

// TargetName builds the canonical target name for a player count and image index.
func TargetName(players, index int) string {
	return fmt.Sprintf("%d/%d", players, index)
}

// ParseTargetName is the inverse of TargetName.
func ParseTargetName(name string) (players, index int, err error) {
	p, i, ok := strings.Cut(name, "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid target name %q", name)
	}
	if players, err = strconv.Atoi(p); err != nil {
		return 0, 0, fmt.Errorf("invalid target name %q: %w", name, err)
	}
	if index, err = strconv.Atoi(i); err != nil {
		return 0, 0, fmt.Errorf("invalid target name %q: %w", name, err)
	}
	return players, index, nil
}

// Persons returns the target people ordered by slot, ready for matching.
func (t *StoredTarget) Persons() []pose.Person {
	people := make([]TargetPerson, len(t.People))
	copy(people, t.People)
	sort.Slice(people, func(i, j int) bool { return people[i].Slot < people[j].Slot })

	out := make([]pose.Person, len(people))
	for i := range people {
		out[i] = people[i].Keypoints
	}
	return out
}

// GameResult is the record of one finished game session.
type GameResult struct {
	ID           int64
	SessionID    uuid.UUID
	Date         string // YYYY-MM-DD
	Folder       string // capture folder number within the date
	Players      int
	MaxImages    int
	Images       []string // capture file names, one per round
	Accuracies   []int    // accuracy percent at capture time, one per round
	BestAccuracy int
	Targets      []string // target names, one per round
	VideoPath    string
	CreatedAt    time.Time
}
