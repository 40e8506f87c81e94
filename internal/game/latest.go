package game

import (
	"sync/atomic"
	"time"

	"github.com/kozaktomas/pose-match/internal/pose"
)

// Detection is one pose estimation result: every person found in a frame.
type Detection struct {
	Seq    uint64
	People []pose.Person
	At     time.Time
}

// LatestDetection holds the most recent detection. The estimator stores into it
// at its own rate and the scorer reads whatever is newest; intermediate frames
// may be overwritten unseen. Readers always see a complete detection.
type LatestDetection struct {
	current atomic.Pointer[Detection]
	seq     atomic.Uint64
}

// Store publishes people as the newest detection. The slice must not be
// modified afterwards.
func (l *LatestDetection) Store(people []pose.Person) *Detection {
	d := &Detection{Seq: l.seq.Add(1), People: people, At: time.Now()}
	l.current.Store(d)
	return d
}

// Load returns the newest detection, or nil before the first Store.
func (l *LatestDetection) Load() *Detection {
	return l.current.Load()
}

// Clear drops the held detection, e.g. when a new round starts.
func (l *LatestDetection) Clear() {
	l.current.Store(nil)
}
