package game

import (
	"context"
	"time"

	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/posematch"
)

// Tick is the outcome of scoring one detection against the round target.
type Tick struct {
	Seq         uint64                 `json:"seq"`
	Round       int                    `json:"round"`
	Score       float64                `json:"score"`
	Percent     int                    `json:"percent"`
	Best        int                    `json:"best"`
	NewBest     bool                   `json:"new_best"`
	Assignments []posematch.Assignment `json:"assignments"`
	Dropped     []int                  `json:"dropped,omitempty"`
}

// Scorer scores observed people. It returns false when there was nothing to
// score, e.g. no target is loaded or nobody is in the frame.
type Scorer interface {
	Score(observed []pose.Person) (Tick, bool)
}

// ScoreLoop is the consumer side of a live session: on every tick it scores
// the newest detection and reports the result.
type ScoreLoop struct {
	latest   *LatestDetection
	scorer   Scorer
	interval time.Duration
}

// NewScoreLoop creates a loop firing fps times per second.
func NewScoreLoop(latest *LatestDetection, scorer Scorer, fps int) *ScoreLoop {
	if fps <= 0 {
		fps = 30
	}
	return &ScoreLoop{latest: latest, scorer: scorer, interval: time.Second / time.Duration(fps)}
}

// Run scores until ctx is cancelled and returns ctx.Err(). A stale detection
// is scored again on the next tick, so the reported score follows target
// changes even while the estimator is slow.
func (l *ScoreLoop) Run(ctx context.Context, emit func(Tick)) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if tick, ok := l.Step(); ok {
				emit(tick)
			}
		}
	}
}

// Step scores the newest detection once.
func (l *ScoreLoop) Step() (Tick, bool) {
	d := l.latest.Load()
	if d == nil {
		return Tick{}, false
	}
	tick, ok := l.scorer.Score(d.People)
	if !ok {
		return Tick{}, false
	}
	tick.Seq = d.Seq
	return tick, true
}
