package game

import (
	"context"
	"time"
)

// Countdown calls onTick with seconds, seconds-1, ... 0, waiting step between
// calls. It returns ctx.Err() if cancelled before reaching zero.
func Countdown(ctx context.Context, seconds int, step time.Duration, onTick func(left int)) error {
	left := max(seconds, 0)
	onTick(left)
	if left == 0 {
		return nil
	}

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for left > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			left--
			onTick(left)
		}
	}
	return nil
}

// RunCountdown counts down before a capture and publishes every remaining
// second to the session listeners.
func (s *Session) RunCountdown(ctx context.Context, seconds int, step time.Duration) error {
	return Countdown(ctx, seconds, step, func(left int) {
		s.SendEvent(Event{Type: EventCountdown, Data: left})
	})
}
