package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/pose"
)

func standing() pose.Person {
	return pose.Person{
		{Name: "nose", X: 100, Y: 40},
		{Name: "left_shoulder", X: 120, Y: 80},
		{Name: "right_shoulder", X: 80, Y: 80},
		{Name: "left_elbow", X: 130, Y: 120},
		{Name: "right_elbow", X: 70, Y: 120},
		{Name: "left_wrist", X: 135, Y: 160},
		{Name: "right_wrist", X: 65, Y: 160},
		{Name: "left_hip", X: 115, Y: 180},
		{Name: "right_hip", X: 85, Y: 180},
		{Name: "left_knee", X: 115, Y: 240},
		{Name: "right_knee", X: 85, Y: 240},
		{Name: "left_ankle", X: 115, Y: 300},
		{Name: "right_ankle", X: 85, Y: 300},
	}
}

func armsUp() pose.Person {
	p := standing()
	for i, kp := range p {
		switch kp.Name {
		case "left_elbow":
			p[i].X, p[i].Y = 140, 40
		case "right_elbow":
			p[i].X, p[i].Y = 60, 40
		case "left_wrist":
			p[i].X, p[i].Y = 145, 0
		case "right_wrist":
			p[i].X, p[i].Y = 55, 0
		}
	}
	return p
}

func TestLatestDetection(t *testing.T) {
	var l LatestDetection
	if l.Load() != nil {
		t.Fatal("Load() before Store should be nil")
	}

	first := l.Store([]pose.Person{standing()})
	second := l.Store([]pose.Person{armsUp()})
	if second.Seq <= first.Seq {
		t.Errorf("Seq not increasing: %d then %d", first.Seq, second.Seq)
	}
	if got := l.Load(); got != second {
		t.Errorf("Load() = %v, want newest detection", got)
	}

	l.Clear()
	if l.Load() != nil {
		t.Error("Load() after Clear should be nil")
	}
}

func TestLatestDetection_ConcurrentReadersSeeWholeDetections(t *testing.T) {
	var l LatestDetection
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			people := make([]pose.Person, i%4+1)
			for j := range people {
				people[j] = standing()
			}
			l.Store(people)
		}
	}()

	for range 200 {
		if d := l.Load(); d != nil {
			for _, p := range d.People {
				if len(p) != len(standing()) {
					t.Fatalf("torn detection: person with %d keypoints", len(p))
				}
			}
		}
	}
	wg.Wait()
}

func TestEventBroadcaster(t *testing.T) {
	var b EventBroadcaster
	a := b.AddListener()
	c := b.AddListener()
	if b.ListenerCount() != 2 {
		t.Fatalf("ListenerCount() = %d, want 2", b.ListenerCount())
	}

	b.SendEvent(Event{Type: EventScore})
	for _, ch := range []chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != EventScore {
				t.Errorf("event type = %q, want %q", e.Type, EventScore)
			}
		default:
			t.Error("listener did not receive event")
		}
	}

	b.RemoveListener(a)
	if _, ok := <-a; ok {
		t.Error("removed listener channel should be closed")
	}
	if b.ListenerCount() != 1 {
		t.Errorf("ListenerCount() = %d, want 1", b.ListenerCount())
	}
}

func TestEventBroadcaster_FullListenerDoesNotBlock(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()
	for range eventBuffer + 10 {
		b.SendEvent(Event{Type: EventScore})
	}
	if len(ch) != eventBuffer {
		t.Errorf("buffered events = %d, want %d", len(ch), eventBuffer)
	}
}

func TestPicker_NoRepeatUntilExhausted(t *testing.T) {
	p := NewPicker(5, rand.New(rand.NewPCG(1, 2)))

	seen := make(map[int]bool)
	for range 5 {
		idx := p.Next()
		if idx < 1 || idx > 5 {
			t.Fatalf("Next() = %d, out of 1..5", idx)
		}
		if seen[idx] {
			t.Fatalf("Next() repeated %d before the pool was exhausted", idx)
		}
		seen[idx] = true
	}

	// The pool starts over.
	idx := p.Next()
	if idx < 1 || idx > 5 {
		t.Errorf("Next() after exhaustion = %d", idx)
	}
}

func TestPicker_SingleImagePool(t *testing.T) {
	p := NewPicker(1, nil)
	for range 3 {
		if got := p.Next(); got != 1 {
			t.Errorf("Next() = %d, want 1", got)
		}
	}
}

func TestNextFolder(t *testing.T) {
	tests := []struct {
		name   string
		dirs   []string
		files  []string
		expect string
	}{
		{name: "empty", expect: "1"},
		{name: "sequential", dirs: []string{"1", "2"}, expect: "3"},
		{name: "gap uses max", dirs: []string{"1", "7"}, expect: "8"},
		{name: "ignores non numeric", dirs: []string{"abc", "2"}, expect: "3"},
		{name: "ignores files", dirs: []string{"1"}, files: []string{"9"}, expect: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, d := range tt.dirs {
				if err := os.Mkdir(filepath.Join(dir, d), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
					t.Fatal(err)
				}
			}
			got, err := NextFolder(dir)
			if err != nil {
				t.Fatalf("NextFolder() error = %v", err)
			}
			if got != tt.expect {
				t.Errorf("NextFolder() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestNextFolder_MissingDir(t *testing.T) {
	got, err := NextFolder(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("NextFolder() error = %v", err)
	}
	if got != "1" {
		t.Errorf("NextFolder() = %q, want 1", got)
	}
}

func TestCountdown(t *testing.T) {
	var got []int
	err := Countdown(context.Background(), 3, time.Millisecond, func(left int) {
		got = append(got, left)
	})
	if err != nil {
		t.Fatalf("Countdown() error = %v", err)
	}
	want := []int{3, 2, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("ticks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ticks = %v, want %v", got, want)
			break
		}
	}
}

func TestCountdown_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Countdown(ctx, 10, time.Hour, func(int) {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Countdown() error = %v, want context.Canceled", err)
	}
}

func TestSession_RunCountdown(t *testing.T) {
	var s Session
	events := s.AddListener()
	defer s.RemoveListener(events)

	if err := s.RunCountdown(context.Background(), 2, time.Millisecond); err != nil {
		t.Fatalf("RunCountdown() error = %v", err)
	}
	for _, want := range []int{2, 1, 0} {
		ev := <-events
		if ev.Type != EventCountdown || ev.Data != want {
			t.Errorf("event = %+v, want countdown %d", ev, want)
		}
	}
}

type stubScorer struct {
	calls int
	seen  [][]pose.Person
}

func (s *stubScorer) Score(observed []pose.Person) (Tick, bool) {
	s.calls++
	s.seen = append(s.seen, observed)
	if len(observed) == 0 {
		return Tick{}, false
	}
	return Tick{Percent: 50}, true
}

func TestScoreLoop_Step(t *testing.T) {
	var latest LatestDetection
	scorer := &stubScorer{}
	loop := NewScoreLoop(&latest, scorer, 0)

	if _, ok := loop.Step(); ok {
		t.Error("Step() without detection should not score")
	}
	if scorer.calls != 0 {
		t.Errorf("scorer called %d times without detection", scorer.calls)
	}

	d := latest.Store([]pose.Person{standing()})
	tick, ok := loop.Step()
	if !ok {
		t.Fatal("Step() did not score")
	}
	if tick.Seq != d.Seq {
		t.Errorf("tick.Seq = %d, want %d", tick.Seq, d.Seq)
	}

	// A stale detection is scored again.
	if _, ok := loop.Step(); !ok {
		t.Error("Step() should rescore the held detection")
	}
	if scorer.calls != 2 {
		t.Errorf("scorer calls = %d, want 2", scorer.calls)
	}

	latest.Store(nil)
	if _, ok := loop.Step(); ok {
		t.Error("Step() with no people should not report a tick")
	}
}

func TestScoreLoop_RunStopsOnCancel(t *testing.T) {
	var latest LatestDetection
	latest.Store([]pose.Person{standing()})
	loop := NewScoreLoop(&latest, &stubScorer{}, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan Tick, 1)
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx, func(t Tick) {
			select {
			case ticks <- t:
			default:
			}
		})
	}()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick emitted")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func target(players, index int, people ...pose.Person) database.StoredTarget {
	t := database.StoredTarget{
		Name:      database.TargetName(players, index),
		Players:   players,
		Index:     index,
		ImagePath: filepath.Join("matching", database.TargetName(players, index)+".jpg"),
	}
	for slot, p := range people {
		t.People = append(t.People, database.TargetPerson{Slot: slot, Keypoints: p})
	}
	return t
}
