package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("metrics output missing %q", w)
		}
	}
}

func TestObserveScore(t *testing.T) {
	m := New(nil)

	m.ObserveScore(0.8, 0, true)
	m.ObserveScore(0.4, 2, false)

	assertContains(t, scrape(t, m),
		"posematch_frames_scored_total 2",
		"posematch_people_dropped_total 2",
		"posematch_new_best_total 1",
		"posematch_score_count 2",
	)
}

func TestObserveExtract(t *testing.T) {
	m := New(nil)
	m.ObserveExtract("ollama", time.Now(), nil)
	m.ObserveExtract("ollama", time.Now(), errors.New("boom"))

	assertContains(t, scrape(t, m),
		`posematch_extract_errors_total{backend="ollama"} 1`,
		`posematch_extract_duration_seconds_count{backend="ollama"} 2`,
	)
}

func TestGauges(t *testing.T) {
	active := 3
	m := New(func() int { return active })
	m.LiveClients.Add(2)
	m.Captures.Inc()

	assertContains(t, scrape(t, m),
		"posematch_active_sessions 3",
		"posematch_live_clients 2",
		"posematch_captures_total 1",
	)

	if _, err := m.Registry().Gather(); err != nil {
		t.Errorf("Gather() error = %v", err)
	}
}
