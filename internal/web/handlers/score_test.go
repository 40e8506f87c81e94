package handlers

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/posematch"
)

func postScore(t *testing.T, body any) (*httptest.ResponseRecorder, ScoreResponse) {
	t.Helper()
	handler := NewScoreHandler(testMetrics())
	recorder := httptest.NewRecorder()
	handler.Score(recorder, jsonRequest(t, "POST", "/api/v1/score", body))

	var result ScoreResponse
	if recorder.Code == http.StatusOK {
		decode(t, recorder, &result)
	}
	return recorder, result
}

func TestScoreHandler_MatchesPeopleAcrossOrder(t *testing.T) {
	recorder, result := postScore(t, ScoreRequest{
		Observed: []pose.Person{armsUp(), standing()},
		Target:   []pose.Person{standing(), armsUp()},
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if result.Percent != 100 {
		t.Errorf("Percent = %d, want 100", result.Percent)
	}
	want := []posematch.Assignment{{A: 0, B: 1, Score: 1}, {A: 1, B: 0, Score: 1}}
	got := slices.Clone(result.Assignments)
	slices.SortFunc(got, func(a, b posematch.Assignment) int { return a.A - b.A })
	if len(got) != len(want) {
		t.Fatalf("Assignments = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i].A != want[i].A || got[i].B != want[i].B {
			t.Errorf("assignment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestScoreHandler_ReportsDroppedPeople(t *testing.T) {
	headless := pose.Person{{Name: "nose", X: 10, Y: 10}}

	_, result := postScore(t, ScoreRequest{
		Observed: []pose.Person{headless, standing()},
		Target:   []pose.Person{standing()},
	})

	if !slices.Equal(result.DroppedObserved, []int{0}) {
		t.Errorf("DroppedObserved = %v, want [0]", result.DroppedObserved)
	}
	if len(result.DroppedTarget) != 0 {
		t.Errorf("DroppedTarget = %v, want none", result.DroppedTarget)
	}
	if len(result.Assignments) != 1 || result.Assignments[0].A != 1 {
		t.Errorf("Assignments = %+v, want observed person 1 matched", result.Assignments)
	}
}

func TestScoreHandler_EmptySides(t *testing.T) {
	_, result := postScore(t, ScoreRequest{Target: []pose.Person{standing()}})

	if result.Score != 0 || result.Percent != 0 {
		t.Errorf("Score = %v (%d%%), want 0", result.Score, result.Percent)
	}
	if result.Assignments == nil {
		t.Error("Assignments should encode as an empty list, not null")
	}
}

func TestScoreHandler_Single(t *testing.T) {
	_, same := postScore(t, ScoreRequest{
		Observed: []pose.Person{standing(), armsUp()},
		Target:   []pose.Person{standing()},
		Single:   true,
	})
	if same.Percent != 100 {
		t.Errorf("single Percent = %d, want 100", same.Percent)
	}

	_, different := postScore(t, ScoreRequest{
		Observed: []pose.Person{armsUp()},
		Target:   []pose.Person{standing()},
		Single:   true,
	})
	if different.Percent >= 100 || different.Percent <= 0 {
		t.Errorf("single Percent = %d, want between 0 and 100", different.Percent)
	}
}

func TestScoreHandler_InvalidBody(t *testing.T) {
	handler := NewScoreHandler(testMetrics())
	recorder := httptest.NewRecorder()
	handler.Score(recorder, httptest.NewRequest("POST", "/api/v1/score", strings.NewReader("{")))

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}
