package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kozaktomas/pose-match/internal/metrics"
	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/posematch"
)

// ScoreHandler scores ad hoc pose sets without a session.
type ScoreHandler struct {
	metrics *metrics.Metrics
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(m *metrics.Metrics) *ScoreHandler {
	return &ScoreHandler{metrics: m}
}

// ScoreRequest carries the two sets of people to compare.
type ScoreRequest struct {
	Observed []pose.Person `json:"observed"`
	Target   []pose.Person `json:"target"`
	// Single compares only the first person of each set.
	Single bool `json:"single"`
}

// ScoreResponse is the outcome of a score request.
type ScoreResponse struct {
	Score           float64                `json:"score"`
	Percent         int                    `json:"percent"`
	Assignments     []posematch.Assignment `json:"assignments"`
	DroppedObserved []int                  `json:"dropped_observed,omitempty"`
	DroppedTarget   []int                  `json:"dropped_target,omitempty"`
}

// Score handles POST /score
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.Single {
		var observed, target pose.Person
		if len(req.Observed) > 0 {
			observed = req.Observed[0]
		}
		if len(req.Target) > 0 {
			target = req.Target[0]
		}
		score := posematch.ScoreSingle(observed, target)
		respondJSON(w, http.StatusOK, ScoreResponse{
			Score:       score,
			Percent:     posematch.Percent(score),
			Assignments: []posematch.Assignment{},
		})
		return
	}

	result := posematch.Match(req.Observed, req.Target)
	h.metrics.ObserveScore(result.Score, len(result.DroppedA), false)

	respondJSON(w, http.StatusOK, ScoreResponse{
		Score:           result.Score,
		Percent:         result.Percent(),
		Assignments:     result.Assignments,
		DroppedObserved: result.DroppedA,
		DroppedTarget:   result.DroppedB,
	})
}
