package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/pose-match/internal/database"
)

const defaultResultsLimit = 20

// ResultsHandler serves finished games
type ResultsHandler struct{}

// NewResultsHandler creates a new results handler
func NewResultsHandler() *ResultsHandler {
	return &ResultsHandler{}
}

// ResultResponse is the result page payload. Field names follow the result
// page query parameters.
type ResultResponse struct {
	SessionID string   `json:"session_id"`
	Date      string   `json:"date"`
	Folder    string   `json:"folder"`
	Player    int      `json:"player"`
	MaxImage  int      `json:"max_image"`
	ImagesNm  []string `json:"images_nm"`
	ImagesAc  []int    `json:"images_ac"`
	BestAc    int      `json:"best_ac"`
	Targets   []string `json:"targets"`
	Video     string   `json:"video,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

func newResultResponse(r *database.GameResult) ResultResponse {
	resp := ResultResponse{
		SessionID: r.SessionID.String(),
		Date:      r.Date,
		Folder:    r.Folder,
		Player:    r.Players,
		MaxImage:  r.MaxImages,
		ImagesNm:  r.Images,
		ImagesAc:  r.Accuracies,
		BestAc:    r.BestAccuracy,
		Targets:   r.Targets,
		Video:     r.VideoPath,
	}
	if !r.CreatedAt.IsZero() {
		resp.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

func getResultReader(w http.ResponseWriter, r *http.Request) database.ResultReader {
	reader, err := database.GetResultReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "result storage not available")
		return nil
	}
	return reader
}

// Latest handles GET /results/latest
func (h *ResultsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	reader := getResultReader(w, r)
	if reader == nil {
		return
	}
	result, err := reader.LatestResult(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	if result == nil {
		respondError(w, http.StatusNotFound, "no results yet")
		return
	}
	respondJSON(w, http.StatusOK, newResultResponse(result))
}

// Get handles GET /results/{id}
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	reader := getResultReader(w, r)
	if reader == nil {
		return
	}
	result, err := reader.GetResult(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	if result == nil {
		respondError(w, http.StatusNotFound, "result not found")
		return
	}
	respondJSON(w, http.StatusOK, newResultResponse(result))
}

// List handles GET /results?limit=N
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	reader := getResultReader(w, r)
	if reader == nil {
		return
	}
	results, err := reader.ListResults(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list results")
		return
	}

	out := make([]ResultResponse, len(results))
	for i := range results {
		out[i] = newResultResponse(&results[i])
	}
	respondJSON(w, http.StatusOK, out)
}
