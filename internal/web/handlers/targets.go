package handlers

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/posematch"
	"github.com/kozaktomas/pose-match/internal/render"
)

const (
	defaultSimilarLimit = 10
	maxSimilarLimit     = 100
)

// TargetsHandler serves stored target poses
type TargetsHandler struct {
	config *config.Config
}

// NewTargetsHandler creates a new targets handler
func NewTargetsHandler(cfg *config.Config) *TargetsHandler {
	return &TargetsHandler{config: cfg}
}

// TargetResponse describes one target image.
type TargetResponse struct {
	Name      string `json:"name"`
	Players   int    `json:"players"`
	Index     int    `json:"index"`
	ImagePath string `json:"image_path"`
	People    int    `json:"people"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

func newTargetResponse(t *database.StoredTarget) TargetResponse {
	return TargetResponse{
		Name:      t.Name,
		Players:   t.Players,
		Index:     t.Index,
		ImagePath: t.ImagePath,
		People:    len(t.People),
		Width:     t.SourceWidth,
		Height:    t.SourceHeight,
	}
}

func getTargetReader(w http.ResponseWriter, r *http.Request) database.TargetReader {
	reader, err := database.GetTargetReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "target storage not available")
		return nil
	}
	return reader
}

// List handles GET /targets?players=N
func (h *TargetsHandler) List(w http.ResponseWriter, r *http.Request) {
	players := 0
	if s := r.URL.Query().Get("players"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid players")
			return
		}
		players = n
	}

	reader := getTargetReader(w, r)
	if reader == nil {
		return
	}
	targets, err := reader.ListTargets(r.Context(), players)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list targets")
		return
	}

	out := make([]TargetResponse, len(targets))
	for i := range targets {
		out[i] = newTargetResponse(&targets[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// target resolves the {players}/{index} URL parameters.
func (h *TargetsHandler) target(w http.ResponseWriter, r *http.Request) *database.StoredTarget {
	players, err1 := strconv.Atoi(chi.URLParam(r, "players"))
	index, err2 := strconv.Atoi(chi.URLParam(r, "index"))
	if err1 != nil || err2 != nil {
		respondError(w, http.StatusBadRequest, "invalid target name")
		return nil
	}

	reader := getTargetReader(w, r)
	if reader == nil {
		return nil
	}
	t, err := reader.GetTarget(r.Context(), database.TargetName(players, index))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load target")
		return nil
	}
	if t == nil {
		respondError(w, http.StatusNotFound, "target not found")
		return nil
	}
	return t
}

// Get handles GET /targets/{players}/{index}
func (h *TargetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := h.target(w, r)
	if t == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"target": newTargetResponse(t),
		"people": t.Persons(),
	})
}

// resolveImage maps a stored image path to the filesystem. Relative paths
// live under the target directory.
func (h *TargetsHandler) resolveImage(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(h.config.Storage.TargetDir, p)
}

// Skeleton handles GET /targets/{players}/{index}/skeleton.png. The skeleton is
// drawn over the target image, or over a blank canvas when the image is gone.
func (h *TargetsHandler) Skeleton(w http.ResponseWriter, r *http.Request) {
	t := h.target(w, r)
	if t == nil {
		return
	}
	people := t.Persons()

	var img image.Image
	if path := h.resolveImage(t.ImagePath); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			overlay, err := render.Overlay(data, people)
			if err != nil {
				log.Printf("Failed to draw skeleton over %s: %v", sanitizeForLog(path), err)
			} else {
				img = overlay
			}
		}
	}
	if img == nil {
		if t.SourceWidth <= 0 || t.SourceHeight <= 0 {
			respondError(w, http.StatusNotFound, "target image not available")
			return
		}
		img = render.Blank(pose.Size{W: t.SourceWidth, H: t.SourceHeight}, people)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := render.WritePNG(w, img); err != nil {
		log.Printf("Failed to write skeleton png: %v", err)
	}
}

// SimilarRequest is a pose to look up among the stored target people.
type SimilarRequest struct {
	Person pose.Person `json:"person"`
	Limit  int         `json:"limit"`
}

// SimilarMatch is one stored target person close to the requested pose.
type SimilarMatch struct {
	Target   string  `json:"target"`
	Slot     int     `json:"slot"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
	Percent  int     `json:"percent"`
}

// Similar handles POST /targets/similar
func (h *TargetsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	limit = min(limit, maxSimilarLimit)

	vec, ok := pose.Normalize(req.Person)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("pose needs %s, %s, %s and %s",
			pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip))
		return
	}

	reader := getTargetReader(w, r)
	if reader == nil {
		return
	}
	people, distances, err := reader.FindSimilarPeople(r.Context(), vec.Float32(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	out := make([]SimilarMatch, len(people))
	for i, p := range people {
		score := database.DistanceToScore(distances[i])
		out[i] = SimilarMatch{
			Target:   p.TargetName,
			Slot:     p.Slot,
			Distance: distances[i],
			Score:    score,
			Percent:  posematch.Percent(score),
		}
	}
	respondJSON(w, http.StatusOK, out)
}
