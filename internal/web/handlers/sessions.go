package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/game"
	"github.com/kozaktomas/pose-match/internal/metrics"
	"github.com/kozaktomas/pose-match/internal/pose"
)

const (
	maxCaptureBytes = 20 << 20
	maxVideoBytes   = 1 << 30
)

// SessionsHandler handles game session endpoints
type SessionsHandler struct {
	config  *config.Config
	manager *game.Manager
	metrics *metrics.Metrics
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(cfg *config.Config, manager *game.Manager, m *metrics.Metrics) *SessionsHandler {
	return &SessionsHandler{config: cfg, manager: manager, metrics: m}
}

// session resolves the {id} URL parameter, writing an error response when
// the session does not exist.
func (h *SessionsHandler) session(w http.ResponseWriter, r *http.Request) *game.Session {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return nil
	}
	s, err := h.manager.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return s
}

// respondGameError maps game errors to HTTP status codes.
func respondGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidPlayers), errors.Is(err, game.ErrInvalidPhotos),
		errors.Is(err, game.ErrEmptyCapture):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrNoTarget):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrFinished), errors.Is(err, game.ErrNoMoreRounds):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("Session error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// StartResponse is returned when a session starts.
type StartResponse struct {
	game.State
	CountdownSeconds int `json:"countdown_seconds"`
	DetectionFPS     int `json:"detection_fps"`
	RefreshFPS       int `json:"refresh_fps"`
}

// Start handles POST /sessions
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var opts game.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	s, err := h.manager.Start(r.Context(), opts)
	if err != nil {
		respondGameError(w, err)
		return
	}
	h.metrics.SessionsStarted.Inc()

	rules := h.manager.Rules()
	respondJSON(w, http.StatusCreated, StartResponse{
		State:            s.Snapshot(),
		CountdownSeconds: rules.CountdownSeconds,
		DetectionFPS:     rules.DetectionFPS,
		RefreshFPS:       rules.RefreshFPS,
	})
}

// Get handles GET /sessions/{id}
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// FrameRequest is one detection result.
type FrameRequest struct {
	People []pose.Person `json:"people"`
}

// FrameResponse reports whether the frame was scored and the resulting tick.
type FrameResponse struct {
	Scored bool       `json:"scored"`
	Tick   *game.Tick `json:"tick,omitempty"`
}

// Frame handles POST /sessions/{id}/frames
func (h *SessionsHandler) Frame(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	d := s.Latest.Store(req.People)
	tick, ok := s.Score(req.People)
	if !ok {
		h.metrics.FramesSkipped.Inc()
		respondJSON(w, http.StatusOK, FrameResponse{})
		return
	}
	tick.Seq = d.Seq
	h.metrics.ObserveScore(tick.Score, len(tick.Dropped), tick.NewBest)
	respondJSON(w, http.StatusOK, FrameResponse{Scored: true, Tick: &tick})
}

// Next handles POST /sessions/{id}/next
func (h *SessionsHandler) Next(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	round, err := s.NextRound(r.Context())
	if err != nil {
		respondGameError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

// CaptureRequest carries a round photo as a data URL or bare base64.
type CaptureRequest struct {
	Image string `json:"image"`
}

// decodeDataURL accepts "data:image/jpeg;base64,..." or plain base64.
func decodeDataURL(s string) ([]byte, error) {
	if _, data, ok := strings.Cut(s, "base64,"); ok {
		s = data
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// Capture handles POST /sessions/{id}/capture. The body is either JSON with a
// data URL or the raw JPEG bytes.
func (h *SessionsHandler) Capture(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	var jpeg []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req CaptureRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		data, err := decodeDataURL(req.Image)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid image data")
			return
		}
		jpeg = data
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read image")
			return
		}
		jpeg = data
	}

	c, err := s.Capture(jpeg)
	if err != nil {
		respondGameError(w, err)
		return
	}
	h.metrics.Captures.Inc()
	respondJSON(w, http.StatusCreated, c)
}

// Video handles POST /sessions/{id}/video (multipart field "video")
func (h *SessionsHandler) Video(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxVideoBytes)
	file, _, err := r.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	path, err := s.SaveVideo(file)
	if err != nil {
		respondGameError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"video": path})
}

// Finish handles POST /sessions/{id}/finish. The result is stored when a
// database is configured and the session is released.
func (h *SessionsHandler) Finish(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	result, err := s.Finish()
	if err != nil {
		respondGameError(w, err)
		return
	}
	h.metrics.SessionsFinished.Inc()
	h.manager.Remove(s.ID)

	saved := false
	if writer, err := database.GetResultWriter(r.Context()); err == nil {
		if err := writer.SaveResult(r.Context(), result); err != nil {
			log.Printf("Failed to save result of session %s: %v", s.ID, err)
		} else {
			saved = true
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"saved":  saved,
		"result": newResultResponse(result),
	})
}

// Events handles GET /sessions/{id}/events
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	h.metrics.LiveClients.Add(1)
	defer h.metrics.LiveClients.Add(-1)
	streamSessionEvents(w, r, s)
}
