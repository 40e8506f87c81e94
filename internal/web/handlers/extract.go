package handlers

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/pose-match/internal/ai"
	"github.com/kozaktomas/pose-match/internal/metrics"
	"github.com/kozaktomas/pose-match/internal/pose"
)

const maxExtractBytes = 20 << 20

// ExtractHandler detects people in an uploaded image with a model backend.
// It serves clients that cannot run pose estimation themselves.
type ExtractHandler struct {
	extractor ai.Extractor
	metrics   *metrics.Metrics
}

// NewExtractHandler creates a new extract handler. A nil extractor disables the endpoint.
func NewExtractHandler(extractor ai.Extractor, m *metrics.Metrics) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, metrics: m}
}

// ExtractResponse lists the detected people in pixel coordinates, left to right.
type ExtractResponse struct {
	Model  string        `json:"model"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	People []pose.Person `json:"people"`
}

// Extract handles POST /extract with the raw image as body
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		respondError(w, http.StatusServiceUnavailable, "no extraction backend configured")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxExtractBytes))
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	start := time.Now()
	result, err := h.extractor.Extract(r.Context(), data)
	h.metrics.ObserveExtract(h.extractor.Name(), start, err)
	if err != nil {
		if ai.IsNoPeople(err) {
			respondJSON(w, http.StatusOK, ExtractResponse{Model: h.extractor.Name(), People: []pose.Person{}})
			return
		}
		log.Printf("Extraction with %s failed: %v", h.extractor.Name(), err)
		respondError(w, http.StatusBadGateway, "extraction failed")
		return
	}

	respondJSON(w, http.StatusOK, ExtractResponse{
		Model:  result.Model,
		Width:  result.Size.W,
		Height: result.Size.H,
		People: result.Persons(),
	})
}
