package handlers

import (
	"net/http"
	"strings"

	"github.com/kozaktomas/pose-match/internal/config"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 320

// QRHandler renders QR codes pointing players to their result page
type QRHandler struct {
	config *config.Config
}

// NewQRHandler creates a new QR handler
func NewQRHandler(cfg *config.Config) *QRHandler {
	return &QRHandler{config: cfg}
}

// baseURL is the configured public URL, or one derived from the request
// (respecting TLS and X-Forwarded-Proto).
func (h *QRHandler) baseURL(r *http.Request) string {
	if h.config.Web.PublicURL != "" {
		return strings.TrimSuffix(h.config.Web.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// ResultURL returns the result page URL of a session.
func (h *QRHandler) ResultURL(r *http.Request, sessionID string) string {
	return h.baseURL(r) + "/api/v1/results/" + sessionID
}

// Session handles GET /sessions/{id}/qr
func (h *QRHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	png, err := qrcode.Encode(h.ResultURL(r, id.String()), qrcode.Medium, qrSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
