package handlers

import (
	"net/http"
	"sort"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Providers        []ProviderInfo `json:"providers"`
	DatabaseEnabled  bool           `json:"database_enabled"`
	CountdownSeconds int            `json:"countdown_seconds"`
	DetectionFPS     int            `json:"detection_fps"`
	RefreshFPS       int            `json:"refresh_fps"`
	MinConfidence    float64        `json:"min_keypoint_confidence"`
	Players          []PlayerOption `json:"players"`
	PhotoCounts      []int          `json:"photo_counts"`
}

// ProviderInfo represents information about a pose extraction provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// PlayerOption is a selectable player count with the size of its target pool.
type PlayerOption struct {
	Players int `json:"players"`
	Targets int `json:"targets"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	providers := []ProviderInfo{
		{
			Name:      "openai",
			Available: h.config.OpenAI.Token != "",
		},
		{
			Name:      "gemini",
			Available: h.config.Gemini.APIKey != "",
		},
		{
			Name:      "ollama",
			Available: true, // Always available (local)
		},
	}

	rules := h.config.Game
	var players []PlayerOption
	for n := 1; n <= rules.MaxPlayers; n++ {
		if rules.ValidPlayers(n) {
			players = append(players, PlayerOption{Players: n, Targets: rules.PoolSize(n)})
		}
	}
	photos := append([]int(nil), rules.PhotoCounts...)
	sort.Ints(photos)

	respondJSON(w, http.StatusOK, ConfigResponse{
		Providers:        providers,
		DatabaseEnabled:  database.IsInitialized(),
		CountdownSeconds: rules.CountdownSeconds,
		DetectionFPS:     rules.DetectionFPS,
		RefreshFPS:       rules.RefreshFPS,
		MinConfidence:    rules.MinKeypointConfidence,
		Players:          players,
		PhotoCounts:      photos,
	})
}
