package config

import (
	"testing"
	"time"
)

func TestLoadGame_EmbeddedRules(t *testing.T) {
	game := LoadGame()

	if game.CountdownSeconds != 10 {
		t.Errorf("CountdownSeconds = %d, want 10", game.CountdownSeconds)
	}
	if game.DetectionFPS != 12 {
		t.Errorf("DetectionFPS = %d, want 12", game.DetectionFPS)
	}
	if game.MinKeypointConfidence != 0.3 {
		t.Errorf("MinKeypointConfidence = %v, want 0.3", game.MinKeypointConfidence)
	}
	if got := game.SessionIdleTimeout(); got != 30*time.Minute {
		t.Errorf("SessionIdleTimeout() = %v, want 30m", got)
	}
}

func TestGameConfig_PoolSize(t *testing.T) {
	game := LoadGame()

	tests := []struct {
		players  int
		expected int
	}{
		{1, 20},
		{2, 20},
		{3, 18},
		{4, 9},
		{7, 20}, // unknown count falls back to the single player pool
	}

	for _, tt := range tests {
		if got := game.PoolSize(tt.players); got != tt.expected {
			t.Errorf("PoolSize(%d) = %d, want %d", tt.players, got, tt.expected)
		}
	}
}

func TestGameConfig_Validation(t *testing.T) {
	game := LoadGame()

	for _, p := range []int{1, 2, 3, 4} {
		if !game.ValidPlayers(p) {
			t.Errorf("ValidPlayers(%d) = false", p)
		}
	}
	for _, p := range []int{0, -1, 5} {
		if game.ValidPlayers(p) {
			t.Errorf("ValidPlayers(%d) = true", p)
		}
	}
	if !game.ValidPhotos(3) {
		t.Error("ValidPhotos(3) = false")
	}
	if game.ValidPhotos(2) {
		t.Error("ValidPhotos(2) = true")
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"unset", "", 25},
		{"valid", "40", 40},
		{"zero", "0", 25},
		{"negative", "-3", 25},
		{"garbage", "abc", 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", 25); got != tt.expected {
				t.Errorf("envInt() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEB_PORT", "")
	t.Setenv("RESULT_DIR", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/pose")

	cfg := Load()

	if cfg.Web.Port != 8080 {
		t.Errorf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
	if cfg.Storage.ResultDir != "result_images" {
		t.Errorf("Storage.ResultDir = %q", cfg.Storage.ResultDir)
	}
	if cfg.Database.URL != "postgres://localhost/pose" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Database.MaxOpenConns = %d, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Game.PoolSize(4) != 9 {
		t.Error("game rules not loaded")
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("TEST_ENV_LIST", " https://a.example, ,https://b.example ")
	got := envList("TEST_ENV_LIST")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("envList() = %q", got)
	}

	t.Setenv("TEST_ENV_LIST", "")
	if got := envList("TEST_ENV_LIST"); len(got) != 0 {
		t.Errorf("envList() on empty = %q, want none", got)
	}
}

func TestGetModelPricing(t *testing.T) {
	cfg := Load()

	tests := []struct {
		model  string
		input  float64
		output float64
	}{
		{"gpt-4.1-mini", 0.40, 1.60},
		{"gemini-2.5-flash", 0.30, 2.50},
		{"llama3.2-vision:11b", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p := cfg.GetModelPricing(tt.model)
			if p.Input != tt.input || p.Output != tt.output {
				t.Errorf("GetModelPricing(%q) = %+v, want input %v output %v", tt.model, p, tt.input, tt.output)
			}
		})
	}
}
