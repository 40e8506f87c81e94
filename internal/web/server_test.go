package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/database/mock"
	"github.com/kozaktomas/pose-match/internal/game"
	"github.com/kozaktomas/pose-match/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Storage: config.StorageConfig{ResultDir: t.TempDir(), TargetDir: t.TempDir()},
		Web:     config.WebConfig{Host: "127.0.0.1", Port: 0},
		Game: config.GameConfig{
			MaxPlayers:  1,
			TargetPools: map[int]int{1: 1},
			PhotoCounts: []int{1},
		},
	}
	store := mock.NewMockTargetStore()
	results := mock.NewMockResultStore()
	database.RegisterPostgresBackend(
		func() database.TargetReader { return store },
		func() database.TargetWriter { return store },
		func() database.ResultWriter { return results },
	)
	t.Cleanup(database.ResetBackend)

	manager := game.NewManager(cfg.Game, cfg.Storage.ResultDir, store)
	return NewServer(cfg, manager, metrics.New(manager.Count), nil), cfg
}

func TestServer_Routes(t *testing.T) {
	s, cfg := newTestServer(t)

	if err := os.MkdirAll(filepath.Join(cfg.Storage.ResultDir, "capture", "2026-03-14", "1"), 0o755); err != nil {
		t.Fatal(err)
	}
	capture := filepath.Join(cfg.Storage.ResultDir, "capture", "2026-03-14", "1", "2026-03-14_1.jpg")
	if err := os.WriteFile(capture, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		wantContain string
	}{
		{"health", "GET", "/api/v1/health", http.StatusOK, `"ok"`},
		{"metrics", "GET", "/metrics", http.StatusOK, "posematch_active_sessions"},
		{"config", "GET", "/api/v1/config", http.StatusOK, `"database_enabled":true`},
		{"targets", "GET", "/api/v1/targets", http.StatusOK, "[]"},
		{"latest result", "GET", "/api/v1/results/latest", http.StatusNotFound, "no results yet"},
		{"unknown session", "GET", "/api/v1/sessions/7f1c1a3e-9a54-4a36-8f5b-0f6a3c2b9d11", http.StatusNotFound, ""},
		{"extract without backend", "POST", "/api/v1/extract", http.StatusServiceUnavailable, ""},
		{"capture file", "GET", "/media/results/capture/2026-03-14/1/2026-03-14_1.jpg", http.StatusOK, "jpeg"},
		{"spa index", "GET", "/", http.StatusOK, "<html"},
		{"spa route fallback", "GET", "/result", http.StatusOK, "<html"},
		{"missing asset", "GET", "/assets/app.js", http.StatusNotFound, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(""))
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, req)

			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
			if tc.wantContain != "" && !strings.Contains(recorder.Body.String(), tc.wantContain) {
				t.Errorf("body does not contain %q: %s", tc.wantContain, recorder.Body.String())
			}
		})
	}
}

func TestServer_SecurityHeadersOnSPA(t *testing.T) {
	s, _ := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))

	if recorder.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy on the UI")
	}

	api := httptest.NewRecorder()
	s.Router().ServeHTTP(api, httptest.NewRequest("GET", "/api/v1/health", nil))
	if api.Header().Get("Content-Security-Policy") != "" {
		t.Error("API responses should not carry the UI CSP")
	}
}
