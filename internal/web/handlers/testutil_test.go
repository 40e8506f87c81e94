package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/database/mock"
	"github.com/kozaktomas/pose-match/internal/game"
	"github.com/kozaktomas/pose-match/internal/metrics"
	"github.com/kozaktomas/pose-match/internal/pose"
)

// testRules keeps target pools small so tests control every pick.
func testRules() config.GameConfig {
	return config.GameConfig{
		CountdownSeconds: 10,
		DetectionFPS:     5,
		RefreshFPS:       10,
		MaxPlayers:       2,
		TargetPools:      map[int]int{1: 1, 2: 1},
		PhotoCounts:      []int{3, 1},
	}
}

// testConfig creates a minimal config for testing
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			ResultDir: t.TempDir(),
			TargetDir: t.TempDir(),
		},
		Game: testRules(),
	}
}

// setupDatabase registers in-memory stores as the database backend for the
// duration of the test.
func setupDatabase(t *testing.T) (*mock.MockTargetStore, *mock.MockResultStore) {
	t.Helper()
	targets := mock.NewMockTargetStore()
	results := mock.NewMockResultStore()
	database.RegisterPostgresBackend(
		func() database.TargetReader { return targets },
		func() database.TargetWriter { return targets },
		func() database.ResultWriter { return results },
	)
	t.Cleanup(database.ResetBackend)
	return targets, results
}

// noDatabase makes sure no backend is registered.
func noDatabase(t *testing.T) {
	t.Helper()
	database.ResetBackend()
	t.Cleanup(database.ResetBackend)
}

// newTestManager creates a manager with one target per player count.
func newTestManager(t *testing.T, cfg *config.Config, store *mock.MockTargetStore) *game.Manager {
	t.Helper()
	store.AddTarget(testTarget(1, 1, standing()))
	store.AddTarget(testTarget(2, 1, standing(), armsUp()))

	m := game.NewManager(cfg.Game, cfg.Storage.ResultDir, store)
	m.Now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return m
}

func testTarget(players, index int, people ...pose.Person) database.StoredTarget {
	t := database.StoredTarget{
		Name:         database.TargetName(players, index),
		Players:      players,
		Index:        index,
		ImagePath:    database.TargetName(players, index) + ".jpg",
		SourceWidth:  200,
		SourceHeight: 320,
	}
	for slot, p := range people {
		vec, _ := pose.Normalize(p)
		t.People = append(t.People, database.TargetPerson{
			Slot:      slot,
			Keypoints: p,
			Vector:    vec.Float32(),
			Score:     0.9,
		})
	}
	return t
}

func standing() pose.Person {
	return pose.Person{
		{Name: "nose", X: 100, Y: 40, Score: 0.9},
		{Name: "left_shoulder", X: 120, Y: 80, Score: 0.9},
		{Name: "right_shoulder", X: 80, Y: 80, Score: 0.9},
		{Name: "left_elbow", X: 130, Y: 120, Score: 0.9},
		{Name: "right_elbow", X: 70, Y: 120, Score: 0.9},
		{Name: "left_wrist", X: 135, Y: 160, Score: 0.9},
		{Name: "right_wrist", X: 65, Y: 160, Score: 0.9},
		{Name: "left_hip", X: 115, Y: 180, Score: 0.9},
		{Name: "right_hip", X: 85, Y: 180, Score: 0.9},
		{Name: "left_knee", X: 115, Y: 240, Score: 0.9},
		{Name: "right_knee", X: 85, Y: 240, Score: 0.9},
		{Name: "left_ankle", X: 115, Y: 300, Score: 0.9},
		{Name: "right_ankle", X: 85, Y: 300, Score: 0.9},
	}
}

func armsUp() pose.Person {
	p := standing()
	for i, kp := range p {
		switch kp.Name {
		case "left_elbow":
			p[i].X, p[i].Y = 140, 40
		case "right_elbow":
			p[i].X, p[i].Y = 60, 40
		case "left_wrist":
			p[i].X, p[i].Y = 145, 0
		case "right_wrist":
			p[i].X, p[i].Y = 55, 0
		}
	}
	return p
}

func testMetrics() *metrics.Metrics {
	return metrics.New(nil)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON encoded body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decode unmarshals the recorded response body into v.
func decode(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body %q)", err, recorder.Body.String())
	}
}
