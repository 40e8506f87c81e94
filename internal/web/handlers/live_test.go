package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kozaktomas/pose-match/internal/game"
	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/web/middleware"
)

type liveEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readUntil reads messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) liveEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var ev liveEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %q: %v", eventType, err)
		}
		if ev.Type == eventType {
			return ev
		}
	}
}

func TestLiveHandler_Serve(t *testing.T) {
	cfg := testConfig(t)
	store, _ := setupDatabase(t)
	manager := newTestManager(t, cfg, store)
	m := testMetrics()
	handler := NewLiveHandler(manager, m, middleware.OriginChecker(nil))

	s, err := manager.Start(t.Context(), game.Options{Players: 1, Photos: 1})
	if err != nil {
		t.Fatal(err)
	}

	router := chi.NewRouter()
	router.Get("/sessions/{id}/live", handler.Serve)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + s.ID.String() + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	var state game.State
	if err := json.Unmarshal(readUntil(t, conn, "status").Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.ID != s.ID || state.Round == nil || state.Round.Target != "1/1" {
		t.Errorf("initial status = %+v", state)
	}

	if err := conn.WriteJSON(LiveMessage{Type: "detection", People: []pose.Person{standing()}}); err != nil {
		t.Fatal(err)
	}
	var tick game.Tick
	if err := json.Unmarshal(readUntil(t, conn, game.EventScore).Data, &tick); err != nil {
		t.Fatal(err)
	}
	if tick.Percent != 100 || tick.Best != 100 {
		t.Errorf("tick = %+v, want 100%%", tick)
	}
	if m.LiveClients.Load() != 1 {
		t.Errorf("LiveClients = %d, want 1", m.LiveClients.Load())
	}

	if err := conn.WriteJSON(LiveMessage{Type: "status"}); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(readUntil(t, conn, "status").Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.Best != 100 {
		t.Errorf("status Best = %d, want 100", state.Best)
	}

	if err := conn.WriteJSON(LiveMessage{Type: "countdown"}); err != nil {
		t.Fatal(err)
	}
	var left int
	if err := json.Unmarshal(readUntil(t, conn, game.EventCountdown).Data, &left); err != nil {
		t.Fatal(err)
	}
	if left != manager.Rules().CountdownSeconds {
		t.Errorf("first countdown tick = %d, want %d", left, manager.Rules().CountdownSeconds)
	}

	if _, err := s.Finish(); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, game.EventFinished)

	// The server hangs up once the game is over.
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Fatalf("expected a normal close after finish, got %v", err)
		}
		break
	}
	waitFor(t, func() bool { return m.LiveClients.Load() == 0 })
}

func TestLiveHandler_FinishedSessionClosesImmediately(t *testing.T) {
	cfg := testConfig(t)
	store, _ := setupDatabase(t)
	manager := newTestManager(t, cfg, store)
	m := testMetrics()

	s, err := manager.Start(t.Context(), game.Options{Players: 1, Photos: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Finish(); err != nil {
		t.Fatal(err)
	}

	conn := dialLive(t, NewLiveHandler(manager, m, middleware.OriginChecker(nil)), s.ID.String(), nil)
	defer conn.Close()

	readUntil(t, conn, "status")
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected a normal close, got %v", err)
	}
	waitFor(t, func() bool { return m.LiveClients.Load() == 0 })
}

func TestLiveHandler_RejectsForeignOrigin(t *testing.T) {
	cfg := testConfig(t)
	store, _ := setupDatabase(t)
	manager := newTestManager(t, cfg, store)
	m := testMetrics()
	handler := NewLiveHandler(manager, m, middleware.OriginChecker([]string{"https://booth.example"}))

	s, err := manager.Start(t.Context(), game.Options{Players: 1, Photos: 1})
	if err != nil {
		t.Fatal(err)
	}

	router := chi.NewRouter()
	router.Get("/sessions/{id}/live", handler.Serve)
	server := httptest.NewServer(router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + s.ID.String() + "/live"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"foreign origin", "https://evil.example", false},
		{"configured origin", "https://booth.example", true},
		{"same host", server.URL, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{"Origin": []string{tc.origin}}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if !tc.ok {
				if err == nil {
					conn.Close()
					t.Fatal("expected the handshake to be refused")
				}
				if resp == nil || resp.StatusCode != http.StatusForbidden {
					t.Fatalf("expected status %d, got %v", http.StatusForbidden, resp)
				}
				return
			}
			if err != nil {
				t.Fatalf("dial failed: %v", err)
			}
			conn.Close()
		})
	}
	waitFor(t, func() bool { return m.LiveClients.Load() == 0 })
}

// dialLive serves handler on a test server and opens the live socket of session id.
func dialLive(t *testing.T, handler *LiveHandler, id string, header http.Header) *websocket.Conn {
	t.Helper()
	router := chi.NewRouter()
	router.Get("/sessions/{id}/live", handler.Serve)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + id + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

// waitFor polls cond until it holds or a few seconds pass.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLiveHandler_UnknownSession(t *testing.T) {
	cfg := testConfig(t)
	store, _ := setupDatabase(t)
	handler := NewLiveHandler(newTestManager(t, cfg, store), testMetrics(), middleware.OriginChecker(nil))

	recorder := httptest.NewRecorder()
	handler.Serve(recorder, withID(httptest.NewRequest("GET", "/", nil), "7f1c1a3e-9a54-4a36-8f5b-0f6a3c2b9d11"))

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}
}
