package handlers

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/pose-match/internal/game"
	"github.com/kozaktomas/pose-match/internal/metrics"
	"github.com/kozaktomas/pose-match/internal/pose"
)

// closeWait bounds how long the close frame may take to write.
const closeWait = time.Second

// Message types on the live socket.
const (
	liveDetection = "detection"
	liveStatus    = "status"
	liveCountdown = "countdown"
)

// LiveMessage is sent by the browser: the people detected in its newest frame.
type LiveMessage struct {
	Type   string        `json:"type"`
	People []pose.Person `json:"people,omitempty"`
}

// LiveHandler runs the live scoring loop of a session over a websocket.
type LiveHandler struct {
	manager  *game.Manager
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new live handler. checkOrigin decides which pages
// may open the socket.
func NewLiveHandler(manager *game.Manager, m *metrics.Metrics, checkOrigin func(r *http.Request) bool) *LiveHandler {
	return &LiveHandler{
		manager: manager,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type liveClient struct {
	conn *websocket.Conn
	send chan any
}

// push queues msg for the writer. Messages are dropped while the client is
// behind; the next score supersedes them anyway.
func (c *liveClient) push(msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

// pushWait queues a message that must not be dropped, waiting up to timeout
// for room.
func (c *liveClient) pushWait(msg any, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.send <- msg:
	case <-timer.C:
	}
}

// writePump writes queued messages until ctx ends, then flushes what is
// left, says goodbye and closes the connection so readPump returns.
func (c *liveClient) writePump(ctx context.Context) {
	defer c.conn.Close()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ctx.Done():
			for {
				select {
				case msg := <-c.send:
					if err := c.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
					_ = c.conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(closeWait))
					return
				}
			}
		}
	}
}

// readPump stores detections until the connection fails. A countdown request
// starts the capture countdown unless one is already running.
func (c *liveClient) readPump(ctx context.Context, s *game.Session, seconds int) {
	var counting sync.Mutex
	for {
		var msg LiveMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case liveDetection:
			s.Latest.Store(msg.People)
		case liveStatus:
			c.push(game.Event{Type: liveStatus, Data: s.Snapshot()})
		case liveCountdown:
			if !counting.TryLock() {
				continue
			}
			go func() {
				defer counting.Unlock()
				_ = s.RunCountdown(ctx, seconds, time.Second)
			}()
		default:
			// ignore unknown types
		}
	}
}

// Serve handles GET /sessions/{id}/live. Detections are scored at the
// configured refresh rate and session events are pushed back to the client.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	s, err := h.manager.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade error:", err)
		return
	}

	h.metrics.LiveClients.Add(1)
	defer h.metrics.LiveClients.Add(-1)

	ctx, cancel := context.WithCancel(r.Context())
	events := s.AddListener()

	client := &liveClient{conn: conn, send: make(chan any, 8)}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump(ctx)
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		loop := game.NewScoreLoop(&s.Latest, s, h.manager.Rules().RefreshFPS)
		_ = loop.Run(ctx, func(t game.Tick) {
			h.metrics.ObserveScore(t.Score, len(t.Dropped), t.NewBest)
		})
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Type == game.EventFinished {
					client.pushWait(event, closeWait)
					cancel()
					return
				}
				client.push(event)
			}
		}
	}()

	client.push(game.Event{Type: liveStatus, Data: s.Snapshot()})
	if s.Finished() {
		cancel()
	}
	client.readPump(ctx, s, h.manager.Rules().CountdownSeconds)

	cancel()
	wg.Wait()
	<-writerDone
	s.RemoveListener(events)
}
