// Package metrics exposes game and scoring metrics for Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	FramesScored     prometheus.Counter
	FramesSkipped    prometheus.Counter
	PeopleDropped    prometheus.Counter
	Score            prometheus.Histogram
	NewBests         prometheus.Counter
	Captures         prometheus.Counter
	SessionsStarted  prometheus.Counter
	SessionsFinished prometheus.Counter
	ExtractDuration  *prometheus.HistogramVec
	ExtractErrors    *prometheus.CounterVec

	// LiveClients counts open live scoring sockets and event streams.
	LiveClients atomic.Int64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry. activeSessions is
// sampled at scrape time; nil reports zero.
func New(activeSessions func() int) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FramesScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posematch_frames_scored_total",
		Help: "Detections scored against a target",
	})
	m.FramesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posematch_frames_skipped_total",
		Help: "Detections not scored because nobody was in the frame or no target was loaded",
	})
	m.PeopleDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posematch_people_dropped_total",
		Help: "Observed people left out of matching because their torso was not detected",
	})
	m.Score = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "posematch_score",
		Help:    "Match scores in [0, 1]",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})
	m.NewBests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posematch_new_best_total",
		Help: "Times a session reached a new best accuracy",
	})
	m.Captures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posematch_captures_total",
		Help: "Round photos captured",
	})
	m.SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posematch_sessions_started_total",
		Help: "Game sessions started",
	})
	m.SessionsFinished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posematch_sessions_finished_total",
		Help: "Game sessions finished",
	})
	m.ExtractDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posematch_extract_duration_seconds",
		Help:    "Keypoint extraction latency by backend",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	}, []string{"backend"})
	m.ExtractErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posematch_extract_errors_total",
		Help: "Failed keypoint extractions by backend",
	}, []string{"backend"})

	m.registry.MustRegister(
		m.FramesScored,
		m.FramesSkipped,
		m.PeopleDropped,
		m.Score,
		m.NewBests,
		m.Captures,
		m.SessionsStarted,
		m.SessionsFinished,
		m.ExtractDuration,
		m.ExtractErrors,
	)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "posematch_active_sessions",
			Help: "Sessions currently held by the server",
		},
		func() float64 {
			if activeSessions == nil {
				return 0
			}
			return float64(activeSessions())
		},
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "posematch_live_clients",
			Help: "Open live scoring connections",
		},
		func() float64 { return float64(m.LiveClients.Load()) },
	))

	return m
}

// ObserveScore records one scored detection.
func (m *Metrics) ObserveScore(score float64, dropped int, newBest bool) {
	m.FramesScored.Inc()
	m.Score.Observe(score)
	if dropped > 0 {
		m.PeopleDropped.Add(float64(dropped))
	}
	if newBest {
		m.NewBests.Inc()
	}
}

// ObserveExtract records a keypoint extraction started at start.
func (m *Metrics) ObserveExtract(backend string, start time.Time, err error) {
	m.ExtractDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		m.ExtractErrors.WithLabelValues(backend).Inc()
	}
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
