package web

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/pose-match/internal/web/handlers"
	"github.com/kozaktomas/pose-match/internal/web/middleware"
	"github.com/kozaktomas/pose-match/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config)
	scoreHandler := handlers.NewScoreHandler(s.metrics)
	sessionsHandler := handlers.NewSessionsHandler(s.config, s.manager, s.metrics)
	liveHandler := handlers.NewLiveHandler(s.manager, s.metrics, middleware.OriginChecker(s.config.Web.AllowedOrigins))
	resultsHandler := handlers.NewResultsHandler()
	targetsHandler := handlers.NewTargetsHandler(s.config)
	qrHandler := handlers.NewQRHandler(s.config)
	extractHandler := handlers.NewExtractHandler(s.extractor, s.metrics)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/config", configHandler.Get)
			r.Post("/score", scoreHandler.Score)

			// Sessions
			r.Post("/sessions", sessionsHandler.Start)
			r.Get("/sessions/{id}", sessionsHandler.Get)
			r.Post("/sessions/{id}/frames", sessionsHandler.Frame)
			r.Post("/sessions/{id}/next", sessionsHandler.Next)
			r.Post("/sessions/{id}/capture", sessionsHandler.Capture)
			r.Post("/sessions/{id}/finish", sessionsHandler.Finish)
			r.Get("/sessions/{id}/qr", qrHandler.Session)

			// Results
			r.Get("/results", resultsHandler.List)
			r.Get("/results/latest", resultsHandler.Latest)
			r.Get("/results/{id}", resultsHandler.Get)

			// Targets
			r.Get("/targets", targetsHandler.List)
			r.Get("/targets/{players}/{index}", targetsHandler.Get)
			r.Get("/targets/{players}/{index}/skeleton.png", targetsHandler.Skeleton)
			r.Post("/targets/similar", targetsHandler.Similar)
		})

		// Model extraction can take longer than ordinary calls
		r.Post("/extract", extractHandler.Extract)

		// Long lived: streams and video upload
		r.Get("/sessions/{id}/events", sessionsHandler.Events)
		r.Get("/sessions/{id}/live", liveHandler.Serve)
		r.Post("/sessions/{id}/video", sessionsHandler.Video)
	})

	// Captures, videos and target images
	s.router.Handle("/media/results/*", http.StripPrefix("/media/results/",
		http.FileServer(http.Dir(s.config.Storage.ResultDir))))
	s.router.Handle("/media/targets/*", http.StripPrefix("/media/targets/",
		http.FileServer(http.Dir(s.config.Storage.TargetDir))))

	// Serve static files for frontend (SPA)
	s.router.With(middleware.SecurityHeaders()).Get("/*", s.serveSPA)
}

// serveSPA serves the single-page application
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	p := r.URL.Path
	if p == "/" {
		p = "/index.html"
	}

	if f, err := fs.Open(p); err == nil {
		defer f.Close()
		if stat, err := f.Stat(); err == nil && !stat.IsDir() {
			contentType := mime.TypeByExtension(path.Ext(p))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			w.Header().Set("Content-Type", contentType)

			// Add cache headers for static assets
			if strings.HasPrefix(p, "/assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}

			w.WriteHeader(http.StatusOK)
			_, _ = io.Copy(w, f)
			return
		}
	}

	// For SPA routing, serve index.html for non-asset paths
	if strings.HasPrefix(p, "/assets/") {
		http.NotFound(w, r)
		return
	}
	indexFile, err := fs.Open("/index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer indexFile.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, indexFile)
}
