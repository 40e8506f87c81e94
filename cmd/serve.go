package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/pose-match/internal/ai"
	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/game"
	"github.com/kozaktomas/pose-match/internal/metrics"
	"github.com/kozaktomas/pose-match/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the game server",
	Long: `Start the Pose Match web server.
The server runs game sessions, scores live detections against the round
target, stores captures, videos and results, and exposes Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().String("provider", "", "Extraction backend for /api/v1/extract: openai, gemini, ollama (disabled when empty)")
}

// saveHNSWIndex saves the target HNSW index to disk during shutdown.
func saveHNSWIndex() {
	if rebuilder := database.GetTargetHNSWRebuilder(); rebuilder != nil {
		if err := rebuilder.SaveHNSWIndex(); err != nil {
			fmt.Printf("Warning: failed to save target HNSW index: %v\n", err)
		} else {
			fmt.Println("Target HNSW index saved to disk")
		}
	}
}

// resolveServeHostPort applies the command line overrides to the web config.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.pool.Close()

	initTargetHNSW(ctx, repos.targets, cfg.Database.HNSWIndexPath)
	if count, err := repos.targets.CountTargets(ctx); err == nil {
		fmt.Printf("Targets available: %d\n", count)
	}

	var extractor ai.Extractor
	if provider := mustGetString(cmd, "provider"); provider != "" {
		ex, err := newExtractor(ctx, cfg, provider, cfg.Game.MinKeypointConfidence)
		if err != nil {
			return err
		}
		extractor = ex
		fmt.Printf("Server side extraction enabled (%s)\n", ex.Name())
	}

	manager := game.NewManager(cfg.Game, cfg.Storage.ResultDir, repos.targets)
	go manager.RunJanitor(ctx, time.Minute, cfg.Game.SessionIdleTimeout())
	m := metrics.New(manager.Count)
	server := web.NewServer(cfg, manager, m, extractor)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveHNSWIndex()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Pose Match on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Printf("Results in %s, targets in %s\n", cfg.Storage.ResultDir, cfg.Storage.TargetDir)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
