package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/targets"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var targetsExtractCmd = &cobra.Command{
	Use:   "extract [dir]",
	Short: "Detect keypoints in target images",
	Long: `Run a keypoint extraction backend over every target image under dir
(default TARGET_DIR) and write <index>.json (best person) and
<index>.multi.json (everyone, ordered left to right).

Images without detectable people are moved to <dir>/failed together with any
pose files they had. Images that already have pose files are skipped unless
--overwrite is given.

Examples:
  pose-match targets extract --provider openai
  pose-match targets extract ./matching/2 --provider ollama --min-conf 0.5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTargetsExtract,
}

func init() {
	targetsCmd.AddCommand(targetsExtractCmd)

	targetsExtractCmd.Flags().String("provider", "openai", providerUsage)
	targetsExtractCmd.Flags().Float64("min-conf", 0, "Minimum person confidence (default from game rules)")
	targetsExtractCmd.Flags().Bool("overwrite", false, "Replace existing pose files")
	targetsExtractCmd.Flags().Int("concurrency", 2, "Number of images processed in parallel")
}

func runTargetsExtract(cmd *cobra.Command, args []string) error {
	provider := mustGetString(cmd, "provider")
	minConf := mustGetFloat64(cmd, "min-conf")
	overwrite := mustGetBool(cmd, "overwrite")
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)

	cfg := config.Load()
	if minConf <= 0 {
		minConf = cfg.Game.MinKeypointConfidence
	}
	root := targetDirArg(cfg, args)
	failedDir := filepath.Join(root, targets.FailedDir)

	// Set up context with signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nCancelling...")
		cancel()
	}()

	extractor, err := newExtractor(ctx, cfg, provider, minConf)
	if err != nil {
		return err
	}

	images, err := targets.Scan(root)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Printf("No target images found in %s\n", root)
		return nil
	}
	fmt.Printf("Backend: %s, min confidence %.2f\n", extractor.Name(), minConf)
	fmt.Printf("Failed images go to %s\n", failedDir)
	fmt.Printf("Images: %d\n\n", len(images))

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Extracting keypoints"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var written, existing int
	var failures []string
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, img := range images {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(img targets.Image) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := targets.Extract(ctx, extractor, img, failedDir, overwrite)

			mu.Lock()
			switch {
			case err == nil:
				written++
			case errors.Is(err, targets.ErrPoseExists):
				existing++
			case ctx.Err() == nil:
				failures = append(failures, err.Error())
			}
			mu.Unlock()
			_ = bar.Add(1)
		}(img)
	}
	wg.Wait()
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("  failed: %s\n", f)
	}
	fmt.Printf("Done: %d extracted, %d already had pose files, %d moved to failed\n",
		written, existing, len(failures))
	printUsage(extractor)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
