package cmd

import (
	"fmt"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/targets"
	"github.com/spf13/cobra"
)

var targetsDuplicatesCmd = &cobra.Command{
	Use:   "duplicates [dir]",
	Short: "Find near-duplicate target images",
	Long: `Compare the perceptual hashes of all target images with the same player
count and list pairs that look nearly the same. Duplicates make the same pose
come up twice in one game.

Examples:
  pose-match targets duplicates
  pose-match targets duplicates ./matching --threshold 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTargetsDuplicates,
}

func init() {
	targetsCmd.AddCommand(targetsDuplicatesCmd)

	targetsDuplicatesCmd.Flags().Int("threshold", targets.DefaultDuplicateThreshold, "Maximum differing hash bits (0-64)")
}

func runTargetsDuplicates(cmd *cobra.Command, args []string) error {
	threshold := mustGetInt(cmd, "threshold")
	if threshold < 0 || threshold > 64 {
		return fmt.Errorf("threshold must be between 0 and 64, got %d", threshold)
	}

	cfg := config.Load()
	root := targetDirArg(cfg, args)

	images, err := targets.Scan(root)
	if err != nil {
		return err
	}
	fmt.Printf("Hashing %d target images in %s\n", len(images), root)

	dups, errs := targets.FindDuplicates(images, threshold)
	for _, err := range errs {
		fmt.Printf("  skipped: %v\n", err)
	}

	if len(dups) == 0 {
		fmt.Println("No duplicates found")
		return nil
	}
	for _, d := range dups {
		fmt.Printf("  %-8s %-8s distance %d\n", d.A.Name(), d.B.Name(), d.Distance)
	}
	fmt.Printf("%d duplicate pairs\n", len(dups))
	return nil
}
