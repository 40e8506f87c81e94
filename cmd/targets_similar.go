package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/database"
	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/posematch"
	"github.com/spf13/cobra"
)

var targetsSimilarCmd = &cobra.Command{
	Use:   "similar <pose.json>",
	Short: "Find stored target people with a similar pose",
	Long: `Normalize every person of a pose file and list the stored target people
closest to each, using the HNSW index over target pose vectors.

Examples:
  pose-match targets similar capture.multi.json
  pose-match targets similar me.json --limit 5 --no-hnsw`,
	Args: cobra.ExactArgs(1),
	RunE: runTargetsSimilar,
}

func init() {
	targetsCmd.AddCommand(targetsSimilarCmd)

	targetsSimilarCmd.Flags().Int("limit", 10, "Number of matches per person")
	targetsSimilarCmd.Flags().Bool("no-hnsw", false, "Search with PostgreSQL instead of the in-memory index")
}

func runTargetsSimilar(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	noHNSW := mustGetBool(cmd, "no-hnsw")

	people, err := readPeople(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	ctx := context.Background()

	repos, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.pool.Close()

	if !noHNSW {
		initTargetHNSW(ctx, repos.targets, cfg.Database.HNSWIndexPath)
	}

	for i, p := range people {
		vec, ok := pose.Normalize(p)
		if !ok {
			fmt.Printf("\nPerson #%d: no full torso, skipped\n", i)
			continue
		}

		matches, distances, err := repos.targets.FindSimilarPeople(ctx, vec.Float32(), limit)
		if err != nil {
			return fmt.Errorf("similarity search failed: %w", err)
		}

		fmt.Printf("\nPerson #%d:\n", i)
		if len(matches) == 0 {
			fmt.Println("  no targets stored")
			continue
		}
		for j, m := range matches {
			score := database.DistanceToScore(distances[j])
			fmt.Printf("  %-8s slot %d  %3d%%  (distance %.4f)\n",
				m.TargetName, m.Slot, posematch.Percent(score), distances[j])
		}
	}
	return nil
}
