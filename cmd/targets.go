package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage target images and their poses",
	Long: `Manage the target images players imitate.

Targets live under TARGET_DIR as <players>/<index>.jpg, each with .json and
.multi.json pose files. Use 'extract' to create the pose files with a model
backend and 'import' to store them in PostgreSQL for the game.`,
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored targets",
	Args:  cobra.NoArgs,
	RunE:  runTargetsList,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.AddCommand(targetsListCmd)

	targetsListCmd.Flags().Int("players", 0, "Only list targets for this player count")
	targetsListCmd.Flags().Bool("json", false, "Output as JSON")
}

// targetDirArg returns the directory argument or the configured target dir.
func targetDirArg(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Storage.TargetDir
}

type targetListItem struct {
	Name   string `json:"name"`
	Image  string `json:"image"`
	People int    `json:"people"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func runTargetsList(cmd *cobra.Command, args []string) error {
	players := mustGetInt(cmd, "players")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	ctx := context.Background()

	repos, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.pool.Close()

	targets, err := repos.targets.ListTargets(ctx, players)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	items := make([]targetListItem, len(targets))
	for i, t := range targets {
		items[i] = targetListItem{
			Name:   t.Name,
			Image:  t.ImagePath,
			People: len(t.People),
			Width:  t.SourceWidth,
			Height: t.SourceHeight,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("No targets stored. Run 'pose-match targets import' first.")
		return nil
	}

	fmt.Printf("%-8s %-7s %-11s %s\n", "NAME", "PEOPLE", "SIZE", "IMAGE")
	perPlayers := make(map[int]int)
	for i, it := range items {
		fmt.Printf("%-8s %-7d %-11s %s\n", it.Name, it.People, fmt.Sprintf("%dx%d", it.Width, it.Height), it.Image)
		perPlayers[targets[i].Players]++
	}

	fmt.Println()
	for n := 1; n <= cfg.Game.MaxPlayers; n++ {
		pool := cfg.Game.PoolSize(n)
		marker := ""
		if perPlayers[n] < pool {
			marker = "  (missing targets)"
		}
		fmt.Printf("%d players: %d stored, pool size %d%s\n", n, perPlayers[n], pool, marker)
	}
	return nil
}
