package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/pose-match/internal/config"
	"github.com/kozaktomas/pose-match/internal/targets"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var targetsImportCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Store target poses in the database",
	Long: `Read the pose files of every target image under dir (default TARGET_DIR),
normalize each person and store the feature vectors in PostgreSQL.

Existing targets with the same name are replaced.

Examples:
  pose-match targets import
  pose-match targets import ./result_images/matching --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTargetsImport,
}

func init() {
	targetsCmd.AddCommand(targetsImportCmd)

	targetsImportCmd.Flags().Bool("dry-run", false, "Read pose files without writing to the database")
}

func runTargetsImport(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")

	cfg := config.Load()
	ctx := context.Background()
	root := targetDirArg(cfg, args)

	images, err := targets.Scan(root)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Printf("No target images found in %s\n", root)
		return nil
	}
	fmt.Printf("Found %d target images in %s\n", len(images), root)

	var repos *repositories
	if !dryRun {
		repos, err = openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer repos.pool.Close()
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Importing targets"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("targets"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var imported, skippedPeople int
	var failures []string
	for _, img := range images {
		t, skipped, err := targets.Load(img)
		skippedPeople += skipped
		if err != nil {
			failures = append(failures, err.Error())
			_ = bar.Add(1)
			continue
		}
		if !dryRun {
			if err := repos.targets.SaveTarget(ctx, t); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", img.Rel, err))
				_ = bar.Add(1)
				continue
			}
		}
		imported++
		_ = bar.Add(1)
	}
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("  failed: %s\n", f)
	}
	fmt.Printf("Imported %d targets", imported)
	if dryRun {
		fmt.Printf(" (dry run)")
	}
	fmt.Printf(", %d failed, %d people without a full torso skipped\n", len(failures), skippedPeople)

	if imported == 0 && len(failures) > 0 {
		return errors.New("no targets imported")
	}
	return nil
}
