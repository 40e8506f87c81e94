package cmd

import (
	"fmt"
	"image"
	"os"

	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/render"
	"github.com/spf13/cobra"
)

var targetsPreviewCmd = &cobra.Command{
	Use:   "preview <image> <pose.json> <out.png>",
	Short: "Draw the skeletons of a pose file over its image",
	Long: `Draw every person of a pose file over the image and write a PNG. People
are colored by position, left to right: green, blue, pink, yellow.

Use --blank to draw on a transparent canvas of the recorded source size
instead of the image (pass "-" as image).`,
	Args: cobra.ExactArgs(3),
	RunE: runTargetsPreview,
}

func init() {
	targetsCmd.AddCommand(targetsPreviewCmd)

	targetsPreviewCmd.Flags().Bool("blank", false, "Draw on a transparent canvas")
}

func runTargetsPreview(cmd *cobra.Command, args []string) error {
	blank := mustGetBool(cmd, "blank")
	imagePath, posePath, outPath := args[0], args[1], args[2]

	f, err := pose.ReadFile(posePath)
	if err != nil {
		return err
	}
	people := f.Persons()

	var img image.Image
	if blank {
		size, ok := f.Size()
		if !ok {
			return fmt.Errorf("%s records no source size", posePath)
		}
		img = render.Blank(size, people)
	} else {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		overlay, err := render.Overlay(data, people)
		if err != nil {
			return err
		}
		img = overlay
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := render.WritePNG(out, img); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Drew %d people to %s\n", len(people), outPath)
	return nil
}
