package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pose-match",
	Short: "A motion matching game scored by pose similarity",
	Long: `Pose Match runs a motion matching game: players imitate target images in
front of a camera and are scored by how closely their poses match.

It serves the game, scores poses offline and manages the target image set
(keypoint extraction with OpenAI, Gemini or Ollama, import into PostgreSQL).`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
