package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/pose-match/internal/pose"
	"github.com/kozaktomas/pose-match/internal/posematch"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score <observed.json> <target.json>",
	Short: "Score how closely observed poses match a target",
	Long: `Score two pose files (single .json or .multi.json) against each other.

People are matched greedily by pose similarity; the score is the mean of the
matched pairs. With --single only the first person of each file is compared.

Examples:
  pose-match score capture.multi.json result_images/matching/2/7.multi.json
  pose-match score --single me.json result_images/matching/1/3.json
  pose-match score --json a.json b.json`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().Bool("single", false, "Compare only the first person of each file")
	scoreCmd.Flags().Bool("json", false, "Output as JSON")
}

type scoreOutput struct {
	Score       float64                `json:"score"`
	Percent     int                    `json:"percent"`
	Assignments []posematch.Assignment `json:"assignments"`
	DroppedA    []int                  `json:"dropped_observed,omitempty"`
	DroppedB    []int                  `json:"dropped_target,omitempty"`
}

func readPeople(path string) ([]pose.Person, error) {
	f, err := pose.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Persons(), nil
}

func runScore(cmd *cobra.Command, args []string) error {
	single := mustGetBool(cmd, "single")
	jsonOutput := mustGetBool(cmd, "json")

	observed, err := readPeople(args[0])
	if err != nil {
		return err
	}
	target, err := readPeople(args[1])
	if err != nil {
		return err
	}

	var out scoreOutput
	if single {
		var a, b pose.Person
		if len(observed) > 0 {
			a = observed[0]
		}
		if len(target) > 0 {
			b = target[0]
		}
		out.Score = posematch.ScoreSingle(a, b)
		out.Percent = posematch.Percent(out.Score)
	} else {
		r := posematch.Match(observed, target)
		out = scoreOutput{
			Score:       r.Score,
			Percent:     r.Percent(),
			Assignments: r.Assignments,
			DroppedA:    r.DroppedA,
			DroppedB:    r.DroppedB,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Observed: %d people, target: %d people\n", len(observed), len(target))
	for _, a := range out.Assignments {
		fmt.Printf("  observed #%d -> target #%d  %.4f\n", a.A, a.B, a.Score)
	}
	if len(out.DroppedA) > 0 {
		fmt.Printf("Observed people without a full torso: %v\n", out.DroppedA)
	}
	if len(out.DroppedB) > 0 {
		fmt.Printf("Target people without a full torso: %v\n", out.DroppedB)
	}
	fmt.Printf("Score: %.4f (%d%%)\n", out.Score, out.Percent)
	return nil
}
