package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/sentinel/internal/dataset"
	"github.com/joescharf/sentinel/internal/models"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic pull request dataset",
	Long: `Generate a synthetic pull request dataset as CSV.

The "rules" strategy (default) derives feedback_score, priority and accepted
from the sampled features. The "random" strategy samples every column
independently. A file always holds exactly one strategy. An existing file at
the output path is replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagOverrides(cmd, map[string]string{
			"rows":     "generate.rows",
			"seed":     "generate.seed",
			"strategy": "generate.strategy",
			"output":   "dataset_path",
		})
		return generateRun()
	},
}

func init() {
	generateCmd.Flags().IntP("rows", "r", 5000, "Number of rows to generate")
	generateCmd.Flags().Uint64("seed", 42, "Random seed")
	generateCmd.Flags().String("strategy", "rules", "Label strategy: rules or random")
	generateCmd.Flags().StringP("output", "o", "", "Output CSV path (default <data_dir>/synthetic_pr_data.csv)")
	rootCmd.AddCommand(generateCmd)
}

func generateRun() error {
	rows := viper.GetInt("generate.rows")
	if rows < 1 {
		return fmt.Errorf("rows must be positive, got %d", rows)
	}
	strategy, err := dataset.ParseStrategy(viper.GetString("generate.strategy"))
	if err != nil {
		return err
	}
	seed := viper.GetUint64("generate.seed")
	path := viper.GetString("dataset_path")

	if dryRun {
		ui.DryRunMsg("Would write %d %s rows (seed %d) to %s", rows, strategy, seed, path)
		return nil
	}

	records := dataset.Generate(rows, strategy, seed)
	if err := dataset.WriteCSV(path, records); err != nil {
		return err
	}
	ui.Success("Wrote %d rows to %s (strategy %s, seed %d)", len(records), path, strategy, seed)

	if verbose {
		printLabelSummary(records)
	}
	return nil
}

// printLabelSummary shows the class balance of each label column.
func printLabelSummary(records []models.PullRequestRecord) {
	priority := map[models.Priority]int{}
	feedback := map[models.FeedbackLabel]int{}
	accepted := 0
	for i := range records {
		r := &records[i]
		priority[r.Priority]++
		feedback[r.FeedbackLabel()]++
		if r.Accepted {
			accepted++
		}
	}

	table := ui.Table([]string{"Label", "Class", "Count"})
	for _, p := range []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical} {
		_ = table.Append([]string{"priority", string(p), fmt.Sprintf("%d", priority[p])})
	}
	for _, f := range []models.FeedbackLabel{models.FeedbackReject, models.FeedbackMajor, models.FeedbackMinor} {
		_ = table.Append([]string{"feedback", string(f), fmt.Sprintf("%d", feedback[f])})
	}
	_ = table.Append([]string{"accepted", "1", fmt.Sprintf("%d", accepted)})
	_ = table.Append([]string{"accepted", "0", fmt.Sprintf("%d", len(records)-accepted)})
	_ = table.Render()
}
