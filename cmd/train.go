package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/sentinel/internal/output"
	"github.com/joescharf/sentinel/internal/store"
	"github.com/joescharf/sentinel/internal/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the feedback, priority and acceptance models",
	Long: `Train the three classifiers on a dataset file, print a classification
report for each, and write the artifacts the prediction server loads.

Each run is recorded in the run registry (see 'sentinel runs').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagOverrides(cmd, map[string]string{
			"data":      "dataset_path",
			"artifacts": "artifact_dir",
			"search":    "train.search",
			"workers":   "train.workers",
		})
		_, err := trainRun(cmd.Context())
		return err
	},
}

func init() {
	trainCmd.Flags().StringP("data", "d", "", "Dataset CSV path (default <data_dir>/synthetic_pr_data.csv)")
	trainCmd.Flags().String("artifacts", "", "Artifact directory (default <data_dir>/artifacts)")
	trainCmd.Flags().Bool("search", true, "Cross-validated grid search")
	trainCmd.Flags().Int("workers", 0, "Parallel fit workers (default number of CPUs)")
	rootCmd.AddCommand(trainCmd)
}

func trainConfig() trainer.Config {
	cfg := trainer.DefaultConfig()
	cfg.ArtifactDir = viper.GetString("artifact_dir")
	cfg.Seed = viper.GetUint64("train.seed")
	cfg.TestSize = viper.GetFloat64("train.test_size")
	cfg.CVFolds = viper.GetInt("train.cv_folds")
	cfg.Search = viper.GetBool("train.search")
	cfg.Workers = viper.GetInt("train.workers")
	cfg.DryRun = dryRun
	return cfg
}

func trainRun(ctx context.Context) (*trainer.Result, error) {
	var st store.Store
	if s, err := getStore(); err != nil {
		ui.Warning("Run registry unavailable, training without recording: %v", err)
	} else {
		st = s
	}

	path := viper.GetString("dataset_path")
	res, err := trainer.New(trainConfig(), ui, st).Train(ctx, path)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Target", "Model", "Best Params", "CV", "Accuracy", "Weighted F1"})
	for _, tr := range res.Targets {
		cv := "-"
		if tr.CVScore > 0 {
			cv = output.ScoreColor(tr.CVScore)
		}
		_ = table.Append([]string{
			tr.Target,
			tr.ModelKind,
			fmt.Sprintf("%v", tr.BestParams),
			cv,
			output.ScoreColor(tr.Report.Accuracy),
			output.ScoreColor(tr.Report.WeightedAvg.F1),
		})
	}
	_ = table.Render()

	if res.RunID != "" {
		ui.Info("Recorded run %s", output.Cyan(res.RunID))
	}
	return res, nil
}
