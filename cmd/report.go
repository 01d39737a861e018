package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sentinel/internal/models"
	"github.com/joescharf/sentinel/internal/store"
)

var (
	reportFormat string
	exportType   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export training history as JSON, CSV, or Markdown",
	Long:  "Export recorded training runs or per-target evaluations in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "runs", "Data type: runs, evaluations")
	rootCmd.AddCommand(exportCmd)
}

func exportRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	switch exportType {
	case "runs":
		return exportRuns(ctx, s)
	case "evaluations":
		return exportEvaluations(ctx, s)
	default:
		return fmt.Errorf("unknown export type: %s (use: runs, evaluations)", exportType)
	}
}

func exportRuns(ctx context.Context, s store.Store) error {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Status", "Dataset", "Rows", "Started", "Finished", "Error"})
		for _, r := range runs {
			_ = w.Write([]string{r.ID, string(r.Status), r.DatasetPath, strconv.Itoa(r.Rows),
				r.StartedAt.Format(time.RFC3339), finishedAt(r), r.Error})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Training Runs")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| ID | Status | Rows | Started |")
		fmt.Fprintln(ui.Out, "|----|--------|------|---------|")
		for _, r := range runs {
			fmt.Fprintf(ui.Out, "| %s | %s | %d | %s |\n", r.ID, r.Status, r.Rows, r.StartedAt.Format(time.DateTime))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportEvaluations(ctx context.Context, s store.Store) error {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return err
	}
	var evals []*models.ModelEvaluation
	for _, r := range runs {
		e, err := s.ListEvaluations(ctx, r.ID)
		if err != nil {
			return err
		}
		evals = append(evals, e...)
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(evals)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"RunID", "Target", "Model", "CVScore", "Accuracy", "WeightedF1"})
		for _, e := range evals {
			_ = w.Write([]string{e.RunID, e.Target, e.ModelKind,
				formatScore(e.CVScore), formatScore(e.Accuracy), formatScore(e.WeightedF1)})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Model Evaluations")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Run | Target | Model | Accuracy | Weighted F1 |")
		fmt.Fprintln(ui.Out, "|-----|--------|-------|----------|-------------|")
		for _, e := range evals {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %.3f | %.3f |\n", e.RunID, e.Target, e.ModelKind, e.Accuracy, e.WeightedF1)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func finishedAt(r *models.TrainingRun) string {
	if r.FinishedAt == nil {
		return ""
	}
	return r.FinishedAt.Format(time.RFC3339)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
