package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sentinel/internal/ml"
	"github.com/joescharf/sentinel/internal/models"
	"github.com/joescharf/sentinel/internal/output"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List training runs or show one run's evaluations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return runsShowRun(cmd.Context(), args[0])
		}
		return runsListRun(cmd.Context())
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "l", 20, "Maximum number of runs to list (0 for all)")
	rootCmd.AddCommand(runsCmd)
}

func runsListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	runs, err := s.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No training runs recorded. Run 'sentinel train' first.")
		return nil
	}

	table := ui.Table([]string{"ID", "Started", "Status", "Rows", "Feedback", "Priority", "Accept"})
	for _, r := range runs {
		evals, err := s.ListEvaluations(ctx, r.ID)
		if err != nil {
			return err
		}
		acc := map[string]string{}
		for _, e := range evals {
			acc[e.Target] = output.ScoreColor(e.Accuracy)
		}
		_ = table.Append([]string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			output.StatusColor(string(r.Status)),
			fmt.Sprintf("%d", r.Rows),
			orDash(acc["feedback"]),
			orDash(acc["priority"]),
			orDash(acc["accept"]),
		})
	}
	_ = table.Render()
	return nil
}

func runsShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan("Run"), run.ID)
	fmt.Fprintf(ui.Out, "  Status:    %s\n", output.StatusColor(string(run.Status)))
	fmt.Fprintf(ui.Out, "  Dataset:   %s (%d rows)\n", run.DatasetPath, run.Rows)
	fmt.Fprintf(ui.Out, "  Artifacts: %s\n", run.ArtifactDir)
	fmt.Fprintf(ui.Out, "  Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(ui.Out, "  Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Status == models.RunStatusFailed {
		fmt.Fprintf(ui.Out, "  Error:     %s\n", output.Red(run.Error))
	}

	evals, err := s.ListEvaluations(ctx, run.ID)
	if err != nil {
		return err
	}
	for _, e := range evals {
		var report ml.Report
		if err := json.Unmarshal([]byte(e.Report), &report); err != nil {
			ui.Warning("%s: unreadable report: %v", e.Target, err)
			continue
		}
		ui.Report(fmt.Sprintf("%s (%s) params %v", e.Target, e.ModelKind, e.BestParams), &report)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
