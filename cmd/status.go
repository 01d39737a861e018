package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/sentinel/internal/health"
	"github.com/joescharf/sentinel/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset, artifact and training health",
	Long: `Show a health dashboard for this installation.

Checks that the dataset and every model artifact exist, that the artifacts
were trained after the dataset was last written, and how the most recent
training run went.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(ctx context.Context) error {
	datasetPath := viper.GetString("dataset_path")
	artifactDir := viper.GetString("artifact_dir")

	meta := health.Gather(datasetPath, artifactDir)

	if s, err := getStore(); err != nil {
		ui.Warning("Run history unavailable: %v", err)
	} else if runs, err := s.ListRuns(ctx, 1); err != nil {
		return err
	} else if len(runs) > 0 {
		meta.LastRun = runs[0]
		evals, err := s.ListEvaluations(ctx, runs[0].ID)
		if err != nil {
			return err
		}
		meta.LatestEvaluations = evals
	}

	h := health.NewScorer().Score(meta)

	table := ui.Table([]string{"Check", "State", "Points"})
	_ = table.Append([]string{"Dataset", presence(!meta.DatasetModTime.IsZero(), meta.DatasetModTime), fmt.Sprintf("%d/10", h.Dataset)})
	_ = table.Append([]string{"Artifacts", fmt.Sprintf("%d/%d files", meta.ArtifactsPresent, meta.ArtifactsTotal), fmt.Sprintf("%d/30", h.Artifacts)})
	_ = table.Append([]string{"Freshness", presence(!meta.OldestArtifact.IsZero(), meta.OldestArtifact), fmt.Sprintf("%d/20", h.Freshness)})
	lastRun := "-"
	if meta.LastRun != nil {
		lastRun = fmt.Sprintf("%s %s", output.StatusColor(string(meta.LastRun.Status)), timeAgo(meta.LastRun.StartedAt))
	}
	_ = table.Append([]string{"Last run", lastRun, fmt.Sprintf("%d/15", h.LastRun)})
	_ = table.Append([]string{"Accuracy", fmt.Sprintf("%d targets", len(meta.LatestEvaluations)), fmt.Sprintf("%d/25", h.Accuracy)})
	_ = table.Render()

	ui.Info("Health: %s/100", output.HealthColor(h.Total))

	server := "not running"
	if pid, running := pidFile().IsRunning(); running {
		server = fmt.Sprintf("running (PID %d)", pid)
	}
	ui.Info("Server: %s", server)
	return nil
}

func presence(ok bool, t time.Time) string {
	if !ok {
		return output.Red("missing")
	}
	return timeAgo(t)
}

// timeAgo returns a human-readable relative time string.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
