package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/sentinel/internal/llm"
	"github.com/joescharf/sentinel/internal/output"
	"github.com/joescharf/sentinel/internal/predictor"
)

var (
	predictInputFile string
	predictExplain   bool
	predictFlagVals  = predictor.DefaultInput()
	predictFlagFix   int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict feedback, priority and acceptance for one pull request",
	Long: `Run the trained models once and print the prediction as JSON.

Fields come from defaults, then --input (a JSON object, "-" for stdin), then
any explicitly set flags. With --explain and an Anthropic API key configured,
a short reviewer note is printed after the prediction.`,
	Example: `  sentinel predict --severity-score 9 --test-coverage 0.4
  echo '{"lines_changed": 420}' | sentinel predict -i -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := predictInput(cmd)
		if err != nil {
			return err
		}
		return predictRun(cmd.Context(), in, predictExplain)
	},
}

func init() {
	d := predictor.DefaultInput()
	f := predictCmd.Flags()
	f.StringVarP(&predictInputFile, "input", "i", "", `JSON input file ("-" for stdin)`)
	f.BoolVar(&predictExplain, "explain", false, "Add an LLM-written reviewer note")
	f.Float64Var(&predictFlagVals.SeverityScore, "severity-score", d.SeverityScore, "Severity 1-10")
	f.Float64Var(&predictFlagVals.CodeComplexity, "code-complexity", d.CodeComplexity, "Code complexity 1-10")
	f.IntVar(&predictFlagVals.LinesChanged, "lines-changed", d.LinesChanged, "Lines changed")
	f.IntVar(&predictFlagVals.DeveloperFeedbacks, "developer-feedbacks", d.DeveloperFeedbacks, "Review comments received")
	f.Float64Var(&predictFlagVals.TestCoverage, "test-coverage", d.TestCoverage, "Test coverage 0-1")
	f.Float64Var(&predictFlagVals.PastAcceptanceRate, "past-acceptance-rate", d.PastAcceptanceRate, "Author's past acceptance rate 0-1")
	f.IntVar(&predictFlagFix, "security-fix", int(d.ContainsSecurityFix), "1 if the change fixes a security issue, else 0")
	f.Float64Var(&predictFlagVals.ReviewTime, "review-time", d.ReviewTime, "Review time in hours")
	rootCmd.AddCommand(predictCmd)
}

// predictInput merges defaults, the optional JSON input and changed flags.
func predictInput(cmd *cobra.Command) (predictor.Input, error) {
	in := predictor.DefaultInput()
	if predictInputFile != "" {
		var r io.Reader = os.Stdin
		if predictInputFile != "-" {
			f, err := os.Open(predictInputFile)
			if err != nil {
				return in, fmt.Errorf("open input: %w", err)
			}
			defer func() { _ = f.Close() }()
			r = f
		}
		var err error
		if in, err = predictor.DecodeInput(r); err != nil {
			return in, err
		}
	}

	flags := cmd.Flags()
	changed := flags.Changed
	if changed("severity-score") {
		in.SeverityScore = predictFlagVals.SeverityScore
	}
	if changed("code-complexity") {
		in.CodeComplexity = predictFlagVals.CodeComplexity
	}
	if changed("lines-changed") {
		in.LinesChanged = predictFlagVals.LinesChanged
	}
	if changed("developer-feedbacks") {
		in.DeveloperFeedbacks = predictFlagVals.DeveloperFeedbacks
	}
	if changed("test-coverage") {
		in.TestCoverage = predictFlagVals.TestCoverage
	}
	if changed("past-acceptance-rate") {
		in.PastAcceptanceRate = predictFlagVals.PastAcceptanceRate
	}
	if changed("security-fix") {
		in.ContainsSecurityFix = predictor.Flag(predictFlagFix)
	}
	if changed("review-time") {
		in.ReviewTime = predictFlagVals.ReviewTime
	}
	return in, nil
}

func predictRun(ctx context.Context, in predictor.Input, explain bool) error {
	var client *llm.Client
	if explain {
		if client = newLLMClient(); client == nil {
			return fmt.Errorf("--explain needs an Anthropic API key (set SENTINEL_ANTHROPIC_API_KEY or anthropic.api_key)")
		}
	}

	svc, err := loadPredictor()
	if err != nil {
		return err
	}
	pred, err := svc.Predict(in)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(pred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	fmt.Fprintln(ui.Out, string(data))

	if client == nil {
		return nil
	}
	note, err := client.Explain(ctx, in, pred)
	if err != nil {
		ui.Warning("Could not get reviewer note: %v", err)
		return nil
	}
	fmt.Fprintf(ui.Out, "\n%s\n%s\n", output.Cyan("Reviewer note"), note.Summary)
	for _, s := range note.Suggestions {
		fmt.Fprintf(ui.Out, "  - %s\n", s)
	}
	return nil
}
