package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/sentinel/internal/predictor"
)

// ReviewNote is a short reviewer-facing explanation of a prediction.
type ReviewNote struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

// Client wraps the Anthropic API for prediction explanations.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildExplainPrompt constructs the system and user prompts for a review note.
func buildExplainPrompt(in predictor.Input, pred predictor.Prediction) (system string, user string) {
	system = `You help code reviewers triage pull requests. You receive the measured features of one pull request and the output of three classifiers. Return a JSON object with exactly two fields:

- "summary": 2-3 sentences explaining the predicted review outcome, priority and acceptance probability in terms of the features
- "suggestions": an array of at most 3 short, concrete actions the author could take to improve the chance of acceptance

Rules:
- Feedback is one of "reject", "major", "minor" (minor means only small changes are expected)
- Priority is one of "low", "medium", "high", "critical"
- Do not restate every number; mention only the features that matter
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Pull request features:\n")
	fmt.Fprintf(&sb, "- severity_score: %g\n", in.SeverityScore)
	fmt.Fprintf(&sb, "- code_complexity: %g\n", in.CodeComplexity)
	fmt.Fprintf(&sb, "- lines_changed: %d\n", in.LinesChanged)
	fmt.Fprintf(&sb, "- developer_feedbacks: %d\n", in.DeveloperFeedbacks)
	fmt.Fprintf(&sb, "- test_coverage: %g\n", in.TestCoverage)
	fmt.Fprintf(&sb, "- past_acceptance_rate: %g\n", in.PastAcceptanceRate)
	fmt.Fprintf(&sb, "- contains_security_fix: %d\n", in.ContainsSecurityFix)
	fmt.Fprintf(&sb, "- review_time: %g hours\n", in.ReviewTime)
	sb.WriteString("\nPredictions:\n")
	fmt.Fprintf(&sb, "- feedback: %s\n", pred.Feedback)
	fmt.Fprintf(&sb, "- priority: %s\n", pred.Priority)
	fmt.Fprintf(&sb, "- accept_prob: %.3f\n", pred.AcceptProb)
	user = sb.String()
	return
}

// Explain asks the LLM for a review note on a prediction.
func (c *Client) Explain(ctx context.Context, in predictor.Input, pred predictor.Prediction) (*ReviewNote, error) {
	systemPrompt, userPrompt := buildExplainPrompt(in, pred)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseNote(text)
}

// parseNote decodes a review note, tolerating markdown fencing.
func parseNote(text string) (*ReviewNote, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var note ReviewNote
	if err := json.Unmarshal([]byte(text), &note); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return &note, nil
}
