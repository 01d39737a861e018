package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sentinel/internal/models"
	"github.com/joescharf/sentinel/internal/predictor"
	"github.com/joescharf/sentinel/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// stubPredictor validates like the real service and returns a fixed result.
type stubPredictor struct {
	got predictor.Input
	err error
}

func (p *stubPredictor) Predict(in predictor.Input) (predictor.Prediction, error) {
	p.got = in
	if err := in.Validate(); err != nil {
		return predictor.Prediction{}, err
	}
	if p.err != nil {
		return predictor.Prediction{}, p.err
	}
	return predictor.Prediction{Feedback: "major", Priority: "critical", AcceptProb: 0.214}, nil
}

func newTestServer(t *testing.T) (*Server, *stubPredictor, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	p := &stubPredictor{}
	return NewServer(p, s, "test"), p, s
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// seedRun records a finished run with one evaluation.
func seedRun(t *testing.T, s *store.SQLiteStore, startedAt time.Time) *models.TrainingRun {
	t.Helper()
	ctx := context.Background()
	r := &models.TrainingRun{DatasetPath: "data.csv", ArtifactDir: "artifacts", StartedAt: startedAt}
	require.NoError(t, s.CreateRun(ctx, r))
	require.NoError(t, s.CreateEvaluation(ctx, &models.ModelEvaluation{
		RunID:      r.ID,
		Target:     "accept",
		ModelKind:  "logistic_regression",
		BestParams: map[string]float64{"C": 1},
		Accuracy:   0.88,
		WeightedF1: 0.9,
	}))
	r.Rows = 5000
	r.Status = models.RunStatusSucceeded
	require.NoError(t, s.FinishRun(ctx, r))
	return r
}

// ---------------------------------------------------------------------------
// Tests: MCPServer registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

// ---------------------------------------------------------------------------
// Tests: sentinel_predict
// ---------------------------------------------------------------------------

func TestHandlePredict_Defaults(t *testing.T) {
	srv, p, _ := newTestServer(t)

	result, err := srv.handlePredict(context.Background(), callToolReq("sentinel_predict", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, predictor.DefaultInput(), p.got)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Len(t, out, 3)
	assert.Equal(t, "critical", out["priority"])
	assert.Equal(t, 0.214, out["accept_prob"])
}

func TestHandlePredict_Arguments(t *testing.T) {
	srv, p, _ := newTestServer(t)

	result, err := srv.handlePredict(context.Background(), callToolReq("sentinel_predict", map[string]any{
		"severity_score":        2.5,
		"lines_changed":         float64(40),
		"developer_feedbacks":   float64(7),
		"contains_security_fix": false,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, 2.5, p.got.SeverityScore)
	assert.Equal(t, 40, p.got.LinesChanged)
	assert.Equal(t, 7, p.got.DeveloperFeedbacks)
	assert.Equal(t, predictor.Flag(0), p.got.ContainsSecurityFix)
	assert.Equal(t, predictor.DefaultInput().ReviewTime, p.got.ReviewTime)
}

func TestHandlePredict_ValidationError(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handlePredict(context.Background(), callToolReq("sentinel_predict", map[string]any{
		"test_coverage": 3.0,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "test_coverage")
}

func TestHandlePredict_RejectsMalformedArguments(t *testing.T) {
	srv, p, _ := newTestServer(t)

	result, err := srv.handlePredict(context.Background(), callToolReq("sentinel_predict", map[string]any{
		"developer_feedbacks": "lots",
		"severity_score":      "very high",
		"lines_changed":       12.9,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "developer_feedbacks")
	assert.Contains(t, text, "severity_score")
	assert.Contains(t, text, "lines_changed")
	assert.Equal(t, predictor.Input{}, p.got, "no model call on malformed arguments")
}

func TestInputFromArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		badFields []string
		check     func(t *testing.T, in predictor.Input)
	}{
		{
			name: "whole float for int field",
			args: map[string]any{"lines_changed": 40.0, "developer_feedbacks": 3},
			check: func(t *testing.T, in predictor.Input) {
				assert.Equal(t, 40, in.LinesChanged)
				assert.Equal(t, 3, in.DeveloperFeedbacks)
			},
		},
		{
			name: "bool flag",
			args: map[string]any{"contains_security_fix": false},
			check: func(t *testing.T, in predictor.Input) {
				assert.Equal(t, predictor.Flag(0), in.ContainsSecurityFix)
			},
		},
		{
			name: "numeric flag",
			args: map[string]any{"contains_security_fix": 0.0},
			check: func(t *testing.T, in predictor.Input) {
				assert.Equal(t, predictor.Flag(0), in.ContainsSecurityFix)
			},
		},
		{
			name: "null keeps default",
			args: map[string]any{"review_time": nil},
			check: func(t *testing.T, in predictor.Input) {
				assert.Equal(t, predictor.DefaultInput(), in)
			},
		},
		{
			name:      "fractional developer_feedbacks",
			args:      map[string]any{"developer_feedbacks": 1.5},
			badFields: []string{"developer_feedbacks"},
		},
		{
			name:      "string flag",
			args:      map[string]any{"contains_security_fix": "yes"},
			badFields: []string{"contains_security_fix"},
		},
		{
			name:      "numeric string",
			args:      map[string]any{"test_coverage": "0.5", "review_time": []any{1}},
			badFields: []string{"test_coverage", "review_time"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := inputFromArgs(tt.args)
			if len(tt.badFields) == 0 {
				require.NoError(t, err)
				tt.check(t, in)
				return
			}
			var verr *predictor.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, predictor.ErrValidation)
			var fields []string
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.ElementsMatch(t, tt.badFields, fields)
		})
	}
}

func TestHandlePredict_InferenceError(t *testing.T) {
	srv, p, _ := newTestServer(t)
	p.err = fmt.Errorf("%w: broken model", predictor.ErrInference)

	result, err := srv.handlePredict(context.Background(), callToolReq("sentinel_predict", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "broken model")
}

func TestHandlePredict_NoModels(t *testing.T) {
	_, _, s := newTestServer(t)
	srv := NewServer(nil, s, "test")

	result, err := srv.handlePredict(context.Background(), callToolReq("sentinel_predict", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "sentinel train")
}

// ---------------------------------------------------------------------------
// Tests: sentinel_list_runs
// ---------------------------------------------------------------------------

func TestHandleListRuns_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleListRuns(context.Background(), callToolReq("sentinel_list_runs", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))
}

func TestHandleListRuns_WithRuns(t *testing.T) {
	srv, _, s := newTestServer(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedRun(t, s, base)
	newest := seedRun(t, s, base.Add(time.Hour))

	result, err := srv.handleListRuns(context.Background(), callToolReq("sentinel_list_runs", nil))
	require.NoError(t, err)

	var runs []runOut
	resultJSON(t, result, &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, newest.ID, runs[0].ID)
	assert.Equal(t, "succeeded", runs[0].Status)
	require.Len(t, runs[0].Evaluations, 1)
	assert.Equal(t, "accept", runs[0].Evaluations[0].Target)
	assert.Equal(t, 1.0, runs[0].Evaluations[0].BestParams["C"])
}

func TestHandleListRuns_Limit(t *testing.T) {
	srv, _, s := newTestServer(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedRun(t, s, base.Add(time.Duration(i)*time.Minute))
	}

	result, err := srv.handleListRuns(context.Background(), callToolReq("sentinel_list_runs", map[string]any{
		"limit": float64(1),
	}))
	require.NoError(t, err)

	var runs []runOut
	resultJSON(t, result, &runs)
	assert.Len(t, runs, 1)
}
