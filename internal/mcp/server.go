package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/sentinel/internal/predictor"
	"github.com/joescharf/sentinel/internal/store"
)

// Predictor produces a prediction for one input.
type Predictor interface {
	Predict(in predictor.Input) (predictor.Prediction, error)
}

// Server exposes the predictor and run registry as MCP tools.
type Server struct {
	predictor Predictor
	store     store.Store
	version   string
}

// NewServer creates the MCP server wrapper. p may be nil when no artifacts
// are available; sentinel_predict then reports an error result.
func NewServer(p Predictor, s store.Store, version string) *Server {
	return &Server{predictor: p, store: s, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("sentinel", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.predictTool())
	srv.AddTool(s.listRunsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// sentinel_predict
func (s *Server) predictTool() (mcp.Tool, server.ToolHandlerFunc) {
	def := predictor.DefaultInput()
	tool := mcp.NewTool("sentinel_predict",
		mcp.WithDescription("Predict review feedback, triage priority and acceptance probability for a pull request. Omitted fields use defaults."),
		mcp.WithNumber("severity_score", mcp.Description(fmt.Sprintf("Severity 1-10 (default %g)", def.SeverityScore))),
		mcp.WithNumber("code_complexity", mcp.Description(fmt.Sprintf("Complexity 1-10 (default %g)", def.CodeComplexity))),
		mcp.WithNumber("lines_changed", mcp.Description(fmt.Sprintf("Lines changed (default %d)", def.LinesChanged))),
		mcp.WithNumber("developer_feedbacks", mcp.Description(fmt.Sprintf("Review comments received (default %d)", def.DeveloperFeedbacks))),
		mcp.WithNumber("test_coverage", mcp.Description(fmt.Sprintf("Test coverage 0-1 (default %g)", def.TestCoverage))),
		mcp.WithNumber("past_acceptance_rate", mcp.Description(fmt.Sprintf("Author's past acceptance rate 0-1 (default %g)", def.PastAcceptanceRate))),
		mcp.WithNumber("contains_security_fix", mcp.Description("1 if the change fixes a security issue, else 0 (default 1)")),
		mcp.WithNumber("review_time", mcp.Description(fmt.Sprintf("Review time in hours (default %g)", def.ReviewTime))),
	)
	return tool, s.handlePredict
}

func (s *Server) handlePredict(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.predictor == nil {
		return mcp.NewToolResultError("no trained models loaded; run 'sentinel train' first"), nil
	}

	in, err := inputFromArgs(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pred, err := s.predictor.Predict(in)
	if err != nil {
		if errors.Is(err, predictor.ErrValidation) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("prediction failed: %v", err)), nil
	}

	data, err := json.Marshal(pred)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal prediction: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// inputFromArgs overlays tool arguments on the default input. Every present
// argument must be a JSON number; lines_changed and developer_feedbacks must
// be whole, and contains_security_fix may also be a boolean. All rejected
// arguments are reported together in a *predictor.ValidationError.
func inputFromArgs(args map[string]any) (predictor.Input, error) {
	in := predictor.DefaultInput()
	verr := &predictor.ValidationError{}
	reject := func(field, msg string) {
		verr.Fields = append(verr.Fields, predictor.FieldError{Field: field, Message: msg})
	}

	floatArg := func(key string, dst *float64) {
		v, ok := args[key]
		if !ok || v == nil {
			return
		}
		f, ok := number(v)
		if !ok {
			reject(key, fmt.Sprintf("expected a number, got %T", v))
			return
		}
		*dst = f
	}
	intArg := func(key string, dst *int) {
		v, ok := args[key]
		if !ok || v == nil {
			return
		}
		f, ok := number(v)
		if !ok {
			reject(key, fmt.Sprintf("expected an integer, got %T", v))
			return
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			reject(key, fmt.Sprintf("expected an integer, got %g", f))
			return
		}
		*dst = int(f)
	}

	floatArg("severity_score", &in.SeverityScore)
	floatArg("code_complexity", &in.CodeComplexity)
	intArg("lines_changed", &in.LinesChanged)
	intArg("developer_feedbacks", &in.DeveloperFeedbacks)
	floatArg("test_coverage", &in.TestCoverage)
	floatArg("past_acceptance_rate", &in.PastAcceptanceRate)
	floatArg("review_time", &in.ReviewTime)

	if v, ok := args["contains_security_fix"]; ok && v != nil {
		if b, isBool := v.(bool); isBool {
			in.ContainsSecurityFix = 0
			if b {
				in.ContainsSecurityFix = 1
			}
		} else {
			var fix int
			intArg("contains_security_fix", &fix)
			in.ContainsSecurityFix = predictor.Flag(fix)
		}
	}

	if len(verr.Fields) > 0 {
		return in, verr
	}
	return in, nil
}

// number accepts the numeric types a decoded or in-process argument map holds.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// sentinel_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sentinel_list_runs",
		mcp.WithDescription("List recent training runs, newest first, with per-target accuracy and weighted F1."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 10)")),
	)
	return tool, s.handleListRuns
}

type evaluationOut struct {
	Target     string             `json:"target"`
	ModelKind  string             `json:"model_kind"`
	BestParams map[string]float64 `json:"best_params"`
	CVScore    float64            `json:"cv_score"`
	Accuracy   float64            `json:"accuracy"`
	WeightedF1 float64            `json:"weighted_f1"`
}

type runOut struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	DatasetPath string          `json:"dataset_path"`
	Rows        int             `json:"rows"`
	Error       string          `json:"error,omitempty"`
	StartedAt   string          `json:"started_at"`
	Evaluations []evaluationOut `json:"evaluations"`
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 10)
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	out := make([]runOut, len(runs))
	for i, r := range runs {
		evals, err := s.store.ListEvaluations(ctx, r.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list evaluations for %s: %v", r.ID, err)), nil
		}
		ro := runOut{
			ID:          r.ID,
			Status:      string(r.Status),
			DatasetPath: r.DatasetPath,
			Rows:        r.Rows,
			Error:       r.Error,
			StartedAt:   r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			Evaluations: []evaluationOut{},
		}
		for _, e := range evals {
			ro.Evaluations = append(ro.Evaluations, evaluationOut{
				Target:     e.Target,
				ModelKind:  e.ModelKind,
				BestParams: e.BestParams,
				CVScore:    e.CVScore,
				Accuracy:   e.Accuracy,
				WeightedF1: e.WeightedF1,
			})
		}
		out[i] = ro
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal runs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
