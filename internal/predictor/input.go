package predictor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"reflect"

	"github.com/joescharf/sentinel/internal/models"
)

// Flag is a 0/1 indicator that also accepts JSON booleans.
type Flag int

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = 1
		return nil
	case "false":
		*f = 0
		return nil
	case "null":
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return &json.UnmarshalTypeError{
			Value: string(bytes.TrimSpace(data)),
			Type:  reflect.TypeFor[Flag](),
			Field: "contains_security_fix",
		}
	}
	*f = Flag(n)
	return nil
}

// Input is the feature subset of a pull request sent for prediction.
type Input struct {
	SeverityScore       float64 `json:"severity_score"`
	CodeComplexity      float64 `json:"code_complexity"`
	LinesChanged        int     `json:"lines_changed"`
	DeveloperFeedbacks  int     `json:"developer_feedbacks"`
	TestCoverage        float64 `json:"test_coverage"`
	PastAcceptanceRate  float64 `json:"past_acceptance_rate"`
	ContainsSecurityFix Flag    `json:"contains_security_fix"`
	ReviewTime          float64 `json:"review_time"`
}

// Upper bound accepted for lines_changed.
const maxLinesChanged = 1_000_000

// DefaultInput returns the values used for fields a caller omits.
func DefaultInput() Input {
	return Input{
		SeverityScore:       8.0,
		CodeComplexity:      7.0,
		LinesChanged:        100,
		DeveloperFeedbacks:  2,
		TestCoverage:        0.6,
		PastAcceptanceRate:  0.8,
		ContainsSecurityFix: 1,
		ReviewTime:          5.0,
	}
}

// DecodeInput reads a single JSON object over the defaults and validates it.
// Decoding failures and trailing data are reported as a *ValidationError.
func DecodeInput(r io.Reader) (Input, error) {
	in := DefaultInput()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		verr := &ValidationError{}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			verr.add(typeErr.Field, "expected %s, got %s", typeErr.Type, typeErr.Value)
		} else {
			verr.add("body", "%v", err)
		}
		return in, verr
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		verr := &ValidationError{}
		verr.add("body", "unexpected data after the JSON object")
		return in, verr
	}
	return in, in.Validate()
}

// Validate checks every field against its declared range.
func (in Input) Validate() error {
	verr := &ValidationError{}
	checkRange(verr, "severity_score", in.SeverityScore, 1, 10)
	checkRange(verr, "code_complexity", in.CodeComplexity, 1, 10)
	if in.LinesChanged < 0 || in.LinesChanged > maxLinesChanged {
		verr.add("lines_changed", "must be between 0 and %d", maxLinesChanged)
	}
	if in.DeveloperFeedbacks < 0 {
		verr.add("developer_feedbacks", "must be >= 0")
	}
	checkRange(verr, "test_coverage", in.TestCoverage, 0, 1)
	checkRange(verr, "past_acceptance_rate", in.PastAcceptanceRate, 0, 1)
	if in.ContainsSecurityFix != 0 && in.ContainsSecurityFix != 1 {
		verr.add("contains_security_fix", "must be 0 or 1")
	}
	if finite(verr, "review_time", in.ReviewTime) && in.ReviewTime < 0 {
		verr.add("review_time", "must be >= 0")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func checkRange(verr *ValidationError, field string, v, lo, hi float64) {
	if finite(verr, field, v) && (v < lo || v > hi) {
		verr.add(field, "must be between %g and %g", lo, hi)
	}
}

func finite(verr *ValidationError, field string, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		verr.add(field, "must be a finite number")
		return false
	}
	return true
}

// Record converts the input into a pull request record without labels.
func (in Input) Record() models.PullRequestRecord {
	return models.PullRequestRecord{
		SeverityScore:       in.SeverityScore,
		CodeComplexity:      in.CodeComplexity,
		LinesChanged:        in.LinesChanged,
		DeveloperFeedbacks:  in.DeveloperFeedbacks,
		TestCoverage:        in.TestCoverage,
		PastAcceptanceRate:  in.PastAcceptanceRate,
		ContainsSecurityFix: in.ContainsSecurityFix == 1,
		ReviewTime:          in.ReviewTime,
	}
}
