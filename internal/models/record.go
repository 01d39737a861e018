package models

// Priority is the triage urgency of a pull request.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// FeedbackLabel buckets a numeric feedback score into a review outcome.
type FeedbackLabel string

const (
	FeedbackReject FeedbackLabel = "reject"
	FeedbackMajor  FeedbackLabel = "major"
	FeedbackMinor  FeedbackLabel = "minor"
)

// Feedback bucket upper bounds (inclusive).
const (
	FeedbackRejectMax = 2.2
	FeedbackMajorMax  = 3.6
)

// PullRequestRecord is one synthetic pull request sample.
type PullRequestRecord struct {
	SeverityScore       float64
	CodeComplexity      float64
	LinesChanged        int
	DeveloperFeedbacks  int
	TestCoverage        float64
	PastAcceptanceRate  float64
	ContainsSecurityFix bool
	ReviewTime          float64 // hours
	FeedbackScore       float64
	Priority            Priority
	Accepted            bool
}

// PriorityForSeverity maps a severity score onto a priority step.
func PriorityForSeverity(severity float64) Priority {
	switch {
	case severity >= 8:
		return PriorityCritical
	case severity >= 6:
		return PriorityHigh
	case severity >= 4:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// FeedbackLabelForScore buckets a feedback score.
func FeedbackLabelForScore(score float64) FeedbackLabel {
	switch {
	case score <= FeedbackRejectMax:
		return FeedbackReject
	case score <= FeedbackMajorMax:
		return FeedbackMajor
	default:
		return FeedbackMinor
	}
}

// FeedbackLabel returns the bucket for the record's feedback score.
func (r *PullRequestRecord) FeedbackLabel() FeedbackLabel {
	return FeedbackLabelForScore(r.FeedbackScore)
}

// Features returns the eight model inputs keyed by column name.
// Booleans are encoded as 0/1.
func (r *PullRequestRecord) Features() map[string]float64 {
	return map[string]float64{
		"severity_score":        r.SeverityScore,
		"code_complexity":       r.CodeComplexity,
		"lines_changed":         float64(r.LinesChanged),
		"developer_feedbacks":   float64(r.DeveloperFeedbacks),
		"test_coverage":         r.TestCoverage,
		"past_acceptance_rate":  r.PastAcceptanceRate,
		"contains_security_fix": BoolToFloat(r.ContainsSecurityFix),
		"review_time":           r.ReviewTime,
	}
}

// BoolToFloat converts a flag to 0 or 1.
func BoolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
