package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityForSeverity(t *testing.T) {
	tests := []struct {
		severity float64
		want     Priority
	}{
		{1, PriorityLow},
		{3.99, PriorityLow},
		{4, PriorityMedium},
		{5.9, PriorityMedium},
		{6, PriorityHigh},
		{7.99, PriorityHigh},
		{8, PriorityCritical},
		{10, PriorityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityForSeverity(tt.severity), "severity %v", tt.severity)
	}
}

func TestFeedbackLabelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  FeedbackLabel
	}{
		{1.0, FeedbackReject},
		{2.2, FeedbackReject},
		{2.3, FeedbackMajor},
		{3.6, FeedbackMajor},
		{3.7, FeedbackMinor},
		{5.0, FeedbackMinor},
	}
	for _, tt := range tests {
		r := PullRequestRecord{FeedbackScore: tt.score}
		assert.Equal(t, tt.want, r.FeedbackLabel(), "score %v", tt.score)
	}
}

func TestFeatures_EncodesFlag(t *testing.T) {
	r := PullRequestRecord{ContainsSecurityFix: true, LinesChanged: 42}
	f := r.Features()
	assert.Len(t, f, 8)
	assert.Equal(t, 1.0, f["contains_security_fix"])
	assert.Equal(t, 42.0, f["lines_changed"])
}
