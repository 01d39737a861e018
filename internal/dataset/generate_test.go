package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sentinel/internal/models"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("rules")
	require.NoError(t, err)
	assert.Equal(t, StrategyRules, s)

	s, err = ParseStrategy("random")
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, s)

	_, err = ParseStrategy("mixed")
	assert.Error(t, err)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(200, StrategyRules, 42)
	b := Generate(200, StrategyRules, 42)
	assert.Equal(t, a, b)

	c := Generate(200, StrategyRules, 7)
	assert.NotEqual(t, a, c)
}

func TestGenerate_FeatureBounds(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRules, StrategyRandom} {
		for _, r := range Generate(2000, strategy, 42) {
			assert.GreaterOrEqual(t, r.SeverityScore, 1.0)
			assert.Less(t, r.SeverityScore, 10.0)
			assert.GreaterOrEqual(t, r.CodeComplexity, 1.0)
			assert.Less(t, r.CodeComplexity, 10.0)
			assert.GreaterOrEqual(t, r.LinesChanged, 1)
			assert.LessOrEqual(t, r.LinesChanged, 499)
			assert.GreaterOrEqual(t, r.DeveloperFeedbacks, 0)
			assert.LessOrEqual(t, r.DeveloperFeedbacks, 9)
			assert.GreaterOrEqual(t, r.TestCoverage, 0.0)
			assert.Less(t, r.TestCoverage, 1.0)
			assert.GreaterOrEqual(t, r.PastAcceptanceRate, 0.0)
			assert.Less(t, r.PastAcceptanceRate, 1.0)
			assert.GreaterOrEqual(t, r.ReviewTime, 0.5)
			assert.Less(t, r.ReviewTime, 24.0)
		}
	}
}

func TestGenerate_RulePriority(t *testing.T) {
	for _, r := range Generate(5000, StrategyRules, 42) {
		switch {
		case r.SeverityScore >= 8:
			assert.Equal(t, models.PriorityCritical, r.Priority)
		case r.SeverityScore >= 6:
			assert.Equal(t, models.PriorityHigh, r.Priority)
		case r.SeverityScore >= 4:
			assert.Equal(t, models.PriorityMedium, r.Priority)
		default:
			assert.Equal(t, models.PriorityLow, r.Priority)
		}
	}
}

func TestGenerate_RuleAccepted(t *testing.T) {
	accepted := 0
	for _, r := range Generate(5000, StrategyRules, 42) {
		want := r.DeveloperFeedbacks < 3 && r.TestCoverage > 0.6 &&
			r.PastAcceptanceRate > 0.5 && r.SeverityScore < 9
		assert.Equal(t, want, r.Accepted)
		if r.Accepted {
			accepted++
		}
	}
	assert.Positive(t, accepted, "rule data should contain accepted rows")
}

func TestGenerate_FeedbackScoreClampedAndRounded(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRules, StrategyRandom} {
		for _, r := range Generate(3000, strategy, 42) {
			assert.GreaterOrEqual(t, r.FeedbackScore, 1.0)
			assert.LessOrEqual(t, r.FeedbackScore, 5.0)
			assert.InDelta(t, math.Round(r.FeedbackScore*10)/10, r.FeedbackScore, 1e-9)
		}
	}
}

func TestGenerate_RandomUsesAllPriorities(t *testing.T) {
	counts := map[models.Priority]int{}
	for _, r := range Generate(5000, StrategyRandom, 42) {
		counts[r.Priority]++
	}
	assert.Len(t, counts, 4)
	assert.Greater(t, counts[models.PriorityLow], counts[models.PriorityCritical])
}

func TestRoundFeedback(t *testing.T) {
	assert.Equal(t, 1.0, RoundFeedback(-3))
	assert.Equal(t, 5.0, RoundFeedback(7.2))
	assert.Equal(t, 3.5, RoundFeedback(3.46))
	assert.Equal(t, 2.2, RoundFeedback(2.2))
}

func TestApplyRules(t *testing.T) {
	r := models.PullRequestRecord{
		SeverityScore:      8.5,
		DeveloperFeedbacks: 1,
		TestCoverage:       0.9,
		PastAcceptanceRate: 0.8,
	}
	ApplyRules(&r)
	assert.Equal(t, models.PriorityCritical, r.Priority)
	assert.True(t, r.Accepted)
	// 2.0 + 2.7 + 1.2 - 0.3
	assert.Equal(t, 5.0, r.FeedbackScore)

	r.SeverityScore = 9.2
	ApplyRules(&r)
	assert.False(t, r.Accepted, "severity 9+ is never accepted")
}
