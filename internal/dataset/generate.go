package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/joescharf/sentinel/internal/models"
)

// Strategy selects how label columns are produced. A dataset file is
// generated with exactly one strategy.
type Strategy string

const (
	// StrategyRules derives feedback_score, priority and accepted from the
	// sampled features.
	StrategyRules Strategy = "rules"
	// StrategyRandom samples every column independently.
	StrategyRandom Strategy = "random"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRules, StrategyRandom:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q (use: rules, random)", s)
	}
}

var (
	priorityChoices = []models.Priority{
		models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical,
	}
	priorityWeights = []float64{0.4, 0.35, 0.2, 0.05}
)

const (
	securityFixRate = 0.3
	acceptedRate    = 0.7
)

// Generate samples n records with a deterministic RNG seeded from seed.
func Generate(n int, strategy Strategy, seed uint64) []models.PullRequestRecord {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	records := make([]models.PullRequestRecord, n)
	for i := range records {
		r := sampleFeatures(rng)
		switch strategy {
		case StrategyRandom:
			r.FeedbackScore = RoundFeedback(uniform(rng, 1, 5))
			r.Priority = priorityChoices[weightedIndex(rng, priorityWeights)]
			r.Accepted = rng.Float64() < acceptedRate
		default:
			ApplyRules(&r)
		}
		records[i] = r
	}
	return records
}

func sampleFeatures(rng *rand.Rand) models.PullRequestRecord {
	return models.PullRequestRecord{
		SeverityScore:       uniform(rng, 1, 10),
		CodeComplexity:      uniform(rng, 1, 10),
		LinesChanged:        1 + rng.IntN(499),
		DeveloperFeedbacks:  rng.IntN(10),
		TestCoverage:        rng.Float64(),
		PastAcceptanceRate:  rng.Float64(),
		ContainsSecurityFix: rng.Float64() < securityFixRate,
		ReviewTime:          uniform(rng, 0.5, 24),
	}
}

// ApplyRules fills the label columns of r from its features.
func ApplyRules(r *models.PullRequestRecord) {
	r.FeedbackScore = RoundFeedback(2.0 + 3.0*r.TestCoverage + 1.5*r.PastAcceptanceRate - 0.3*float64(r.DeveloperFeedbacks))
	r.Priority = models.PriorityForSeverity(r.SeverityScore)
	r.Accepted = r.DeveloperFeedbacks < 3 &&
		r.TestCoverage > 0.6 &&
		r.PastAcceptanceRate > 0.5 &&
		r.SeverityScore < 9
}

// RoundFeedback clamps a feedback score to [1, 5] and rounds it to one decimal.
func RoundFeedback(v float64) float64 {
	v = math.Max(1, math.Min(5, v))
	return math.Round(v*10) / 10
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func weightedIndex(rng *rand.Rand, weights []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return i
		}
	}
	return len(weights) - 1
}
