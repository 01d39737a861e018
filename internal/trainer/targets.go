package trainer

import "github.com/joescharf/sentinel/internal/ml"

// Target names, in training order.
const (
	TargetFeedback = "feedback"
	TargetPriority = "priority"
	TargetAccept   = "accept"
)

type target struct {
	name          string
	newClassifier func() ml.Classifier
	grid          ml.ParamGrid
}

func targets(seed uint64) []target {
	return []target{
		{
			name: TargetFeedback,
			newClassifier: func() ml.Classifier {
				return ml.NewGradientBoosting()
			},
			grid: ml.ParamGrid{"n_estimators": {100}, "max_depth": {5}},
		},
		{
			name: TargetPriority,
			newClassifier: func() ml.Classifier {
				f := ml.NewRandomForest(seed)
				f.Balanced = true
				return f
			},
			grid: ml.ParamGrid{"n_estimators": {200}},
		},
		{
			name: TargetAccept,
			newClassifier: func() ml.Classifier {
				l := ml.NewLogisticRegression()
				l.Balanced = true
				l.MaxIter = 1000
				return l
			},
			grid: ml.ParamGrid{"C": {1.0}},
		},
	}
}
