package ml

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownLabel is returned when encoding a label not seen during Fit.
var ErrUnknownLabel = errors.New("unknown label")

// LabelEncoder maps string labels to dense class indices. Classes are
// sorted, so index i always decodes to Classes[i].
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// Fit records the distinct labels.
func (e *LabelEncoder) Fit(labels []string) {
	classes := slices.Clone(labels)
	slices.Sort(classes)
	e.Classes = slices.Compact(classes)
}

// FitTransform fits the encoder and encodes labels in one pass.
func (e *LabelEncoder) FitTransform(labels []string) []int {
	e.Fit(labels)
	out, _ := e.Transform(labels)
	return out
}

// Transform encodes labels to class indices.
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := slices.BinarySearch(e.Classes, l)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, l)
		}
		out[i] = idx
	}
	return out, nil
}

// InverseTransform decodes class indices back to labels.
func (e *LabelEncoder) InverseTransform(idx []int) ([]string, error) {
	out := make([]string, len(idx))
	for i, v := range idx {
		if v < 0 || v >= len(e.Classes) {
			return nil, fmt.Errorf("class index %d out of range [0,%d)", v, len(e.Classes))
		}
		out[i] = e.Classes[v]
	}
	return out, nil
}

// FeatureList is the ordered set of model input names.
type FeatureList []string

// Vector orders values by the feature list.
func (f FeatureList) Vector(values map[string]float64) ([]float64, error) {
	out := make([]float64, len(f))
	for i, name := range f {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("no value for feature %q", name)
		}
		out[i] = v
	}
	return out, nil
}
