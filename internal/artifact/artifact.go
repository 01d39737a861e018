package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joescharf/sentinel/internal/ml"
)

// Artifact file names inside an artifact directory.
const (
	FeedbackModelFile   = "model_feedback.json"
	PriorityModelFile   = "model_priority.json"
	AcceptModelFile     = "model_accept.json"
	PriorityEncoderFile = "labelencoder_priority.json"
	FeedbackEncoderFile = "labelencoder_feedback.json"
	FeaturesFile        = "model_features.json"
)

// Files lists every file a complete bundle consists of.
var Files = []string{
	FeedbackModelFile,
	PriorityModelFile,
	AcceptModelFile,
	PriorityEncoderFile,
	FeedbackEncoderFile,
	FeaturesFile,
}

// ErrMissing is returned by Load when an artifact file does not exist.
var ErrMissing = errors.New("artifact not found")

// Bundle is everything the predictor needs: three fitted pipelines, the two
// label encoders they were trained against, and the feature order.
type Bundle struct {
	Feedback        *ml.Pipeline
	Priority        *ml.Pipeline
	Accept          *ml.Pipeline
	FeedbackEncoder *ml.LabelEncoder
	PriorityEncoder *ml.LabelEncoder
	Features        ml.FeatureList
}

type encoderFile struct {
	FormatVersion int      `json:"format_version"`
	Classes       []string `json:"classes"`
}

type featuresFile struct {
	FormatVersion int      `json:"format_version"`
	Features      []string `json:"features"`
}

// Save writes the bundle into dir, replacing existing files.
func (b *Bundle) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	files := map[string]any{
		FeedbackModelFile:   b.Feedback,
		PriorityModelFile:   b.Priority,
		AcceptModelFile:     b.Accept,
		PriorityEncoderFile: encoderFile{FormatVersion: ml.FormatVersion, Classes: b.PriorityEncoder.Classes},
		FeedbackEncoderFile: encoderFile{FormatVersion: ml.FormatVersion, Classes: b.FeedbackEncoder.Classes},
		FeaturesFile:        featuresFile{FormatVersion: ml.FormatVersion, Features: b.Features},
	}
	for _, name := range Files {
		if err := writeJSON(filepath.Join(dir, name), files[name]); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a bundle from dir. Any missing, undecodable, or
// version-mismatched file fails the whole load.
func Load(dir string) (*Bundle, error) {
	b := &Bundle{
		Feedback: &ml.Pipeline{},
		Priority: &ml.Pipeline{},
		Accept:   &ml.Pipeline{},
	}
	var pri, fb encoderFile
	var feats featuresFile

	targets := map[string]any{
		FeedbackModelFile:   b.Feedback,
		PriorityModelFile:   b.Priority,
		AcceptModelFile:     b.Accept,
		PriorityEncoderFile: &pri,
		FeedbackEncoderFile: &fb,
		FeaturesFile:        &feats,
	}
	for _, name := range Files {
		if err := readJSON(filepath.Join(dir, name), targets[name]); err != nil {
			return nil, err
		}
	}

	for name, v := range map[string]int{
		PriorityEncoderFile: pri.FormatVersion,
		FeedbackEncoderFile: fb.FormatVersion,
		FeaturesFile:        feats.FormatVersion,
	} {
		if v != ml.FormatVersion {
			return nil, fmt.Errorf("%s: %w: %d", name, ml.ErrFormatVersion, v)
		}
	}
	if len(feats.Features) == 0 {
		return nil, fmt.Errorf("%s: empty feature list", FeaturesFile)
	}

	b.PriorityEncoder = &ml.LabelEncoder{Classes: pri.Classes}
	b.FeedbackEncoder = &ml.LabelEncoder{Classes: fb.Classes}
	b.Features = feats.Features
	return b, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
