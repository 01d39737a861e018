package predictor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSetup marks missing or incompatible artifacts at load time.
	ErrSetup = errors.New("predictor setup failed")
	// ErrValidation marks a malformed prediction request.
	ErrValidation = errors.New("invalid input")
	// ErrInference marks an unexpected failure inside a model call.
	ErrInference = errors.New("prediction failed")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, format string, a ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, a...)})
}
