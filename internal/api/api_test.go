package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sentinel/internal/predictor"
)

// stubPredictor records its input and returns a fixed result.
type stubPredictor struct {
	got  predictor.Input
	pred predictor.Prediction
	err  error
}

func (s *stubPredictor) Predict(in predictor.Input) (predictor.Prediction, error) {
	s.got = in
	if err := in.Validate(); err != nil {
		return predictor.Prediction{}, err
	}
	return s.pred, s.err
}

func setupTestServer(t *testing.T) (*Server, *stubPredictor) {
	t.Helper()
	stub := &stubPredictor{pred: predictor.Prediction{Feedback: "minor", Priority: "high", AcceptProb: 0.731}}
	return NewServer(stub), stub
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "GET", "/", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ML API is live!", body["message"])
	assert.Equal(t, "/docs", body["docs"])
}

func TestUnknownPath(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredict_OK(t *testing.T) {
	srv, stub := setupTestServer(t)

	w := do(t, srv.Router(), "POST", "/predict", `{"severity_score": 9.1, "contains_security_fix": true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body, 3)
	assert.Equal(t, "minor", body["feedback"])
	assert.Equal(t, "high", body["priority"])
	assert.Equal(t, 0.731, body["accept_prob"])

	assert.Equal(t, 9.1, stub.got.SeverityScore)
	assert.Equal(t, predictor.DefaultInput().CodeComplexity, stub.got.CodeComplexity)
}

func TestPredict_EmptyBodyUsesDefaults(t *testing.T) {
	srv, stub := setupTestServer(t)

	w := do(t, srv.Router(), "POST", "/predict", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, predictor.DefaultInput(), stub.got)
}

func TestPredict_ValidationError(t *testing.T) {
	srv, _ := setupTestServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"out of range", `{"test_coverage": 1.5}`, "test_coverage"},
		{"wrong type", `{"severity_score": "high"}`, "severity_score"},
		{"malformed", `{"severity_score":`, "body"},
		{"negative", `{"developer_feedbacks": -1}`, "developer_feedbacks"},
		{"trailing data", `{"severity_score": 5} junk`, "body"},
		{"bad flag", `{"contains_security_fix": "yes"}`, "contains_security_fix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv.Router(), "POST", "/predict", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			require.NotEmpty(t, body.Fields)
			assert.Equal(t, tt.field, body.Fields[0].Field)
		})
	}
}

func TestPredict_InternalError(t *testing.T) {
	srv, stub := setupTestServer(t)
	stub.err = fmt.Errorf("%w: boom", predictor.ErrInference)

	w := do(t, srv.Router(), "POST", "/predict", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "boom")
	assert.Empty(t, body.Fields)
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "GET", "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "OPTIONS", "/predict", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteError_PlainValidation(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("wrapped: %w", predictor.ErrValidation))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	writeError(w, errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDocs(t *testing.T) {
	srv, _ := setupTestServer(t)
	h := srv.Router()

	w := do(t, h, "GET", "/docs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "POST /predict")

	w = do(t, h, "GET", "/docs/openapi.json", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/predict"`)
}
