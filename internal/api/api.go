package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joescharf/sentinel/internal/predictor"
	"github.com/joescharf/sentinel/internal/ui"
)

// Predictor produces a prediction for one validated input.
type Predictor interface {
	Predict(in predictor.Input) (predictor.Prediction, error)
}

// Server provides the prediction API handlers.
type Server struct {
	predictor Predictor
}

// NewServer creates a new API server around a loaded predictor.
func NewServer(p Predictor) *Server {
	return &Server{predictor: p}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.root)
	mux.HandleFunc("POST /predict", s.predict)

	if docs, err := ui.Handler("/docs"); err == nil {
		mux.Handle("GET /docs", docs)
		mux.Handle("GET /docs/", docs)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string                 `json:"error"`
	Fields []predictor.FieldError `json:"fields,omitempty"`
}

// writeError maps predictor errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var verr *predictor.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: predictor.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, predictor.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ML API is live!",
		"docs":    "/docs",
	})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	in, err := predictor.DecodeInput(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	pred, err := s.predictor.Predict(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}
