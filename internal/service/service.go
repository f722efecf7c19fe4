// Package service exposes the prediction pipeline over HTTP: generation,
// usage, history, validation and cache management endpoints.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/budgetme/prediction-api/internal/forecast"
	"github.com/budgetme/prediction-api/internal/insights"
	"github.com/budgetme/prediction-api/internal/model"
	"github.com/budgetme/prediction-api/internal/store"
	"github.com/budgetme/prediction-api/internal/usage"
)

// backgroundTimeout bounds the post-response persistence work.
const backgroundTimeout = 10 * time.Second

// PredictionService wires the pipeline, usage quota, persistence and insight
// generation behind the HTTP API.
type PredictionService struct {
	pipeline *forecast.Pipeline
	store    store.Store
	usage    *usage.Service
	insights insights.Generator
	log      *logrus.Logger

	now   func() time.Time
	newID func() string
	// spawn runs post-response work; swapped for a synchronous version in
	// tests.
	spawn func(fn func())
}

// New builds the service. The insight generator may be the LLM-backed one or
// the deterministic fallback.
func New(pipeline *forecast.Pipeline, st store.Store, usageSvc *usage.Service, gen insights.Generator, log *logrus.Logger) *PredictionService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PredictionService{
		pipeline: pipeline,
		store:    st,
		usage:    usageSvc,
		insights: gen,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
		spawn:    func(fn func()) { go fn() },
	}
}

// Routes registers the prediction endpoints on the given router, normally
// the authenticated /api/v1 subrouter.
func (s *PredictionService) Routes(r *mux.Router) {
	api := r.PathPrefix("/predictions").Subrouter()
	api.HandleFunc("/generate", s.handleGenerate).Methods("POST")
	api.HandleFunc("/usage", s.handleUsage).Methods("GET")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/validate", s.handleValidate).Methods("POST")
	api.HandleFunc("/cache", s.handleClearCache).Methods("DELETE")
}

// persistRun saves the result and claims a quota slot after a successful run.
// Both are best effort: the user already has their response.
func (s *PredictionService) persistRun(userID string, result *model.PredictionResult) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	record := &model.PredictionRecord{
		ID:          s.newID(),
		UserID:      userID,
		Timeframe:   result.Timeframe,
		Result:      *result,
		GeneratedAt: result.GeneratedAt,
		ExpiresAt:   result.ExpiresAt,
	}
	if err := s.store.SavePrediction(ctx, record); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to cache prediction result")
	}
	if _, err := s.usage.Consume(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to record prediction usage")
	}
}
