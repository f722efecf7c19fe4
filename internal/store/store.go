// Package store persists usage quotas and cached prediction results. Two
// implementations exist: Firestore for production and an in-memory store for
// tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/budgetme/prediction-api/internal/model"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrQuotaExceeded is returned by IncrementUsage when the usage count has
	// already reached the record's maximum.
	ErrQuotaExceeded = errors.New("store: usage quota exceeded")
)

// Store defines the persistence operations used by the service.
type Store interface {
	// Usage quota operations. IncrementUsage must be atomic: concurrent
	// increments for one user may never push the count past MaxUsage.
	GetUsage(ctx context.Context, userID string) (*model.UsageRecord, error)
	CreateUsage(ctx context.Context, record *model.UsageRecord) error
	UpdateUsage(ctx context.Context, record *model.UsageRecord) error
	IncrementUsage(ctx context.Context, userID string) (*model.UsageRecord, error)
	ListExpiredUsage(ctx context.Context, before time.Time) ([]*model.UsageRecord, error)

	// Prediction cache operations.
	SavePrediction(ctx context.Context, record *model.PredictionRecord) error
	GetLatestPrediction(ctx context.Context, userID string, timeframe model.Timeframe) (*model.PredictionRecord, error)
	ListPredictions(ctx context.Context, userID string, timeframe model.Timeframe, limit int) ([]*model.PredictionRecord, error)
	DeletePredictions(ctx context.Context, userID string) (int, error)

	Close() error
}
