package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/budgetme/prediction-api/internal/model"
)

const (
	usageCollection      = "prediction_usage"
	predictionCollection = "predictions"
)

// FirestoreStore implements the Store interface using Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{client: client}
}

// GetUsage retrieves a user's usage record.
func (s *FirestoreStore) GetUsage(ctx context.Context, userID string) (*model.UsageRecord, error) {
	doc, err := s.client.Collection(usageCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}

	var record model.UsageRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to parse usage record: %w", err)
	}
	return &record, nil
}

// CreateUsage creates a usage record keyed by user ID.
func (s *FirestoreStore) CreateUsage(ctx context.Context, record *model.UsageRecord) error {
	_, err := s.client.Collection(usageCollection).Doc(record.UserID).Set(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

// UpdateUsage overwrites a user's usage record.
func (s *FirestoreStore) UpdateUsage(ctx context.Context, record *model.UsageRecord) error {
	_, err := s.client.Collection(usageCollection).Doc(record.UserID).Set(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to update usage record: %w", err)
	}
	return nil
}

// IncrementUsage bumps the usage count inside a Firestore transaction so that
// concurrent requests cannot race past the maximum.
func (s *FirestoreStore) IncrementUsage(ctx context.Context, userID string) (*model.UsageRecord, error) {
	ref := s.client.Collection(usageCollection).Doc(userID)

	var record model.UsageRecord
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		if err := doc.DataTo(&record); err != nil {
			return fmt.Errorf("failed to parse usage record: %w", err)
		}
		if record.UsageCount >= record.MaxUsage {
			return ErrQuotaExceeded
		}
		record.UsageCount++
		record.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListExpiredUsage returns usage records whose reset date has passed.
func (s *FirestoreStore) ListExpiredUsage(ctx context.Context, before time.Time) ([]*model.UsageRecord, error) {
	docs, err := s.client.Collection(usageCollection).
		Where("reset_date", "<", before).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired usage records: %w", err)
	}

	records := make([]*model.UsageRecord, 0, len(docs))
	for _, doc := range docs {
		var record model.UsageRecord
		if err := doc.DataTo(&record); err != nil {
			return nil, fmt.Errorf("failed to parse usage record: %w", err)
		}
		records = append(records, &record)
	}
	return records, nil
}

// SavePrediction persists a prediction result for later retrieval.
func (s *FirestoreStore) SavePrediction(ctx context.Context, record *model.PredictionRecord) error {
	_, err := s.client.Collection(predictionCollection).Doc(record.ID).Set(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// GetLatestPrediction returns the most recently generated prediction for a
// user and timeframe, or ErrNotFound.
func (s *FirestoreStore) GetLatestPrediction(ctx context.Context, userID string, timeframe model.Timeframe) (*model.PredictionRecord, error) {
	records, err := s.ListPredictions(ctx, userID, timeframe, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// ListPredictions returns a user's predictions, newest first, optionally
// filtered by timeframe.
func (s *FirestoreStore) ListPredictions(ctx context.Context, userID string, timeframe model.Timeframe, limit int) ([]*model.PredictionRecord, error) {
	query := s.client.Collection(predictionCollection).
		Where("user_id", "==", userID)
	if timeframe != "" {
		query = query.Where("timeframe", "==", string(timeframe))
	}
	query = query.OrderBy("generated_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	records := make([]*model.PredictionRecord, 0, len(docs))
	for _, doc := range docs {
		var record model.PredictionRecord
		if err := doc.DataTo(&record); err != nil {
			return nil, fmt.Errorf("failed to parse prediction: %w", err)
		}
		records = append(records, &record)
	}
	return records, nil
}

// DeletePredictions removes all of a user's cached predictions and reports
// how many were deleted.
func (s *FirestoreStore) DeletePredictions(ctx context.Context, userID string) (int, error) {
	docs, err := s.client.Collection(predictionCollection).
		Where("user_id", "==", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to list predictions for deletion: %w", err)
	}

	bw := s.client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := bw.Delete(doc.Ref); err != nil {
			return 0, fmt.Errorf("failed to delete prediction: %w", err)
		}
	}
	bw.End()
	return len(docs), nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
