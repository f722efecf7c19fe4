package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/budgetme/prediction-api/internal/model"
)

// MemoryStore implements the Store interface in memory. Used for tests and
// local development without Firestore credentials.
type MemoryStore struct {
	mu          sync.RWMutex
	usage       map[string]*model.UsageRecord
	predictions map[string]*model.PredictionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usage:       make(map[string]*model.UsageRecord),
		predictions: make(map[string]*model.PredictionRecord),
	}
}

// GetUsage retrieves a user's usage record.
func (s *MemoryStore) GetUsage(_ context.Context, userID string) (*model.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.usage[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

// CreateUsage stores a usage record keyed by user ID.
func (s *MemoryStore) CreateUsage(_ context.Context, record *model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.usage[record.UserID] = &clone
	return nil
}

// UpdateUsage overwrites a user's usage record.
func (s *MemoryStore) UpdateUsage(_ context.Context, record *model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.usage[record.UserID] = &clone
	return nil
}

// IncrementUsage bumps the usage count under the store lock, mirroring the
// transactional semantics of the Firestore implementation.
func (s *MemoryStore) IncrementUsage(_ context.Context, userID string) (*model.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.usage[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if record.UsageCount >= record.MaxUsage {
		return nil, ErrQuotaExceeded
	}
	record.UsageCount++
	record.UpdatedAt = time.Now().UTC()

	clone := *record
	return &clone, nil
}

// ListExpiredUsage returns usage records whose reset date has passed.
func (s *MemoryStore) ListExpiredUsage(_ context.Context, before time.Time) ([]*model.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*model.UsageRecord
	for _, record := range s.usage {
		if record.ResetDate.Before(before) {
			clone := *record
			records = append(records, &clone)
		}
	}
	return records, nil
}

// SavePrediction persists a prediction result.
func (s *MemoryStore) SavePrediction(_ context.Context, record *model.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.predictions[record.ID] = &clone
	return nil
}

// GetLatestPrediction returns the newest prediction for a user and timeframe.
func (s *MemoryStore) GetLatestPrediction(ctx context.Context, userID string, timeframe model.Timeframe) (*model.PredictionRecord, error) {
	records, err := s.ListPredictions(ctx, userID, timeframe, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// ListPredictions returns a user's predictions, newest first.
func (s *MemoryStore) ListPredictions(_ context.Context, userID string, timeframe model.Timeframe, limit int) ([]*model.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*model.PredictionRecord
	for _, record := range s.predictions {
		if record.UserID != userID {
			continue
		}
		if timeframe != "" && record.Timeframe != timeframe {
			continue
		}
		clone := *record
		records = append(records, &clone)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].GeneratedAt.After(records[j].GeneratedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// DeletePredictions removes all of a user's predictions.
func (s *MemoryStore) DeletePredictions(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, record := range s.predictions {
		if record.UserID == userID {
			delete(s.predictions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
