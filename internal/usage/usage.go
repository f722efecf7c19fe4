// Package usage enforces the per-user monthly prediction quota.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/budgetme/prediction-api/internal/model"
	"github.com/budgetme/prediction-api/internal/store"
)

const (
	// DefaultMaxPerMonth is the number of prediction runs a user gets per
	// rolling 30-day window.
	DefaultMaxPerMonth = 5
	// resetInterval is the rolling quota window.
	resetInterval = 30 * 24 * time.Hour
)

// ErrQuotaExceeded is returned when a user has no prediction runs left.
var ErrQuotaExceeded = errors.New("usage: monthly prediction quota exceeded")

// Service manages usage records on top of a Store. A user's record is created
// lazily on first sight and reset when its rolling window expires.
type Service struct {
	store       store.Store
	maxPerMonth int
	log         *logrus.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewService builds a usage service. maxPerMonth <= 0 selects the default.
func NewService(st store.Store, maxPerMonth int, log *logrus.Logger) *Service {
	if maxPerMonth <= 0 {
		maxPerMonth = DefaultMaxPerMonth
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:       st,
		maxPerMonth: maxPerMonth,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Status reports a user's quota position, initializing or resetting the
// record as needed.
func (s *Service) Status(ctx context.Context, userID string) (*model.UsageStatus, error) {
	record, err := s.ensureCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusOf(record), nil
}

// Consume atomically claims one prediction run for the user. It returns the
// post-increment status, or ErrQuotaExceeded when nothing is left.
func (s *Service) Consume(ctx context.Context, userID string) (*model.UsageStatus, error) {
	if _, err := s.ensureCurrent(ctx, userID); err != nil {
		return nil, err
	}

	record, err := s.store.IncrementUsage(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("failed to increment usage: %w", err)
	}
	return statusOf(record), nil
}

// Reset zeroes a user's usage count and starts a fresh window.
func (s *Service) Reset(ctx context.Context, userID string) (*model.UsageStatus, error) {
	record, err := s.ensureCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	record.UsageCount = 0
	record.ResetDate = now.Add(resetInterval)
	record.UpdatedAt = now
	if err := s.store.UpdateUsage(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to reset usage: %w", err)
	}
	return statusOf(record), nil
}

// SweepExpired resets every record whose window has lapsed and returns how
// many were reset. Run periodically so quotas recover even for users who
// never issue another request.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.store.ListExpiredUsage(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired usage: %w", err)
	}

	swept := 0
	for _, record := range expired {
		record.UsageCount = 0
		record.ResetDate = now.Add(resetInterval)
		record.UpdatedAt = now
		if err := s.store.UpdateUsage(ctx, record); err != nil {
			s.log.WithError(err).WithField("user_id", record.UserID).
				Warn("failed to sweep usage record")
			continue
		}
		swept++
	}
	return swept, nil
}

// ensureCurrent loads the user's record, creating it on first sight and
// resetting it if its window has lapsed.
func (s *Service) ensureCurrent(ctx context.Context, userID string) (*model.UsageRecord, error) {
	now := s.now()

	record, err := s.store.GetUsage(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		record = &model.UsageRecord{
			UserID:     userID,
			UsageCount: 0,
			MaxUsage:   s.maxPerMonth,
			ResetDate:  now.Add(resetInterval),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.CreateUsage(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create usage record: %w", err)
		}
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load usage record: %w", err)
	}

	if record.ResetDate.Before(now) {
		record.UsageCount = 0
		record.ResetDate = now.Add(resetInterval)
		record.UpdatedAt = now
		if err := s.store.UpdateUsage(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to reset expired usage: %w", err)
		}
	}
	return record, nil
}

func statusOf(record *model.UsageRecord) *model.UsageStatus {
	remaining := record.MaxUsage - record.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return &model.UsageStatus{
		UserID:       record.UserID,
		CurrentUsage: record.UsageCount,
		MaxUsage:     record.MaxUsage,
		ResetDate:    record.ResetDate,
		Exceeded:     record.UsageCount >= record.MaxUsage,
		Remaining:    remaining,
	}
}
