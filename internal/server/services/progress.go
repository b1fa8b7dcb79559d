package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/common"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
	"github.com/dmitrijs2005/tourvault/internal/server/repositories/progress"
)

// ProgressService is the TTL-bound tracker for long-running operations.
// Records expire a fixed interval after their last write regardless of
// state, so abandoned operations clean themselves up.
type ProgressService struct {
	repo progress.Repository
	ttl  time.Duration

	// now is injectable for tests.
	now func() time.Time
}

func NewProgressService(repo progress.Repository, ttl time.Duration) *ProgressService {
	return &ProgressService{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Init registers a new running operation at zero percent.
func (s *ProgressService) Init(ctx context.Context, operationID, opType, target string) error {
	now := s.now()
	record := &models.ProgressRecord{
		OperationID: operationID,
		Type:        opType,
		Target:      target,
		Status:      models.ProgressStatusRunning,
		Percent:     0,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Init(ctx, record); err != nil {
		return fmt.Errorf("error initializing progress record: %w", err)
	}
	return nil
}

// Update writes a new percent and message. Percent is clamped to [0,100].
func (s *ProgressService) Update(ctx context.Context, operationID string, percent int, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if err := s.repo.Update(ctx, operationID, percent, message); err != nil {
		return fmt.Errorf("error updating progress record: %w", err)
	}
	return nil
}

// Complete marks the operation finished at 100 percent.
func (s *ProgressService) Complete(ctx context.Context, operationID, message string) error {
	if err := s.repo.Complete(ctx, operationID, message); err != nil {
		return fmt.Errorf("error completing progress record: %w", err)
	}
	return nil
}

// Fail marks the operation failed, keeping the last reported percent.
func (s *ProgressService) Fail(ctx context.Context, operationID, message string) error {
	if err := s.repo.Fail(ctx, operationID, message); err != nil {
		return fmt.Errorf("error failing progress record: %w", err)
	}
	return nil
}

// Get returns the record for operationID. A record whose last write is older
// than the TTL is treated as gone and reported as common.ErrorNotFound.
func (s *ProgressService) Get(ctx context.Context, operationID string) (*models.ProgressRecord, error) {
	record, err := s.repo.Get(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if s.now().Sub(record.UpdatedAt) > s.ttl {
		return nil, common.ErrorNotFound
	}
	return record, nil
}

// DeleteExpired garbage-collects records past the TTL and returns the count.
func (s *ProgressService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.ttl)
}
