// Package progress stores TTL-bound progress snapshots for long-running
// operations (renames, assemblies) shared across serving nodes.
package progress

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/server/models"
)

// Repository persists progress records. TTL interpretation (a record is stale
// once its last write is older than the tracker's TTL) lives in the tracker;
// this layer only stores, reads and garbage-collects rows.
type Repository interface {
	Init(ctx context.Context, record *models.ProgressRecord) error
	Update(ctx context.Context, operationID string, percent int, message string) error
	// Complete marks the operation finished and forces percent to 100.
	Complete(ctx context.Context, operationID string, message string) error
	// Fail marks the operation failed, leaving the last reported percent.
	Fail(ctx context.Context, operationID string, message string) error
	Get(ctx context.Context, operationID string) (*models.ProgressRecord, error)
	DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error)
}
