package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/server/models"
)

// Repository persists upload sessions. The status-transition invariant
// (pending→completed, pending→failed, plus idempotent re-writes of the same
// terminal state) is enforced at this layer.
type Repository interface {
	Create(ctx context.Context, session *models.UploadSession) error
	GetForOwner(ctx context.Context, id, ownerID string) (*models.UploadSession, error)
	MarkCompleted(ctx context.Context, id string, actualSize uint64) error
	MarkFailed(ctx context.Context, id, reason string) error
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}
