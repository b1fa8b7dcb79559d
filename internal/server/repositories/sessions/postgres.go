package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/common"
	"github.com/dmitrijs2005/tourvault/internal/dbx"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
)

// PostgresRepository implements session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new pending session. The object key carries a UNIQUE
// constraint, so a key collision surfaces as a db error here rather than as
// a silent overwrite in storage.
func (r *PostgresRepository) Create(ctx context.Context, s *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (id, owner_id, object_key, filename, declared_size, status)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.OwnerID, s.ObjectKey, s.Filename, int64(s.DeclaredSize), string(s.Status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetForOwner returns the session with the given id if it belongs to ownerID.
// Sessions of other principals are reported as not found, never as forbidden,
// so their existence does not leak.
func (r *PostgresRepository) GetForOwner(ctx context.Context, id, ownerID string) (*models.UploadSession, error) {
	query := `
		SELECT id, owner_id, object_key, filename, declared_size, actual_size,
		       status, error, created_at, updated_at, completed_at
		FROM upload_sessions
		WHERE id=$1 AND owner_id=$2;
	`
	var (
		s            models.UploadSession
		declared     int64
		actual       int64
		status       string
		completedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&s.ID, &s.OwnerID, &s.ObjectKey, &s.Filename, &declared, &actual,
		&status, &s.Error, &s.CreatedAt, &s.UpdatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select session: %w", err)
	}

	s.DeclaredSize = uint64(declared)
	s.ActualSize = uint64(actual)
	s.Status = models.UploadStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

// MarkCompleted transitions the session to completed and records the verified
// size. Re-marking an already completed session is a no-op that still
// succeeds (idempotent completion); any other starting state is a conflict.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string, actualSize uint64) error {
	query := `
		UPDATE upload_sessions
		SET status='completed', actual_size=$2, error='', updated_at=now(), completed_at=now()
		WHERE id=$1 AND status IN ('pending', 'completed');
	`
	return r.execTransition(ctx, query, id, int64(actualSize))
}

// MarkFailed transitions the session to failed with the given reason.
// Idempotent for sessions already failed.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id, reason string) error {
	query := `
		UPDATE upload_sessions
		SET status='failed', error=$2, updated_at=now(), completed_at=now()
		WHERE id=$1 AND status IN ('pending', 'failed');
	`
	return r.execTransition(ctx, query, id, reason)
}

func (r *PostgresRepository) execTransition(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorStatusConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// DeleteExpired garbage-collects sessions whose last update is older than the
// retention window and returns the number of rows removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM upload_sessions WHERE updated_at < $1;`
	res, err := r.db.ExecContext(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
