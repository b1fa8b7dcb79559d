package progress

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

// PostgresRepository implements progress storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Init upserts the initial running record for an operation. Re-initializing
// an operation id restarts its record (the id is a fresh UUID per operation,
// so in practice this is only hit by retries of the init call itself).
func (r *PostgresRepository) Init(ctx context.Context, rec *models.ProgressRecord) error {
	query := `
		INSERT INTO progress_records (operation_id, type, target, status, percent, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (operation_id)
		DO UPDATE SET
			type = EXCLUDED.type,
			target = EXCLUDED.target,
			status = EXCLUDED.status,
			percent = EXCLUDED.percent,
			message = EXCLUDED.message,
			updated_at = now(),
			finished_at = NULL;
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.OperationID, rec.Type, rec.Target, string(rec.Status), rec.Percent, rec.Message)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites percent and message and bumps updated_at, which also
// extends the record's TTL.
func (r *PostgresRepository) Update(ctx context.Context, operationID string, percent int, message string) error {
	query := `
		UPDATE progress_records
		SET percent=$2, message=$3, updated_at=now()
		WHERE operation_id=$1;
	`
	return r.execUpdate(ctx, query, operationID, percent, message)
}

// Complete writes the terminal completed status at 100 percent.
func (r *PostgresRepository) Complete(ctx context.Context, operationID string, message string) error {
	query := `
		UPDATE progress_records
		SET status='completed', percent=100, message=$2, updated_at=now(), finished_at=now()
		WHERE operation_id=$1;
	`
	return r.execUpdate(ctx, query, operationID, message)
}

// Fail writes the terminal failed status; the last reported percent stays.
func (r *PostgresRepository) Fail(ctx context.Context, operationID string, message string) error {
	query := `
		UPDATE progress_records
		SET status='failed', message=$2, updated_at=now(), finished_at=now()
		WHERE operation_id=$1;
	`
	return r.execUpdate(ctx, query, operationID, message)
}

func (r *PostgresRepository) execUpdate(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Get returns the record for operationID, expired or not.
func (r *PostgresRepository) Get(ctx context.Context, operationID string) (*models.ProgressRecord, error) {
	query := `
		SELECT operation_id, type, target, status, percent, message,
		       started_at, updated_at, finished_at
		FROM progress_records
		WHERE operation_id=$1;
	`
	var (
		rec        models.ProgressRecord
		status     string
		finishedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, operationID).Scan(
		&rec.OperationID, &rec.Type, &rec.Target, &status, &rec.Percent, &rec.Message,
		&rec.StartedAt, &rec.UpdatedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select progress record: %w", err)
	}

	rec.Status = models.ProgressStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return &rec, nil
}

// DeleteExpired removes records whose last write is older than ttl,
// regardless of completion status.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `DELETE FROM progress_records WHERE updated_at < $1;`
	res, err := r.db.ExecContext(ctx, query, time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
