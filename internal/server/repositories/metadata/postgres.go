package metadata

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tourvault/internal/dbx"
)

// PostgresRepository implements artifact metadata rewrites over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RenameAssignments rewrites all owner→artifact assignment rows that point at
// oldName. Zero affected rows is not an error: an artifact may simply have no
// assignments.
func (r *PostgresRepository) RenameAssignments(ctx context.Context, oldName, newName string) (int64, error) {
	query := `UPDATE artifact_assignments SET artifact_name=$2 WHERE artifact_name=$1;`
	res, err := r.db.ExecContext(ctx, query, oldName, newName)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// RenameMetadata rewrites all per-artifact metadata rows keyed by oldName.
func (r *PostgresRepository) RenameMetadata(ctx context.Context, oldName, newName string) (int64, error) {
	query := `UPDATE artifact_metadata SET artifact_name=$2, updated_at=now() WHERE artifact_name=$1;`
	res, err := r.db.ExecContext(ctx, query, oldName, newName)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
