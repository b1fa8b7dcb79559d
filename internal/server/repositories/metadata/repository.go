package metadata

import "context"

// Repository rewrites artifact references in the relational store during a
// rename. Both methods are meant to run inside one transaction (construct
// the repository over the dbx.DBTX of a dbx.WithTx callback) so readers see
// either the old name everywhere or the new name everywhere.
type Repository interface {
	// RenameAssignments rewrites owner→artifact assignment rows from oldName
	// to newName and returns the number of rows changed.
	RenameAssignments(ctx context.Context, oldName, newName string) (int64, error)
	// RenameMetadata rewrites per-artifact metadata rows' key from oldName to
	// newName and returns the number of rows changed.
	RenameMetadata(ctx context.Context, oldName, newName string) (int64, error)
}
