package services

import (
	"context"

	"github.com/dmitrijs2005/tourvault/internal/logging"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
)

// RenameQueue receives rename operations whose cost estimate exceeds the
// inline execution budget. The queue worker is an external collaborator;
// only the hand-off is part of this system.
type RenameQueue interface {
	Enqueue(ctx context.Context, op *models.RenameOperation) error
}

// LoggingQueue acknowledges the hand-off in the log and drops the operation.
// Deployments without a worker keep using forced synchronous renames.
type LoggingQueue struct {
	logger logging.Logger
}

func NewLoggingQueue(logger logging.Logger) *LoggingQueue {
	return &LoggingQueue{logger: logger.With("module", "rename_queue")}
}

func (q *LoggingQueue) Enqueue(ctx context.Context, op *models.RenameOperation) error {
	q.logger.Info(ctx, "rename queued",
		"operation_id", op.OperationID,
		"old", op.OldName,
		"new", op.NewName,
		"estimated_seconds", op.Estimated.Seconds(),
	)
	return nil
}
