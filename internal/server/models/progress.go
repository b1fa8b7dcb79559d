package models

import "time"

// ProgressStatus is the state of a long-running operation.
type ProgressStatus string

const (
	ProgressStatusRunning   ProgressStatus = "running"
	ProgressStatusCompleted ProgressStatus = "completed"
	ProgressStatusFailed    ProgressStatus = "failed"
)

// ProgressRecord is a TTL-bound status snapshot polled by clients while a
// long-running operation (rename, assembly) executes. Records expire a fixed
// interval after their last write regardless of state, so abandoned
// operations clean themselves up.
type ProgressRecord struct {
	// OperationID identifies the operation being tracked.
	OperationID string
	// Type names the kind of operation, e.g. "rename".
	Type string
	// Target is the object the operation acts on, e.g. the artifact name.
	Target string

	Status ProgressStatus
	// Percent is clamped to [0,100] on every write.
	Percent int
	Message string

	StartedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}
