package models

import "time"

// RenameStrategy selects how a rename moves data on disk.
type RenameStrategy string

const (
	// RenameStrategySimple is a single atomic directory move, used when the
	// file count is below the chunk threshold.
	RenameStrategySimple RenameStrategy = "simple"
	// RenameStrategyChunked copies entries in batches with verification
	// before the source is removed.
	RenameStrategyChunked RenameStrategy = "chunked"
)

// RenameOperation is the transient description of one rename. It is not
// persisted beyond its ProgressRecord.
type RenameOperation struct {
	OperationID string
	OldName     string
	NewName     string
	Strategy    RenameStrategy
	// Estimated is the predicted execution time used to decide between
	// inline and queued execution.
	Estimated time.Duration
	FileCount int
	SizeBytes int64
}

// RenameOutcome says whether the rename ran inline to completion or was
// handed to the background queue.
type RenameOutcome string

const (
	RenameOutcomeCompleted RenameOutcome = "completed"
	RenameOutcomeQueued    RenameOutcome = "queued"
)

// RenameResult is returned to the caller of a rename request. OperationID is
// the progress handle for polling either outcome.
type RenameResult struct {
	Outcome     RenameOutcome
	OperationID string
	Strategy    RenameStrategy
	Estimated   time.Duration
	Elapsed     time.Duration
}
