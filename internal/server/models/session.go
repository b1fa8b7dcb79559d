// Package models defines server-side data models persisted in the database.
package models

import "time"

// UploadStatus tracks the lifecycle of an upload session. The only legal
// transitions are Pending→Completed and Pending→Failed.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadSession describes one tracked upload attempt, chunked or direct.
// Sessions are created when an upload target is issued, mutated only by the
// owning principal's completion calls, and garbage-collected after a
// retention window rather than deleted synchronously.
type UploadSession struct {
	// ID is the opaque session token handed to the client.
	ID string
	// OwnerID is the principal the session is scoped to. Sessions are
	// invisible to any other principal.
	OwnerID string
	// ObjectKey is the storage key the artifact lands under; globally unique
	// per session.
	ObjectKey string
	// Filename is the client-declared original filename.
	Filename string
	// DeclaredSize is the byte count the client announced up front.
	DeclaredSize uint64
	// ActualSize is the verified object size; zero until verification.
	ActualSize uint64

	Status UploadStatus
	// Error holds the failure reason for failed sessions.
	Error string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Terminal reports whether the session has reached a final state.
func (s *UploadSession) Terminal() bool {
	return s.Status == UploadStatusCompleted || s.Status == UploadStatusFailed
}
