// Package common defines shared constants and sentinel errors used across
// client and server layers of TourVault. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Upload validation errors (bad filename, size or type). Never retried,
	// surfaced to the caller verbatim.
	ErrorValidation = errors.New("validation error")

	// ErrorRateLimited is returned when a principal exceeds the per-principal
	// upload request budget. The caller may retry after a delay.
	ErrorRateLimited = errors.New("rate limit exceeded")

	// ErrorMissingChunk signals a gap or duplicate in the staged chunk
	// sequence discovered during assembly.
	ErrorMissingChunk = errors.New("missing chunk")

	// ErrorVerificationFailed means the object was absent from storage or its
	// size did not match the declared size after a claimed completion.
	// Terminal: the session is marked failed and nothing is ingested.
	ErrorVerificationFailed = errors.New("upload verification failed")

	// ErrorNotConfigured is returned when object storage credentials or the
	// bucket are missing from the configuration.
	ErrorNotConfigured = errors.New("object storage not configured")

	// ErrorStatusConflict is returned when a session status transition other
	// than pending→terminal (or an idempotent terminal re-write) is attempted.
	ErrorStatusConflict = errors.New("status conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
