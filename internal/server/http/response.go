package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/tourvault/internal/common"
)

// ErrorBody carries the machine-readable part of a failure response.
type ErrorBody struct {
	Code    string `json:"code"`
	Context string `json:"context,omitempty"`
}

// Response is the uniform envelope of every API reply.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func OK(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

func Failed(code string, msg string) Response {
	return Response{
		Success: false,
		Message: msg,
		Error:   &ErrorBody{Code: code},
	}
}

// FailedError maps a service error to an HTTP status and envelope. Validation
// and configuration errors are surfaced verbatim; verification and internal
// failures return a generic message, full detail stays in the server logs.
func FailedError(err error) (int, Response) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, Failed("validation_failed", err.Error())
	case errors.Is(err, common.ErrorRateLimited):
		return http.StatusTooManyRequests, Failed("rate_limited", "too many upload requests, retry later")
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, Failed("not_found", "not found")
	case errors.Is(err, common.ErrorStatusConflict):
		return http.StatusConflict, Failed("status_conflict", err.Error())
	case errors.Is(err, common.ErrorMissingChunk):
		return http.StatusUnprocessableEntity, Failed("missing_chunk", err.Error())
	case errors.Is(err, common.ErrorVerificationFailed):
		return http.StatusUnprocessableEntity, Failed("verification_failed", "upload verification failed")
	case errors.Is(err, common.ErrorNotConfigured):
		return http.StatusServiceUnavailable, Failed("not_configured", err.Error())
	default:
		return http.StatusInternalServerError, Failed("internal", "operation failed")
	}
}
