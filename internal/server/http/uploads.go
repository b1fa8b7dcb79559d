package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/tourvault/internal/server/models"
	"github.com/dmitrijs2005/tourvault/internal/server/services"
)

type uploadRequest struct {
	Filename     string `json:"filename" binding:"required"`
	DeclaredSize uint64 `json:"declared_size" binding:"required"`
}

type completeRequest struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type uploadTargetDTO struct {
	SessionID string     `json:"session_id"`
	ObjectKey string     `json:"object_key"`
	Method    string     `json:"method,omitempty"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type sessionDTO struct {
	SessionID    string     `json:"session_id"`
	ObjectKey    string     `json:"object_key"`
	Filename     string     `json:"filename"`
	DeclaredSize uint64     `json:"declared_size"`
	ActualSize   uint64     `json:"actual_size"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func toTargetDTO(t *services.UploadTarget) uploadTargetDTO {
	dto := uploadTargetDTO{
		SessionID: t.SessionID,
		ObjectKey: t.ObjectKey,
		Method:    t.Method,
		URL:       t.URL,
	}
	if !t.ExpiresAt.IsZero() {
		dto.ExpiresAt = &t.ExpiresAt
	}
	return dto
}

func toSessionDTO(s *models.UploadSession) sessionDTO {
	return sessionDTO{
		SessionID:    s.ID,
		ObjectKey:    s.ObjectKey,
		Filename:     s.Filename,
		DeclaredSize: s.DeclaredSize,
		ActualSize:   s.ActualSize,
		Status:       string(s.Status),
		Error:        s.Error,
		CreatedAt:    s.CreatedAt,
		CompletedAt:  s.CompletedAt,
	}
}

func (s *Server) requestChunkUpload(ctx *gin.Context) {
	var req uploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, Failed("bad_argument", "missing argument or invalid argument"))
		return
	}

	target, err := s.uploads.RequestChunkUpload(ctx.Request.Context(), principal(ctx), req.Filename, req.DeclaredSize)
	if err != nil {
		s.logger.Warn(ctx.Request.Context(), "chunk upload request rejected", "error", err)
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toTargetDTO(target)))
}

func (s *Server) storeChunk(ctx *gin.Context) {
	seq, err := strconv.Atoi(ctx.Param("seq"))
	if err != nil || seq < 0 {
		ctx.JSON(http.StatusBadRequest, Failed("bad_argument", "sequence number must be a non-negative integer"))
		return
	}

	err = s.uploads.StoreChunk(ctx.Request.Context(), principal(ctx), ctx.Param("id"), seq, ctx.Request.Body)
	if err != nil {
		s.logger.Warn(ctx.Request.Context(), "chunk store failed", "session_id", ctx.Param("id"), "seq", seq, "error", err)
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(nil))
}

func (s *Server) finalizeChunkedUpload(ctx *gin.Context) {
	session, err := s.uploads.FinalizeChunkedUpload(ctx.Request.Context(), principal(ctx), ctx.Param("id"))
	if err != nil {
		s.logger.Warn(ctx.Request.Context(), "finalize failed", "session_id", ctx.Param("id"), "error", err)
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toSessionDTO(session)))
}

func (s *Server) requestDirectUpload(ctx *gin.Context) {
	var req uploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, Failed("bad_argument", "missing argument or invalid argument"))
		return
	}

	target, err := s.uploads.RequestDirectUpload(ctx.Request.Context(), principal(ctx), req.Filename, req.DeclaredSize)
	if err != nil {
		s.logger.Warn(ctx.Request.Context(), "direct upload request rejected", "error", err)
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toTargetDTO(target)))
}

func (s *Server) completeDirectUpload(ctx *gin.Context) {
	var req completeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, Failed("bad_argument", "missing argument or invalid argument"))
		return
	}

	session, err := s.uploads.CompleteDirectUpload(ctx.Request.Context(), principal(ctx), ctx.Param("id"), req.Success, req.Error)
	if err != nil {
		s.logger.Warn(ctx.Request.Context(), "completion failed", "session_id", ctx.Param("id"), "error", err)
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toSessionDTO(session)))
}

func (s *Server) uploadStatus(ctx *gin.Context) {
	session, err := s.uploads.Status(ctx.Request.Context(), principal(ctx), ctx.Param("id"))
	if err != nil {
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toSessionDTO(session)))
}

func (s *Server) requestDownload(ctx *gin.Context) {
	target, err := s.uploads.RequestDownload(ctx.Request.Context(), principal(ctx), ctx.Param("id"))
	if err != nil {
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toTargetDTO(target)))
}
