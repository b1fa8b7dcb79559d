package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/tourvault/internal/server/models"
)

type renameRequest struct {
	OldName string `json:"old_name" binding:"required"`
	NewName string `json:"new_name" binding:"required"`
	Force   bool   `json:"force"`
}

type renameResultDTO struct {
	Outcome          string  `json:"outcome"`
	OperationID      string  `json:"operation_id"`
	Strategy         string  `json:"strategy"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
	ElapsedSeconds   float64 `json:"elapsed_seconds,omitempty"`
}

type progressDTO struct {
	OperationID string     `json:"operation_id"`
	Type        string     `json:"type"`
	Target      string     `json:"target"`
	Status      string     `json:"status"`
	Percent     int        `json:"percent"`
	Message     string     `json:"message,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func toRenameResultDTO(r *models.RenameResult) renameResultDTO {
	return renameResultDTO{
		Outcome:          string(r.Outcome),
		OperationID:      r.OperationID,
		Strategy:         string(r.Strategy),
		EstimatedSeconds: r.Estimated.Seconds(),
		ElapsedSeconds:   r.Elapsed.Seconds(),
	}
}

func toProgressDTO(p *models.ProgressRecord) progressDTO {
	return progressDTO{
		OperationID: p.OperationID,
		Type:        p.Type,
		Target:      p.Target,
		Status:      string(p.Status),
		Percent:     p.Percent,
		Message:     p.Message,
		StartedAt:   p.StartedAt,
		UpdatedAt:   p.UpdatedAt,
		FinishedAt:  p.FinishedAt,
	}
}

func (s *Server) renameArtifact(ctx *gin.Context) {
	var req renameRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, Failed("bad_argument", "missing argument or invalid argument"))
		return
	}

	result, err := s.renames.Rename(ctx.Request.Context(), req.OldName, req.NewName, req.Force)
	if err != nil {
		s.logger.Warn(ctx.Request.Context(), "rename rejected", "old", req.OldName, "new", req.NewName, "error", err)
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toRenameResultDTO(result)))
}

func (s *Server) operationProgress(ctx *gin.Context) {
	record, err := s.progress.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(FailedError(err))
		return
	}

	ctx.JSON(http.StatusOK, OK(toProgressDTO(record)))
}
