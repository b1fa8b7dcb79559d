// Package http is the gin-based boundary adapter exposing the upload and
// rename operations as a JSON API with a uniform response envelope.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/tourvault/internal/logging"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
	"github.com/dmitrijs2005/tourvault/internal/server/services"
)

// UploadAPI is the slice of the upload service the handlers call.
type UploadAPI interface {
	RequestChunkUpload(ctx context.Context, ownerID, filename string, declaredSize uint64) (*services.UploadTarget, error)
	StoreChunk(ctx context.Context, ownerID, sessionID string, seq int, r io.Reader) error
	FinalizeChunkedUpload(ctx context.Context, ownerID, sessionID string) (*models.UploadSession, error)
	RequestDirectUpload(ctx context.Context, ownerID, filename string, declaredSize uint64) (*services.UploadTarget, error)
	CompleteDirectUpload(ctx context.Context, ownerID, sessionID string, success bool, reason string) (*models.UploadSession, error)
	Status(ctx context.Context, ownerID, sessionID string) (*models.UploadSession, error)
	RequestDownload(ctx context.Context, ownerID, sessionID string) (*services.UploadTarget, error)
}

// RenameAPI is the slice of the rename service the handlers call.
type RenameAPI interface {
	Rename(ctx context.Context, oldName, newName string, force bool) (*models.RenameResult, error)
}

// ProgressAPI is the read side of the progress tracker.
type ProgressAPI interface {
	Get(ctx context.Context, operationID string) (*models.ProgressRecord, error)
}

type Server struct {
	engine     *gin.Engine
	listenAddr string
	uploads    UploadAPI
	renames    RenameAPI
	progress   ProgressAPI
	secretKey  []byte
	logger     logging.Logger

	srv *http.Server
}

func NewServer(
	listenAddr string,
	uploads UploadAPI,
	renames RenameAPI,
	progress ProgressAPI,
	secretKey []byte,
	logger logging.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		listenAddr: listenAddr,
		uploads:    uploads,
		renames:    renames,
		progress:   progress,
		secretKey:  secretKey,
		logger:     logger.With("module", "http"),
	}
	s.initRouters()
	return s
}

func (s *Server) initRouters() {
	api := s.engine.Group("/api", authMiddleware(s.secretKey))

	api.POST("/uploads/chunked", s.requestChunkUpload)
	api.PUT("/uploads/chunked/:id/:seq", s.storeChunk)
	api.POST("/uploads/chunked/:id/finalize", s.finalizeChunkedUpload)

	api.POST("/uploads/direct", s.requestDirectUpload)
	api.POST("/uploads/direct/:id/complete", s.completeDirectUpload)

	api.GET("/uploads/:id/status", s.uploadStatus)
	api.GET("/uploads/:id/download", s.requestDownload)

	api.POST("/artifacts/rename", s.renameArtifact)
	api.GET("/operations/:id", s.operationProgress)
}

// Serve runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server starting", "addr", s.listenAddr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info(shutdownCtx, "http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
