package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/chunkstore"
	"github.com/dmitrijs2005/tourvault/internal/common"
	"github.com/dmitrijs2005/tourvault/internal/logging"
	"github.com/dmitrijs2005/tourvault/internal/ratelimit"
	sc "github.com/dmitrijs2005/tourvault/internal/server/config"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
	"github.com/dmitrijs2005/tourvault/internal/server/objectstore"
	"github.com/dmitrijs2005/tourvault/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/tourvault/internal/sigv4"
	"github.com/google/uuid"
)

// allowedExtensions lists the archive types accepted for tour packages.
var allowedExtensions = map[string]bool{
	".zip": true,
	".tar": true,
	".tgz": true,
	".gz":  true,
	".7z":  true,
}

var sanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// UploadTarget is returned when an upload is requested. For direct uploads
// URL is the presigned PUT endpoint; for chunked uploads it is empty and the
// client drives the chunk API with SessionID instead.
type UploadTarget struct {
	SessionID string
	ObjectKey string
	Method    string
	URL       string
	ExpiresAt time.Time
}

// UploadService implements both upload paths of the engine: the chunked
// path (staged chunks reassembled server-side) and the direct path
// (presigned PUT straight to object storage with a verification gate).
type UploadService struct {
	sessions sessions.Repository
	store    *chunkstore.Store
	signer   *sigv4.Signer
	objects  objectstore.Client
	limiter  *ratelimit.Limiter
	ingestor Ingestor
	logger   logging.Logger
	config   *sc.Config

	// test seams
	now   func() time.Time
	newID func() string
}

func NewUploadService(
	repo sessions.Repository,
	store *chunkstore.Store,
	signer *sigv4.Signer,
	objects objectstore.Client,
	limiter *ratelimit.Limiter,
	ingestor Ingestor,
	logger logging.Logger,
	config *sc.Config,
) *UploadService {
	return &UploadService{
		sessions: repo,
		store:    store,
		signer:   signer,
		objects:  objects,
		limiter:  limiter,
		ingestor: ingestor,
		logger:   logger.With("module", "upload"),
		config:   config,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// validateRequest applies the shared admission checks for both upload paths:
// archive extension whitelist, size bounds and the per-principal rate limit.
func (s *UploadService) validateRequest(ownerID, filename string, declaredSize uint64) (ext string, err error) {
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: filename must not contain path elements", common.ErrorValidation)
	}
	ext = strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported file type %q", common.ErrorValidation, ext)
	}
	if declaredSize < s.config.UploadMinSize {
		return "", fmt.Errorf("%w: declared size %d below minimum %d", common.ErrorValidation, declaredSize, s.config.UploadMinSize)
	}
	if declaredSize > s.config.UploadMaxSize {
		return "", fmt.Errorf("%w: declared size %d above maximum %d", common.ErrorValidation, declaredSize, s.config.UploadMaxSize)
	}
	if !s.limiter.Allow(ownerID) {
		return "", common.ErrorRateLimited
	}
	return ext, nil
}

// makeObjectKey builds a collision-resistant storage key of the form
// tours/{yyyy/mm/dd}/{sanitized}_{8hex}{ext}.
func (s *UploadService) makeObjectKey(filename, ext string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = sanitizeRe.ReplaceAllString(base, "_")
	if len(base) > 64 {
		base = base[:64]
	}
	if base == "" || base == "_" {
		base = "artifact"
	}
	suffix, err := common.MakeRandHexString(4)
	if err != nil {
		return "", fmt.Errorf("error generating key suffix: %w", err)
	}
	d := s.now().UTC()
	return fmt.Sprintf("tours/%04d/%02d/%02d/%s_%s%s", d.Year(), d.Month(), d.Day(), base, suffix, ext), nil
}

func (s *UploadService) createSession(ctx context.Context, ownerID, objectKey, filename string, declaredSize uint64) (*models.UploadSession, error) {
	now := s.now()
	session := &models.UploadSession{
		ID:           s.newID(),
		OwnerID:      ownerID,
		ObjectKey:    objectKey,
		Filename:     filename,
		DeclaredSize: declaredSize,
		Status:       models.UploadStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating upload session: %w", err)
	}
	return session, nil
}

// RequestChunkUpload admits a chunked upload: it validates the request,
// allocates a session and returns its id for the chunk API.
func (s *UploadService) RequestChunkUpload(ctx context.Context, ownerID, filename string, declaredSize uint64) (*UploadTarget, error) {
	ext, err := s.validateRequest(ownerID, filename, declaredSize)
	if err != nil {
		return nil, err
	}
	key, err := s.makeObjectKey(filename, ext)
	if err != nil {
		return nil, err
	}
	session, err := s.createSession(ctx, ownerID, key, filename, declaredSize)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "chunked upload admitted", "session_id", session.ID, "owner_id", ownerID, "declared_size", declaredSize)

	return &UploadTarget{SessionID: session.ID, ObjectKey: key}, nil
}

// StoreChunk stages one chunk for a pending session owned by the caller.
func (s *UploadService) StoreChunk(ctx context.Context, ownerID, sessionID string, seq int, r io.Reader) error {
	session, err := s.sessions.GetForOwner(ctx, sessionID, ownerID)
	if err != nil {
		return err
	}
	if session.Terminal() {
		return fmt.Errorf("%w: session %s is %s", common.ErrorStatusConflict, sessionID, session.Status)
	}
	if err := s.store.StoreChunk(sessionID, seq, r); err != nil {
		return fmt.Errorf("error staging chunk %d: %w", seq, err)
	}
	return nil
}

// FinalizeChunkedUpload assembles the staged chunks into one artifact in the
// work directory, hands it to ingestion and completes the session. Assembly
// is all-or-nothing: any gap or IO failure marks the session failed and
// leaves no partial artifact behind.
//
// Repeating the call after a successful finalize returns the completed
// session without re-ingesting.
func (s *UploadService) FinalizeChunkedUpload(ctx context.Context, ownerID, sessionID string) (*models.UploadSession, error) {
	session, err := s.sessions.GetForOwner(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.UploadStatusCompleted {
		return session, nil
	}
	if session.Status == models.UploadStatusFailed {
		return nil, fmt.Errorf("%w: session %s already failed", common.ErrorStatusConflict, sessionID)
	}

	destPath := filepath.Join(s.config.WorkDir, filepath.Base(session.ObjectKey))
	if err := s.store.Assemble(sessionID, destPath); err != nil {
		reason := fmt.Sprintf("assembly failed: %v", err)
		if mErr := s.sessions.MarkFailed(ctx, sessionID, reason); mErr != nil {
			s.logger.Error(ctx, "failed to mark session failed", "session_id", sessionID, "error", mErr)
		}
		return nil, fmt.Errorf("error assembling upload %s: %w", sessionID, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("error inspecting assembled artifact: %w", err)
	}

	publicURL, err := s.ingestor.Ingest(ctx, destPath, session.Filename)
	if err != nil {
		reason := fmt.Sprintf("ingestion failed: %v", err)
		if mErr := s.sessions.MarkFailed(ctx, sessionID, reason); mErr != nil {
			s.logger.Error(ctx, "failed to mark session failed", "session_id", sessionID, "error", mErr)
		}
		return nil, fmt.Errorf("error ingesting artifact: %w", err)
	}

	if err := s.sessions.MarkCompleted(ctx, sessionID, uint64(info.Size())); err != nil {
		return nil, fmt.Errorf("error completing session: %w", err)
	}

	s.logger.Info(ctx, "chunked upload finalized",
		"session_id", sessionID, "size", info.Size(), "public_url", publicURL)

	return s.sessions.GetForOwner(ctx, sessionID, ownerID)
}

// RequestDirectUpload admits a direct upload and returns a presigned PUT URL
// whose signature covers the policy conditions: bounded content length,
// archive content type and the tours/ key prefix.
func (s *UploadService) RequestDirectUpload(ctx context.Context, ownerID, filename string, declaredSize uint64) (*UploadTarget, error) {
	ext, err := s.validateRequest(ownerID, filename, declaredSize)
	if err != nil {
		return nil, err
	}
	key, err := s.makeObjectKey(filename, ext)
	if err != nil {
		return nil, err
	}
	session, err := s.createSession(ctx, ownerID, key, filename, declaredSize)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("X-Policy-Content-Length-Range", fmt.Sprintf("%d,%d", s.config.UploadMinSize, s.config.UploadMaxSize))
	query.Set("X-Policy-Content-Type", "application/")
	query.Set("X-Policy-Key-Prefix", "tours/")

	presigned, err := s.signer.Presign(sigv4.PresignInput{
		Method:      "PUT",
		Endpoint:    s.config.S3BaseEndpoint,
		Path:        "/" + s.config.S3Bucket + "/" + key,
		Expires:     s.config.PresignExpiry,
		SigningTime: s.now(),
		Query:       query,
	})
	if err != nil {
		return nil, fmt.Errorf("error presigning upload url: %w", err)
	}

	s.logger.Info(ctx, "direct upload admitted",
		"session_id", session.ID, "owner_id", ownerID, "object_key", key, "expires_at", presigned.ExpiresAt)

	return &UploadTarget{
		SessionID: session.ID,
		ObjectKey: key,
		Method:    presigned.Method,
		URL:       presigned.URL,
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

// CompleteDirectUpload is the verification gate of the direct path. A claimed
// success is only believed after the object is found in storage with exactly
// the declared size; absence or mismatch marks the session failed. Terminal
// sessions are returned as-is, so repeating a completion never re-ingests.
func (s *UploadService) CompleteDirectUpload(ctx context.Context, ownerID, sessionID string, success bool, reason string) (*models.UploadSession, error) {
	session, err := s.sessions.GetForOwner(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return session, nil
	}

	if !success {
		if reason == "" {
			reason = "client reported failure"
		}
		if err := s.sessions.MarkFailed(ctx, sessionID, reason); err != nil {
			return nil, fmt.Errorf("error marking session failed: %w", err)
		}
		s.logger.Warn(ctx, "direct upload reported failed", "session_id", sessionID, "reason", reason)
		return s.sessions.GetForOwner(ctx, sessionID, ownerID)
	}

	actualSize, err := s.verifyObject(ctx, session)
	if err != nil {
		if errors.Is(err, common.ErrorVerificationFailed) {
			if mErr := s.sessions.MarkFailed(ctx, sessionID, err.Error()); mErr != nil {
				s.logger.Error(ctx, "failed to mark session failed", "session_id", sessionID, "error", mErr)
			}
			s.logger.Warn(ctx, "direct upload verification failed", "session_id", sessionID, "object_key", session.ObjectKey, "error", err)
		}
		return nil, err
	}

	destPath := filepath.Join(s.config.WorkDir, filepath.Base(session.ObjectKey))
	if err := s.objects.Fetch(ctx, session.ObjectKey, destPath); err != nil {
		return nil, fmt.Errorf("error fetching verified object: %w", err)
	}

	publicURL, err := s.ingestor.Ingest(ctx, destPath, session.Filename)
	if err != nil {
		reason := fmt.Sprintf("ingestion failed: %v", err)
		if mErr := s.sessions.MarkFailed(ctx, sessionID, reason); mErr != nil {
			s.logger.Error(ctx, "failed to mark session failed", "session_id", sessionID, "error", mErr)
		}
		return nil, fmt.Errorf("error ingesting artifact: %w", err)
	}

	if err := s.sessions.MarkCompleted(ctx, sessionID, actualSize); err != nil {
		return nil, fmt.Errorf("error completing session: %w", err)
	}

	s.logger.Info(ctx, "direct upload verified and ingested",
		"session_id", sessionID, "actual_size", actualSize, "public_url", publicURL)

	return s.sessions.GetForOwner(ctx, sessionID, ownerID)
}

// verifyObject confirms presence and exact size of the uploaded object.
func (s *UploadService) verifyObject(ctx context.Context, session *models.UploadSession) (uint64, error) {
	size, err := s.objects.Head(ctx, session.ObjectKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, fmt.Errorf("%w: object %s not found in storage", common.ErrorVerificationFailed, session.ObjectKey)
		}
		return 0, fmt.Errorf("error checking object %s: %w", session.ObjectKey, err)
	}
	if uint64(size) != session.DeclaredSize {
		return 0, fmt.Errorf("%w: size mismatch, declared %d actual %d",
			common.ErrorVerificationFailed, session.DeclaredSize, size)
	}
	return uint64(size), nil
}

// Status returns the session, scoped to the owner. Sessions belonging to
// another principal read as not found, never as forbidden.
func (s *UploadService) Status(ctx context.Context, ownerID, sessionID string) (*models.UploadSession, error) {
	return s.sessions.GetForOwner(ctx, sessionID, ownerID)
}

// RequestDownload presigns a GET for a completed session's artifact.
func (s *UploadService) RequestDownload(ctx context.Context, ownerID, sessionID string) (*UploadTarget, error) {
	session, err := s.sessions.GetForOwner(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.UploadStatusCompleted {
		return nil, fmt.Errorf("%w: session %s is %s", common.ErrorStatusConflict, sessionID, session.Status)
	}

	presigned, err := s.signer.Presign(sigv4.PresignInput{
		Method:      "GET",
		Endpoint:    s.config.S3BaseEndpoint,
		Path:        "/" + s.config.S3Bucket + "/" + session.ObjectKey,
		Expires:     s.config.PresignExpiry,
		SigningTime: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("error presigning download url: %w", err)
	}

	return &UploadTarget{
		SessionID: session.ID,
		ObjectKey: session.ObjectKey,
		Method:    presigned.Method,
		URL:       presigned.URL,
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

// DeleteExpiredSessions garbage-collects terminal sessions past the
// retention window.
func (s *UploadService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.config.SessionRetention)
}

// SweepStaleChunks removes staging directories with no writes for the
// session retention window.
func (s *UploadService) SweepStaleChunks(ctx context.Context) (int, error) {
	n, err := s.store.SweepStale(s.config.SessionRetention)
	if err != nil {
		return n, fmt.Errorf("error sweeping stale chunks: %w", err)
	}
	if n > 0 {
		s.logger.Info(ctx, "stale staging directories removed", "count", n)
	}
	return n, nil
}
