package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/common"
	"github.com/dmitrijs2005/tourvault/internal/dbx"
	"github.com/dmitrijs2005/tourvault/internal/filex"
	"github.com/dmitrijs2005/tourvault/internal/logging"
	sc "github.com/dmitrijs2005/tourvault/internal/server/config"
	"github.com/dmitrijs2005/tourvault/internal/server/models"
	"github.com/dmitrijs2005/tourvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	// estimate model: fixed overhead + per-file + per-megabyte terms.
	estimateOverhead = 2 * time.Second
	estimatePerFile  = 100 * time.Millisecond
	estimatePerMB    = 500 * time.Millisecond
	estimateMin      = 2 * time.Second
	estimateMax      = 300 * time.Second

	// copy phase progress window; the remainder is metadata and cleanup.
	copyPhaseStart = 5
	copyPhaseEnd   = 85

	renameBatches = 10
)

var artifactNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._ -]*$`)

// RenameService relocates an ingested artifact directory under a new name,
// keeping filesystem and metadata in step. Small artifacts move atomically;
// large ones are copied in batches with verification before anything is
// deleted, and metadata is rewritten in one transaction.
type RenameService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	progress *ProgressService
	queue    RenameQueue
	logger   logging.Logger
	config   *sc.Config

	// test seams
	now       func() time.Time
	newID     func() string
	copyEntry func(src, dst string) error
}

func NewRenameService(
	db *sql.DB,
	repos repomanager.RepositoryManager,
	progress *ProgressService,
	queue RenameQueue,
	logger logging.Logger,
	config *sc.Config,
) *RenameService {
	return &RenameService{
		db:        db,
		repos:     repos,
		progress:  progress,
		queue:     queue,
		logger:    logger.With("module", "rename"),
		config:    config,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		copyEntry: filex.CopyTree,
	}
}

// Rename runs the full state machine: validate, estimate, move or copy,
// metadata rewrite, commit. Estimates above the execution budget are handed
// to the queue unless force is set; the returned OperationID is the progress
// handle either way.
func (s *RenameService) Rename(ctx context.Context, oldName, newName string, force bool) (*models.RenameResult, error) {
	src, dst, err := s.validate(oldName, newName)
	if err != nil {
		return nil, err
	}

	fileCount, err := filex.CountFiles(src)
	if err != nil {
		return nil, fmt.Errorf("error counting source files: %w", err)
	}
	sizeBytes, err := filex.DirSize(src)
	if err != nil {
		return nil, fmt.Errorf("error sizing source: %w", err)
	}

	op := &models.RenameOperation{
		OperationID: s.newID(),
		OldName:     oldName,
		NewName:     newName,
		Estimated:   estimateCost(fileCount, sizeBytes),
		FileCount:   fileCount,
		SizeBytes:   sizeBytes,
	}
	if fileCount < s.config.RenameChunkThreshold {
		op.Strategy = models.RenameStrategySimple
	} else {
		op.Strategy = models.RenameStrategyChunked
	}

	if err := s.progress.Init(ctx, op.OperationID, "rename", oldName); err != nil {
		return nil, err
	}

	if op.Estimated > s.config.RenameBudget && !force {
		if err := s.queue.Enqueue(ctx, op); err != nil {
			return nil, fmt.Errorf("error queueing rename: %w", err)
		}
		if err := s.progress.Update(ctx, op.OperationID, 0, "queued for background execution"); err != nil {
			s.logger.Warn(ctx, "progress update failed", "operation_id", op.OperationID, "error", err)
		}
		s.logger.Info(ctx, "rename queued",
			"operation_id", op.OperationID, "old", oldName, "new", newName,
			"estimated_seconds", op.Estimated.Seconds())
		return &models.RenameResult{
			Outcome:     models.RenameOutcomeQueued,
			OperationID: op.OperationID,
			Strategy:    op.Strategy,
			Estimated:   op.Estimated,
		}, nil
	}

	started := s.now()
	if err := s.execute(ctx, op, src, dst); err != nil {
		if pErr := s.progress.Fail(ctx, op.OperationID, err.Error()); pErr != nil {
			s.logger.Warn(ctx, "progress update failed", "operation_id", op.OperationID, "error", pErr)
		}
		return nil, err
	}
	elapsed := s.now().Sub(started)

	if err := s.progress.Complete(ctx, op.OperationID, "rename completed"); err != nil {
		s.logger.Warn(ctx, "progress update failed", "operation_id", op.OperationID, "error", err)
	}
	s.logger.Info(ctx, "rename completed",
		"operation_id", op.OperationID, "old", oldName, "new", newName,
		"strategy", op.Strategy, "elapsed_seconds", elapsed.Seconds())

	return &models.RenameResult{
		Outcome:     models.RenameOutcomeCompleted,
		OperationID: op.OperationID,
		Strategy:    op.Strategy,
		Estimated:   op.Estimated,
		Elapsed:     elapsed,
	}, nil
}

// validate applies the admission rules and resolves both directories.
func (s *RenameService) validate(oldName, newName string) (src, dst string, err error) {
	if oldName == newName {
		return "", "", fmt.Errorf("%w: old and new names are equal", common.ErrorValidation)
	}
	if !artifactNameRe.MatchString(oldName) || strings.Contains(oldName, "..") {
		return "", "", fmt.Errorf("%w: old name contains forbidden characters", common.ErrorValidation)
	}
	if !artifactNameRe.MatchString(newName) || strings.Contains(newName, "..") {
		return "", "", fmt.Errorf("%w: new name contains forbidden characters", common.ErrorValidation)
	}

	src = filepath.Join(s.config.ToursDir, oldName)
	dst = filepath.Join(s.config.ToursDir, newName)

	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return "", "", fmt.Errorf("%w: artifact %q does not exist", common.ErrorNotFound, oldName)
	}
	if _, err := os.Stat(dst); err == nil {
		return "", "", fmt.Errorf("%w: artifact %q already exists", common.ErrorValidation, newName)
	}
	return src, dst, nil
}

func (s *RenameService) execute(ctx context.Context, op *models.RenameOperation, src, dst string) error {
	switch op.Strategy {
	case models.RenameStrategySimple:
		return s.simpleMove(ctx, op, src, dst)
	default:
		return s.chunkedCopy(ctx, op, src, dst)
	}
}

// simpleMove renames the directory atomically, then rewrites metadata. A
// metadata failure reverts by moving the directory back.
func (s *RenameService) simpleMove(ctx context.Context, op *models.RenameOperation, src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("error moving %q to %q: %w", op.OldName, op.NewName, err)
	}
	if err := s.progress.Update(ctx, op.OperationID, copyPhaseEnd, "moved, updating metadata"); err != nil {
		s.logger.Warn(ctx, "progress update failed", "operation_id", op.OperationID, "error", err)
	}

	if err := s.updateMetadata(ctx, op); err != nil {
		if rbErr := os.Rename(dst, src); rbErr != nil {
			s.logger.Error(ctx, "rollback move failed",
				"operation_id", op.OperationID, "error", rbErr)
		}
		return err
	}
	return nil
}

// chunkedCopy copies top-level entries in batches, verifies file counts,
// rewrites metadata while the source is still intact, and only then removes
// the source. Any failure before the metadata commit deletes the copied
// destination, restoring the pre-operation state.
func (s *RenameService) chunkedCopy(ctx context.Context, op *models.RenameOperation, src, dst string) error {
	if err := s.copyBatches(ctx, op, src, dst); err != nil {
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			s.logger.Error(ctx, "destination cleanup failed",
				"operation_id", op.OperationID, "error", rmErr)
		}
		return err
	}

	srcCount, err := filex.CountFiles(src)
	if err == nil {
		var dstCount int
		dstCount, err = filex.CountFiles(dst)
		if err == nil && dstCount != srcCount {
			err = fmt.Errorf("copy verification failed: source has %d files, destination has %d", srcCount, dstCount)
		}
	}
	if err != nil {
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			s.logger.Error(ctx, "destination cleanup failed",
				"operation_id", op.OperationID, "error", rmErr)
		}
		return err
	}

	if err := s.progress.Update(ctx, op.OperationID, 90, "verified, updating metadata"); err != nil {
		s.logger.Warn(ctx, "progress update failed", "operation_id", op.OperationID, "error", err)
	}

	if err := s.updateMetadata(ctx, op); err != nil {
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			s.logger.Error(ctx, "destination cleanup failed",
				"operation_id", op.OperationID, "error", rmErr)
		}
		return err
	}

	// Source removal failure leaves a stale copy for the periodic sweep;
	// the rename itself has succeeded.
	if err := os.RemoveAll(src); err != nil {
		s.logger.Warn(ctx, "source removal failed",
			"operation_id", op.OperationID, "source", op.OldName, "error", err)
	}
	return nil
}

func (s *RenameService) copyBatches(ctx context.Context, op *models.RenameOperation, src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("error creating destination: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("error listing source: %w", err)
	}

	batchSize := (len(entries) + renameBatches - 1) / renameBatches
	if batchSize < 1 {
		batchSize = 1
	}

	for done := 0; done < len(entries); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := done + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		for _, entry := range entries[done:end] {
			srcPath := filepath.Join(src, entry.Name())
			dstPath := filepath.Join(dst, entry.Name())
			if err := s.copyEntry(srcPath, dstPath); err != nil {
				return fmt.Errorf("error copying %q: %w", entry.Name(), err)
			}
		}
		done = end

		percent := copyPhaseStart + done*(copyPhaseEnd-copyPhaseStart)/len(entries)
		msg := fmt.Sprintf("copied %d of %d entries", done, len(entries))
		if err := s.progress.Update(ctx, op.OperationID, percent, msg); err != nil {
			s.logger.Warn(ctx, "progress update failed", "operation_id", op.OperationID, "error", err)
		}
	}
	return nil
}

// updateMetadata rewrites assignment and metadata rows in one transaction so
// readers see either the old name everywhere or the new name everywhere.
func (s *RenameService) updateMetadata(ctx context.Context, op *models.RenameOperation) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Metadata(tx)
		assignments, err := repo.RenameAssignments(ctx, op.OldName, op.NewName)
		if err != nil {
			return fmt.Errorf("error rewriting assignments: %w", err)
		}
		rows, err := repo.RenameMetadata(ctx, op.OldName, op.NewName)
		if err != nil {
			return fmt.Errorf("error rewriting metadata: %w", err)
		}
		s.logger.Debug(ctx, "metadata rewritten",
			"operation_id", op.OperationID, "assignments", assignments, "metadata_rows", rows)
		return nil
	})
	if err != nil {
		return fmt.Errorf("metadata transaction failed: %w", err)
	}
	return nil
}

// estimateCost predicts execution time from file count and total size,
// clamped to a sane range.
func estimateCost(fileCount int, sizeBytes int64) time.Duration {
	sizeMB := sizeBytes / (1 << 20)
	cost := estimateOverhead +
		time.Duration(fileCount)*estimatePerFile +
		time.Duration(sizeMB)*estimatePerMB
	if cost < estimateMin {
		cost = estimateMin
	}
	if cost > estimateMax {
		cost = estimateMax
	}
	return cost
}
