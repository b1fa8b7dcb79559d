package chunkstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dmitrijs2005/tourvault/internal/common"
)

// Assemble concatenates the staged chunks of uploadID, in sequence order,
// into destPath. It is all-or-nothing:
//
//   - the present chunks must form a contiguous 0..N-1 range, otherwise the
//     call fails with common.ErrorMissingChunk and nothing is written;
//   - each chunk is deleted immediately after its bytes are consumed;
//   - on success the staging directory is removed;
//   - on any read/write failure both the partially written destination and
//     the staging directory are deleted, so no half-assembled artifact
//     survives.
//
// Callers must not retry Assemble for the same uploadID without re-verifying
// chunk completeness first, and must serialize finalize calls per upload.
func (s *Store) Assemble(uploadID, destPath string) (err error) {
	names, err := s.ListChunks(uploadID)
	if err != nil {
		return err
	}

	if err := verifyContiguous(names); err != nil {
		return err
	}

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o660)
	if err != nil {
		return fmt.Errorf("chunkstore: creating destination %s: %w", destPath, err)
	}

	defer func() {
		if err != nil {
			dest.Close()
			_ = os.Remove(destPath)
			_ = s.Remove(uploadID)
		}
	}()

	dir := s.StagingDir(uploadID)
	for _, name := range names {
		chunkPath := filepath.Join(dir, name)

		if err = appendChunk(dest, chunkPath); err != nil {
			return err
		}

		// The chunk's bytes are in the destination file now.
		if err = os.Remove(chunkPath); err != nil {
			err = fmt.Errorf("chunkstore: removing consumed chunk %s: %w", chunkPath, err)
			return err
		}
	}

	if err = dest.Close(); err != nil {
		err = fmt.Errorf("chunkstore: closing destination %s: %w", destPath, err)
		return err
	}

	if rmErr := s.Remove(uploadID); rmErr != nil {
		return fmt.Errorf("chunkstore: removing staging dir: %w", rmErr)
	}

	return nil
}

func appendChunk(dest *os.File, chunkPath string) error {
	chunk, err := os.Open(chunkPath)
	if err != nil {
		return fmt.Errorf("chunkstore: opening chunk %s: %w", chunkPath, err)
	}
	defer chunk.Close()

	if _, err := io.Copy(dest, chunk); err != nil {
		return fmt.Errorf("chunkstore: streaming chunk %s: %w", chunkPath, err)
	}
	return nil
}

// verifyContiguous checks that the sorted chunk names cover exactly the
// indices 0..N-1. Gaps and duplicates are both reported as missing-chunk
// failures; ListChunks already rejects foreign names.
func verifyContiguous(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: no chunks staged", common.ErrorMissingChunk)
	}

	for i, name := range names {
		m := chunkNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("%w: malformed chunk name %q", common.ErrorMissingChunk, name)
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx != i {
			return fmt.Errorf("%w: expected chunk %d, found %q", common.ErrorMissingChunk, i, name)
		}
	}
	return nil
}
