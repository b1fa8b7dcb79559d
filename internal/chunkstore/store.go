// Package chunkstore persists upload chunks in a per-upload staging directory
// and reassembles them into a single artifact once the set is complete.
//
// Chunk files are named chunk_%06d, so lexicographic order of the directory
// listing equals sequence order. That property is what makes assembly a
// single sorted read; it must not be broken by widening or shortening the
// index format.
package chunkstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/filex"
)

const chunkNameFormat = "chunk_%06d"

var chunkNameRe = regexp.MustCompile(`^chunk_(\d{6})$`)

var safeUploadIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store keeps chunk files below a single staging root.
type Store struct {
	root string
}

// NewStore constructs a Store rooted at dir, creating the root if necessary.
func NewStore(dir string) (*Store, error) {
	if err := filex.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{root: dir}, nil
}

// Root returns the staging root directory.
func (s *Store) Root() string {
	return s.root
}

// StagingDir returns the per-upload staging directory for uploadID.
func (s *Store) StagingDir(uploadID string) string {
	return filepath.Join(s.root, uploadID)
}

// StoreChunk writes one chunk under staging/{uploadID}/chunk_{seq:06d},
// creating the staging directory on the first call. Overwriting an existing
// sequence number is allowed: an idempotent retry of the same chunk simply
// replaces the previous bytes.
func (s *Store) StoreChunk(uploadID string, seq int, r io.Reader) error {
	if err := validateUploadID(uploadID); err != nil {
		return err
	}
	if seq < 0 || seq > 999999 {
		return fmt.Errorf("chunkstore: sequence number %d out of range", seq)
	}

	dir := s.StagingDir(uploadID)
	if err := filex.EnsureDir(dir); err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf(chunkNameFormat, seq))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o660)
	if err != nil {
		return fmt.Errorf("chunkstore: creating chunk %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("chunkstore: writing chunk %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("chunkstore: closing chunk %s: %w", path, err)
	}

	return nil
}

// ListChunks returns the chunk filenames for uploadID sorted lexicographically.
// Files that do not match the chunk naming scheme are reported as an error
// rather than skipped: foreign files in a staging directory mean something
// else wrote there.
func (s *Store) ListChunks(uploadID string) ([]string, error) {
	if err := validateUploadID(uploadID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.StagingDir(uploadID))
	if err != nil {
		return nil, fmt.Errorf("chunkstore: reading staging dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !chunkNameRe.MatchString(e.Name()) {
			return nil, fmt.Errorf("chunkstore: unexpected entry %q in staging dir", e.Name())
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes the staging directory for uploadID with everything in it.
func (s *Store) Remove(uploadID string) error {
	if err := validateUploadID(uploadID); err != nil {
		return err
	}
	return os.RemoveAll(s.StagingDir(uploadID))
}

// SweepStale removes staging directories whose last modification is older
// than maxAge and returns how many were removed. Invoked by the external
// cleanup job; abandoned uploads are the only expected source of such dirs.
func (s *Store) SweepStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("chunkstore: reading root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func validateUploadID(uploadID string) error {
	if !safeUploadIDRe.MatchString(uploadID) {
		return fmt.Errorf("chunkstore: invalid upload id %q", uploadID)
	}
	return nil
}
