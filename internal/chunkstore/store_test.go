package chunkstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tourvault/internal/common"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "staging"))
	require.NoError(t, err)
	return s
}

func TestStoreChunk_CreatesStagingDirAndFile(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.StoreChunk("up1", 0, bytes.NewReader([]byte("hello"))))

	got, err := os.ReadFile(filepath.Join(s.StagingDir("up1"), "chunk_000000"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestStoreChunk_OverwriteIsIdempotent(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.StoreChunk("up1", 3, bytes.NewReader([]byte("first"))))
	require.NoError(t, s.StoreChunk("up1", 3, bytes.NewReader([]byte("second"))))

	got, err := os.ReadFile(filepath.Join(s.StagingDir("up1"), "chunk_000003"))
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestStoreChunk_RejectsBadInput(t *testing.T) {
	s := newStore(t)

	require.Error(t, s.StoreChunk("../escape", 0, bytes.NewReader(nil)))
	require.Error(t, s.StoreChunk("a/b", 0, bytes.NewReader(nil)))
	require.Error(t, s.StoreChunk("", 0, bytes.NewReader(nil)))
	require.Error(t, s.StoreChunk("up1", -1, bytes.NewReader(nil)))
	require.Error(t, s.StoreChunk("up1", 1000000, bytes.NewReader(nil)))
}

func TestAssemble_ProducesConcatenationRegardlessOfStoreOrder(t *testing.T) {
	s := newStore(t)

	chunks := [][]byte{
		[]byte("alpha-"),
		[]byte("bravo-"),
		[]byte("charlie-"),
		[]byte("delta"),
	}

	// Store out of order, the way concurrent chunk uploads land.
	for _, i := range []int{2, 0, 3, 1} {
		require.NoError(t, s.StoreChunk("up1", i, bytes.NewReader(chunks[i])))
	}

	dest := filepath.Join(t.TempDir(), "artifact.zip")
	require.NoError(t, s.Assemble("up1", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("alpha-bravo-charlie-delta"), got)

	_, err = os.Stat(s.StagingDir("up1"))
	require.True(t, os.IsNotExist(err), "staging dir must be removed on success")
}

func TestAssemble_GapFailsWithMissingChunk(t *testing.T) {
	s := newStore(t)

	for _, i := range []int{0, 1, 3, 4} { // index 2 missing
		require.NoError(t, s.StoreChunk("up1", i, bytes.NewReader([]byte("x"))))
	}

	dest := filepath.Join(t.TempDir(), "artifact.zip")
	err := s.Assemble("up1", dest)
	require.ErrorIs(t, err, common.ErrorMissingChunk)

	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr), "no destination file may survive a failed assembly")
}

func TestAssemble_NoChunksFailsWithMissingChunk(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(s.StagingDir("up1"), 0o770))

	err := s.Assemble("up1", filepath.Join(t.TempDir(), "artifact.zip"))
	require.ErrorIs(t, err, common.ErrorMissingChunk)
}

func TestAssemble_UnknownUpload(t *testing.T) {
	s := newStore(t)
	require.Error(t, s.Assemble("nope", filepath.Join(t.TempDir(), "a.zip")))
}

func TestListChunks_RejectsForeignEntries(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.StoreChunk("up1", 0, bytes.NewReader([]byte("x"))))
	require.NoError(t, os.WriteFile(filepath.Join(s.StagingDir("up1"), "stray.tmp"), []byte("x"), 0o660))

	_, err := s.ListChunks("up1")
	require.Error(t, err)
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.StoreChunk("up1", 0, bytes.NewReader([]byte("x"))))

	require.NoError(t, s.Remove("up1"))

	_, err := os.Stat(s.StagingDir("up1"))
	require.True(t, os.IsNotExist(err))
}

func TestSweepStale(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.StoreChunk("old", 0, bytes.NewReader([]byte("x"))))
	require.NoError(t, s.StoreChunk("fresh", 0, bytes.NewReader([]byte("x"))))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(s.StagingDir("old"), past, past))

	removed, err := s.SweepStale(time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = os.Stat(s.StagingDir("old"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.StagingDir("fresh"))
	require.NoError(t, err)
}
