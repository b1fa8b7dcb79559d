package client

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileChunker_SplitsAndReassembles(t *testing.T) {
	content := "abcdefghijklmnopqrstuvwxyz"
	path := writeTempFile(t, content)

	chunker, err := OpenFileChunker(path, 10)
	require.NoError(t, err)
	defer chunker.Close()

	assert.Equal(t, int64(26), chunker.Size())
	require.Equal(t, 3, chunker.Count())

	var rebuilt strings.Builder
	for i := 0; i < chunker.Count(); i++ {
		r, err := chunker.Chunk(i)
		require.NoError(t, err)
		_, err = io.Copy(&rebuilt, r)
		require.NoError(t, err)
	}
	assert.Equal(t, content, rebuilt.String())
}

func TestFileChunker_ExactMultiple(t *testing.T) {
	path := writeTempFile(t, "aabb")

	chunker, err := OpenFileChunker(path, 2)
	require.NoError(t, err)
	defer chunker.Close()

	assert.Equal(t, 2, chunker.Count())

	r, err := chunker.Chunk(1)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "bb", string(data))
}

func TestFileChunker_OutOfRange(t *testing.T) {
	path := writeTempFile(t, "aabb")

	chunker, err := OpenFileChunker(path, 2)
	require.NoError(t, err)
	defer chunker.Close()

	_, err = chunker.Chunk(2)
	assert.Error(t, err)
	_, err = chunker.Chunk(-1)
	assert.Error(t, err)
}

func TestOpenFileChunker_InvalidInput(t *testing.T) {
	_, err := OpenFileChunker("nonexistent.zip", 10)
	assert.Error(t, err)

	path := writeTempFile(t, "aabb")
	_, err = OpenFileChunker(path, 0)
	assert.Error(t, err)
}
