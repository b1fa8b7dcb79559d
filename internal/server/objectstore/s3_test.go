package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tourvault/internal/common"
)

func TestNewS3Client_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
	}{
		{"no access key", S3Config{SecretKey: "s", Bucket: "b"}},
		{"no secret key", S3Config{AccessKey: "a", Bucket: "b"}},
		{"no bucket", S3Config{AccessKey: "a", SecretKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Client(context.Background(), tt.cfg)
			require.ErrorIs(t, err, common.ErrorNotConfigured)
		})
	}
}

func TestHead_ReturnsSize(t *testing.T) {
	orig := headObject
	defer func() { headObject = orig }()

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		require.Equal(t, "vault", *in.Bucket)
		require.Equal(t, "tours/k.zip", *in.Key)
		return &s3.HeadObjectOutput{ContentLength: aws.Int64(2048)}, nil
	}

	c := &S3Client{bucket: "vault"}
	size, err := c.Head(context.Background(), "tours/k.zip")
	require.NoError(t, err)
	require.Equal(t, int64(2048), size)
}

func TestHead_AbsentObjectIsNotFound(t *testing.T) {
	orig := headObject
	defer func() { headObject = orig }()

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		return nil, &types.NotFound{}
	}

	c := &S3Client{bucket: "vault"}
	_, err := c.Head(context.Background(), "tours/ghost.zip")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestHead_RetriesTransientErrors(t *testing.T) {
	orig := headObject
	defer func() { headObject = orig }()

	calls := 0
	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return &s3.HeadObjectOutput{ContentLength: aws.Int64(1)}, nil
	}

	c := &S3Client{bucket: "vault"}
	size, err := c.Head(context.Background(), "tours/k.zip")
	require.NoError(t, err)
	require.Equal(t, int64(1), size)
	require.Equal(t, 3, calls)
}

func TestFetch_WritesFile(t *testing.T) {
	orig := getObject
	defer func() { getObject = orig }()

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("artifact-bytes")))}, nil
	}

	dest := filepath.Join(t.TempDir(), "artifact.zip")
	c := &S3Client{bucket: "vault"}
	require.NoError(t, c.Fetch(context.Background(), "tours/k.zip", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("artifact-bytes"), got)
}

func TestFetch_NotFound(t *testing.T) {
	orig := getObject
	defer func() { getObject = orig }()

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{}
	}

	c := &S3Client{bucket: "vault"}
	err := c.Fetch(context.Background(), "tours/ghost.zip", filepath.Join(t.TempDir(), "a.zip"))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete_AbsentObjectIsOK(t *testing.T) {
	orig := deleteObject
	defer func() { deleteObject = orig }()

	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return nil, &types.NoSuchKey{}
	}

	c := &S3Client{bucket: "vault"}
	require.NoError(t, c.Delete(context.Background(), "tours/ghost.zip"))
}
