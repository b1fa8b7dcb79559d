package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/tourvault/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		return c.HeadObject(ctx, in)
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in)
	}
)

// S3Config carries the settings needed to reach the storage backend.
type S3Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Client implements Client over an S3-compatible endpoint (MinIO, AWS).
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client builds the backend client. Missing credentials or bucket are a
// configuration error surfaced immediately, not at first use.
func NewS3Client(ctx context.Context, c S3Config) (*S3Client, error) {
	if c.AccessKey == "" || c.SecretKey == "" || c.Bucket == "" {
		return nil, common.ErrorNotConfigured
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Client{client: client, bucket: c.Bucket}, nil
}

// Head checks that the object exists and returns its size. A freshly
// completed upload may not be visible immediately on some backends, so the
// lookup is retried with exponential backoff before absence is reported.
func (s *S3Client) Head(ctx context.Context, key string) (int64, error) {
	var size int64

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := headObject(s.client, ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		if out.ContentLength != nil {
			size = *out.ContentLength
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: object %s", common.ErrorNotFound, key)
		}
		return 0, fmt.Errorf("head object %s: %w", key, err)
	}

	return size, nil
}

// Fetch streams the object into destPath. A partial file is removed on error.
func (s *S3Client) Fetch(ctx context.Context, key, destPath string) error {
	out, err := getObject(s.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: object %s", common.ErrorNotFound, key)
		}
		return fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o660)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("downloading object %s: %w", key, err)
	}

	return f.Close()
}

// Delete removes the object; absence is treated as success.
func (s *S3Client) Delete(ctx context.Context, key string) error {
	_, err := deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nk)
}
