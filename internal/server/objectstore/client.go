// Package objectstore wraps the S3-compatible storage backend behind the
// small surface the upload broker needs: existence/size checks, fetching a
// verified object for ingestion, and deleting abandoned objects.
package objectstore

import "context"

// Client is the storage-side collaborator of the upload broker. Presigned
// URLs are produced separately by the sigv4 signer; this client is used by
// the server itself with its own credentials.
type Client interface {
	// Head returns the size of the object under key, or common.ErrorNotFound
	// if no such object exists.
	Head(ctx context.Context, key string) (int64, error)

	// Fetch downloads the object under key into destPath.
	Fetch(ctx context.Context, key, destPath string) error

	// Delete removes the object under key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error
}
