// Package storage provides a domain-agnostic interface for S3-compatible
// object storage. Artifacts are opaque named blobs; the object key is the
// sole join key referenced from database rows.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ArtifactStore defines the interface for object storage operations.
// This interface is designed to be domain-agnostic and can be used by any module.
type ArtifactStore interface {
	// Put stores an object under the given key and returns the key.
	Put(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) (string, error)

	// Get retrieves an object. The caller must close the returned reader.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Delete removes an object from storage.
	Delete(ctx context.Context, bucket, key string) error

	// Exists reports whether an object is present under the key.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// GenerateDownloadURL creates a presigned URL for downloading an object.
	GenerateDownloadURL(ctx context.Context, bucket, key string) (*PresignedURL, error)
}
