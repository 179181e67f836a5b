// Package storage keeps uploaded media and intermediate audio on local disk
// and optionally publishes run reports to S3-compatible object storage.
package storage

import (
	"context"
	"io"
)

// Storage defines temporary file handling for pipeline runs plus optional
// object uploads.
type Storage interface {
	// SaveTemp writes data to a new temporary file and returns its path.
	// The name is used as a hint; its extension is preserved.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// WorkDir creates a fresh scratch directory for one run.
	WorkDir(ctx context.Context, prefix string) (string, error)

	// LoadTemp opens a temporary file. The caller closes the reader.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the given files and directories. It keeps going
	// when a removal fails and returns the first error.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 stores data under key and returns its URL.
	// Returns ErrS3NotConfigured when no bucket is configured.
	UploadToS3(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}
