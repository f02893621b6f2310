// Package storage stages uploaded recordings on local disk and pushes
// finished exports to object storage. It defines the Storage interface
// (port) and implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary and persistent file storage.
// Implementations must handle staged inputs during processing and
// optionally support uploads for delivering exports.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename; its extension
	// is preserved.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Upload stores data under key and returns its public URL.
	// Returns ErrS3NotConfigured if no object storage is configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
