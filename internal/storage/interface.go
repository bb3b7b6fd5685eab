package storage

import (
	"context"
	"io"
)

// CorpusStorage is where raw dataset documents live. The indexer lists a
// dataset's prefix and streams each document when building a generation;
// operators upload documents through the same interface.
type CorpusStorage interface {
	// Upload stores a document under key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download streams a document
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns all object keys under a prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks whether a document exists
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes a document
	Delete(ctx context.Context, key string) error
}
