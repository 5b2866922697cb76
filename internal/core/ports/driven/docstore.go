package driven

import (
	"context"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

// DocumentStore persists document metadata (id, stored name, display
// name, upload time). The document text itself lives in the FileStore and
// its vectors in the VectorIndex.
type DocumentStore interface {
	// Create inserts a new document record.
	Create(ctx context.Context, doc domain.Document) error

	// List returns all documents, most recently uploaded first.
	List(ctx context.Context) ([]domain.Document, error)

	// Get returns the document with the given ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ExistsDisplayName reports whether a document with the given display
	// name has already been uploaded.
	ExistsDisplayName(ctx context.Context, name string) (bool, error)

	// Delete removes the document record. Deleting an unknown ID returns
	// domain.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

// FileStore persists raw uploaded document bytes.
type FileStore interface {
	// Save writes the blob and returns an opaque storage reference.
	// ext is the original filename extension (may be empty).
	Save(ctx context.Context, data []byte, ext string) (string, error)

	// Read returns the blob for a storage reference.
	Read(ctx context.Context, ref string) ([]byte, error)

	// Delete removes the blob. Deleting an unknown reference is a no-op.
	Delete(ctx context.Context, ref string) error
}
