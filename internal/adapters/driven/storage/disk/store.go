// Package disk stores uploaded document blobs as files on the local
// filesystem, one file per document, named by a generated UUID.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.FileStore = (*Store)(nil)

// Store is a filesystem-backed blob store rooted at a single directory.
type Store struct {
	root string
}

// New creates the root directory if needed and returns the store.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("disk: storage directory is required: %w", domain.ErrInvalidConfig)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Save writes the blob under a fresh UUID name and returns that name as
// the storage reference. ext is the original filename extension and is
// kept so files remain recognisable on disk.
func (s *Store) Save(_ context.Context, data []byte, ext string) (string, error) {
	name := uuid.NewString()
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	if err := os.WriteFile(filepath.Join(s.root, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return name, nil
}

// Read returns the blob for a storage reference.
func (s *Store) Read(_ context.Context, ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob. Deleting an unknown reference is a no-op.
func (s *Store) Delete(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// resolve maps a storage reference onto the root directory, rejecting
// references that would escape it.
func (s *Store) resolve(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", fmt.Errorf("invalid storage reference %q", ref)
	}
	return filepath.Join(s.root, ref), nil
}
