// Package sqlite persists document metadata in a SQLite database. The
// pure-Go driver keeps the binary cgo-free.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	stored_name  TEXT NOT NULL,
	display_name TEXT NOT NULL,
	uploaded_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_display_name ON documents(display_name);
`

// Store is a SQLite-backed document metadata store.
type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the database at path and ensures the
// schema exists.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: database path is required: %w", domain.ErrInvalidConfig)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Create inserts a new document record.
func (s *Store) Create(ctx context.Context, doc domain.Document) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, stored_name, display_name, uploaded_at)
		 SELECT ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM documents WHERE id = ?)`,
		doc.ID, doc.StoredName, doc.DisplayName, doc.UploadedAt.UTC(), doc.ID,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// List returns all documents, most recently uploaded first.
func (s *Store) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stored_name, display_name, uploaded_at FROM documents ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var uploadedAt time.Time
		if err := rows.Scan(&doc.ID, &doc.StoredName, &doc.DisplayName, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.UploadedAt = uploadedAt
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Get returns the document with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, stored_name, display_name, uploaded_at FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.StoredName, &doc.DisplayName, &doc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

// ExistsDisplayName reports whether a document with the given display
// name has already been uploaded.
func (s *Store) ExistsDisplayName(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE display_name = ? LIMIT 1`, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check display name: %w", err)
	}
	return true, nil
}

// Delete removes the document record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
