package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// PostgresDocumentStore keeps uploaded documents in the documents table.
type PostgresDocumentStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewPostgresDocumentStore(db *sqlx.DB, logger *slog.Logger) *PostgresDocumentStore {
	return &PostgresDocumentStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresDocumentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, title, file_path, file_type, source, id_book, is_indexed, created_at)
		VALUES (:id, :title, :file_path, :file_type, :source, :id_book, :is_indexed, NOW())
	`

	if _, err := s.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	query := `
		SELECT id, title, file_path, file_type, source, id_book, is_indexed, created_at
		FROM documents
		WHERE id = $1
	`

	if err := s.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *PostgresDocumentStore) SetDocumentIndexed(ctx context.Context, id string) (bool, error) {
	flipped, err := flipFlag(ctx, s.db,
		`UPDATE documents SET is_indexed = TRUE WHERE id = $1 AND is_indexed = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to set document indexed: %w", err)
	}
	if flipped {
		return true, nil
	}

	if _, err := s.GetDocument(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// flipFlag runs a false->true conditional update and reports whether a row
// changed.
func flipFlag(ctx context.Context, db *sqlx.DB, query string, args ...interface{}) (bool, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
