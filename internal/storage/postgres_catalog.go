package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// CatalogTable describes where a catalog keeps its rows. An empty column
// name means the catalog lacks that field.
type CatalogTable struct {
	Name              string
	Table             string
	IDColumn          string
	TitleColumn       string
	AuthorColumn      string
	URLColumn         string
	IndexedColumn     string
	FileIndexedColumn string
}

// KabisTable is the layout of the kabis library export.
var KabisTable = CatalogTable{
	Name:              "kabis",
	Table:             "kabis",
	IDColumn:          "id_book",
	TitleColumn:       "title",
	AuthorColumn:      "author",
	URLColumn:         "download_url",
	IndexedColumn:     "is_indexed",
	FileIndexedColumn: "file_is_index",
}

// LibraryTable is the layout of the digital library catalog.
var LibraryTable = CatalogTable{
	Name:              "library",
	Table:             "library",
	IDColumn:          "id",
	TitleColumn:       "title",
	URLColumn:         "download_url",
	IndexedColumn:     "title_is_indexed",
	FileIndexedColumn: "file_is_indexed",
}

// CatalogTableFor returns the built-in layout registered under name.
func CatalogTableFor(name string) (CatalogTable, error) {
	for _, t := range []CatalogTable{KabisTable, LibraryTable} {
		if t.Name == name {
			return t, nil
		}
	}
	return CatalogTable{}, fmt.Errorf("%w: %q", domain.ErrUnknownCatalog, name)
}

// NewPostgresCatalogs builds a registry of the named built-in catalogs.
func NewPostgresCatalogs(db *sqlx.DB, names []string, logger *slog.Logger) (Catalogs, error) {
	catalogs := make([]Catalog, 0, len(names))
	for _, name := range names {
		table, err := CatalogTableFor(name)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, NewPostgresCatalog(db, table, logger))
	}
	return NewCatalogs(catalogs...), nil
}

// PostgresCatalog adapts a catalog table to the Catalog interface.
type PostgresCatalog struct {
	db     *sqlx.DB
	table  CatalogTable
	logger *slog.Logger
}

func NewPostgresCatalog(db *sqlx.DB, table CatalogTable, logger *slog.Logger) *PostgresCatalog {
	return &PostgresCatalog{
		db:     db,
		table:  table,
		logger: logger,
	}
}

func (c *PostgresCatalog) Name() string {
	return c.table.Name
}

func (c *PostgresCatalog) FindByBookID(ctx context.Context, bookID string) (*domain.CatalogRecord, error) {
	var rec domain.CatalogRecord
	if err := c.db.GetContext(ctx, &rec, c.table.selectQuery(), bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrCatalogRecordNotFound, c.table.Name, bookID)
		}
		return nil, fmt.Errorf("failed to find %s record: %w", c.table.Name, err)
	}
	return &rec, nil
}

func (c *PostgresCatalog) ListUnindexed(ctx context.Context, limit int) ([]domain.CatalogRecord, error) {
	var recs []domain.CatalogRecord
	if err := c.db.SelectContext(ctx, &recs, c.table.unindexedQuery(), limit); err != nil {
		return nil, fmt.Errorf("failed to list unindexed %s records: %w", c.table.Name, err)
	}
	return recs, nil
}

func (c *PostgresCatalog) SetIndexed(ctx context.Context, bookID string) (bool, error) {
	return c.flip(ctx, c.table.IndexedColumn, bookID)
}

func (c *PostgresCatalog) SetFileIndexed(ctx context.Context, bookID string) (bool, error) {
	return c.flip(ctx, c.table.FileIndexedColumn, bookID)
}

func (c *PostgresCatalog) flip(ctx context.Context, column, bookID string) (bool, error) {
	flipped, err := flipFlag(ctx, c.db, c.table.flipQuery(column), bookID)
	if err != nil {
		return false, fmt.Errorf("failed to set %s.%s: %w", c.table.Name, column, err)
	}

	if !flipped {
		if _, err := c.FindByBookID(ctx, bookID); err != nil {
			return false, err
		}
		c.logger.Debug("Catalog flag already set",
			slog.String("catalog", c.table.Name),
			slog.String("column", column),
			slog.String("id_book", bookID),
		)
		return false, nil
	}

	c.logger.Info("Catalog flag set",
		slog.String("catalog", c.table.Name),
		slog.String("column", column),
		slog.String("id_book", bookID),
	)
	return true, nil
}

func (t CatalogTable) columns() string {
	return fmt.Sprintf(
		`%s::text AS id_book, %s AS title, %s AS author, %s AS download_url,
			COALESCE(%s, FALSE) AS is_indexed, COALESCE(%s, FALSE) AS file_is_indexed`,
		pq.QuoteIdentifier(t.IDColumn),
		columnOr(t.TitleColumn, "''"),
		columnOr(t.AuthorColumn, "NULL::text"),
		columnOr(t.URLColumn, "NULL::text"),
		pq.QuoteIdentifier(t.IndexedColumn),
		pq.QuoteIdentifier(t.FileIndexedColumn),
	)
}

func (t CatalogTable) selectQuery() string {
	return fmt.Sprintf(
		`SELECT %s
		FROM %s WHERE %s::text = $1 LIMIT 1`,
		t.columns(),
		pq.QuoteIdentifier(t.Table),
		pq.QuoteIdentifier(t.IDColumn),
	)
}

func (t CatalogTable) unindexedQuery() string {
	return fmt.Sprintf(
		`SELECT %s
		FROM %s WHERE %s IS NOT TRUE AND BTRIM(%s) <> ''
		ORDER BY %s::text LIMIT $1`,
		t.columns(),
		pq.QuoteIdentifier(t.Table),
		pq.QuoteIdentifier(t.IndexedColumn),
		columnOr(t.TitleColumn, "''"),
		pq.QuoteIdentifier(t.IDColumn),
	)
}

func (t CatalogTable) flipQuery(column string) string {
	col := pq.QuoteIdentifier(column)
	return fmt.Sprintf(
		`UPDATE %s SET %s = TRUE WHERE %s::text = $1 AND %s IS NOT TRUE`,
		pq.QuoteIdentifier(t.Table), col, pq.QuoteIdentifier(t.IDColumn), col,
	)
}

func columnOr(column, fallback string) string {
	if column == "" {
		return fallback
	}
	return fmt.Sprintf("COALESCE(%s, %s)", pq.QuoteIdentifier(column), fallback)
}
