package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to the database named by BOOK_INGEST_TEST_DATABASE_URL
// and skips the test when it is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("BOOK_INGEST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BOOK_INGEST_TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func TestPostgresStores(t *testing.T) {
	db := openTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	runStoreContract(t, func(t *testing.T) stores {
		return stores{
			jobs: NewPostgresJobStore(db, logger),
			docs: NewPostgresDocumentStore(db, logger),
		}
	})
}

func TestPostgresCatalog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	db.SetMaxOpenConns(1)

	_, err := db.ExecContext(ctx, `
		CREATE TEMP TABLE library (
			id TEXT PRIMARY KEY,
			title TEXT,
			download_url TEXT,
			file_is_indexed BOOLEAN DEFAULT FALSE,
			title_is_indexed BOOLEAN
		)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO library (id, title) VALUES ('b-1', 'Kyz Zhibek'), ('b-2', NULL)`)
	require.NoError(t, err)

	catalog := NewPostgresCatalog(db, LibraryTable, logger)

	rec, err := catalog.FindByBookID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "Kyz Zhibek", rec.Title)
	assert.Nil(t, rec.Author)
	assert.False(t, rec.IsIndexed)

	pending, err := catalog.ListUnindexed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b-1", pending[0].BookID)

	flipped, err := catalog.SetIndexed(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, flipped)
	flipped, err = catalog.SetIndexed(ctx, "b-1")
	require.NoError(t, err)
	assert.False(t, flipped)

	pending, err = catalog.ListUnindexed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
