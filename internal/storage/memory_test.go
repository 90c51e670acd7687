package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) stores {
		m := NewMemoryStore()
		return stores{jobs: m, docs: m}
	})
}

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemoryCatalog("kabis", domain.CatalogRecord{BookID: "7", Title: "Abai Zholy"})

	rec, err := catalog.FindByBookID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Abai Zholy", rec.Title)

	flipped, err := catalog.SetFileIndexed(ctx, "7")
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = catalog.SetFileIndexed(ctx, "7")
	require.NoError(t, err)
	assert.False(t, flipped)

	flipped, err = catalog.SetIndexed(ctx, "7")
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, 2, catalog.Flips())

	_, err = catalog.SetIndexed(ctx, "8")
	assert.ErrorIs(t, err, domain.ErrCatalogRecordNotFound)
}

func TestMemoryCatalog_ListUnindexed(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemoryCatalog("kabis",
		domain.CatalogRecord{BookID: "3", Title: "Kara sozder"},
		domain.CatalogRecord{BookID: "1", Title: "Abai Zholy"},
		domain.CatalogRecord{BookID: "2", Title: "Kokserek", IsIndexed: true},
		domain.CatalogRecord{BookID: "4", Title: "  "},
	)

	recs, err := catalog.ListUnindexed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1", recs[0].BookID)
	assert.Equal(t, "3", recs[1].BookID)

	recs, err = catalog.ListUnindexed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0].BookID)

	_, err = catalog.SetIndexed(ctx, "1")
	require.NoError(t, err)
	recs, err = catalog.ListUnindexed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "3", recs[0].BookID)
}

func TestCatalogs_Lookup(t *testing.T) {
	catalogs := NewCatalogs(NewMemoryCatalog("kabis"), NewMemoryCatalog("library"))

	c, err := catalogs.Lookup("library")
	require.NoError(t, err)
	assert.Equal(t, "library", c.Name())

	_, err = catalogs.Lookup("openlibrary")
	assert.ErrorIs(t, err, domain.ErrUnknownCatalog)
}
