package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfwise/catalog-scraper/internal/scraper"
)

func TestCategoryUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewCatalogStore()
	ctx := context.Background()

	cat := scraper.Category{Title: "Fiction", Slug: "fiction", SourceURL: "https://shop.example.org/category/fiction"}
	_, err := store.UpsertCategory(ctx, cat)
	require.NoError(t, err)

	cat.Title = "Fiction & Poetry"
	_, err = store.UpsertCategory(ctx, cat)
	require.NoError(t, err)

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1, "re-scraping the same slug must not duplicate")
	require.Equal(t, "Fiction & Poetry", cats[0].Title)
}

func TestFindBySlugAbsent(t *testing.T) {
	t.Parallel()

	store := NewCatalogStore()
	cat, err := store.FindBySlug(context.Background(), "no-such")
	require.NoError(t, err)
	require.Nil(t, cat)
}

func TestProductCompositeKey(t *testing.T) {
	t.Parallel()

	store := NewCatalogStore()
	ctx := context.Background()

	p := scraper.Product{Title: "Dune", SourceURL: "https://shop.example.org/products/dune", CategorySlug: "fiction"}
	_, err := store.UpsertProduct(ctx, p)
	require.NoError(t, err)

	// Same item under another category is a separate row.
	p.CategorySlug = "sci-fi"
	_, err = store.UpsertProduct(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 2, store.ProductCount())

	// Re-scraping the same pair replaces in place.
	p.Price = "£8.99"
	_, err = store.UpsertProduct(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 2, store.ProductCount())
}

func TestListProductsFilterSearchAndPage(t *testing.T) {
	t.Parallel()

	store := NewCatalogStore()
	ctx := context.Background()

	seed := []scraper.Product{
		{Title: "Dune", Author: "Frank Herbert", SourceURL: "https://s/products/dune", CategorySlug: "sci-fi"},
		{Title: "Dune Messiah", Author: "Frank Herbert", SourceURL: "https://s/products/dune-messiah", CategorySlug: "sci-fi"},
		{Title: "Emma", Author: "Jane Austen", SourceURL: "https://s/products/emma", CategorySlug: "fiction"},
	}
	for _, p := range seed {
		_, err := store.UpsertProduct(ctx, p)
		require.NoError(t, err)
	}

	listing, err := store.ListProducts(ctx, scraper.ProductQuery{CategorySlug: "sci-fi"})
	require.NoError(t, err)
	require.Equal(t, 2, listing.Total)
	require.Equal(t, "Dune", listing.Products[0].Title, "results are ordered by title")

	listing, err = store.ListProducts(ctx, scraper.ProductQuery{Search: "austen"})
	require.NoError(t, err)
	require.Equal(t, 1, listing.Total)
	require.Equal(t, "Emma", listing.Products[0].Title)

	listing, err = store.ListProducts(ctx, scraper.ProductQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, listing.Total)
	require.Equal(t, 2, listing.TotalPages)
	require.Len(t, listing.Products, 1)

	listing, err = store.ListProducts(ctx, scraper.ProductQuery{Page: 9, Limit: 2})
	require.NoError(t, err)
	require.Empty(t, listing.Products, "pages past the end are empty, not an error")
}
