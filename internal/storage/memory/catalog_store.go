// Package memory provides an in-memory catalog store for development and
// testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shelfwise/catalog-scraper/internal/scraper"
)

// CatalogStore keeps categories and products in process memory. Upserts obey
// the same keys as the Postgres store: slug for categories, (source_url,
// category_slug) for products.
type CatalogStore struct {
	mu         sync.RWMutex
	categories map[string]scraper.Category
	products   map[string]scraper.Product
}

// NewCatalogStore constructs an empty CatalogStore.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		categories: make(map[string]scraper.Category),
		products:   make(map[string]scraper.Product),
	}
}

// FindBySlug returns the category or (nil, nil) when absent.
func (s *CatalogStore) FindBySlug(_ context.Context, slug string) (*scraper.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.categories[slug]
	if !ok {
		return nil, nil
	}
	return &cat, nil
}

// UpsertCategory inserts or replaces the category keyed on slug.
func (s *CatalogStore) UpsertCategory(_ context.Context, cat scraper.Category) (scraper.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[cat.Slug] = cat
	return cat, nil
}

// ListCategories returns all categories ordered by title.
func (s *CatalogStore) ListCategories(_ context.Context) ([]scraper.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scraper.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// UpsertProduct inserts or replaces the product keyed on (source_url,
// category_slug).
func (s *CatalogStore) UpsertProduct(_ context.Context, p scraper.Product) (scraper.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[productKey(p.SourceURL, p.CategorySlug)] = p
	return p, nil
}

// ListProducts returns one page of products filtered by category and search
// term.
func (s *CatalogStore) ListProducts(_ context.Context, q scraper.ProductQuery) (scraper.ProductListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []scraper.Product
	for _, p := range s.products {
		if q.CategorySlug != "" && p.CategorySlug != q.CategorySlug {
			continue
		}
		if q.Search != "" && !matchesSearch(p, q.Search) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = 50
	}
	total := len(matched)

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return scraper.ProductListing{
		Products:   matched[start:end],
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// ProductCount reports the number of stored products (test helper).
func (s *CatalogStore) ProductCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

func productKey(sourceURL, categorySlug string) string {
	return sourceURL + "\x00" + categorySlug
}

func matchesSearch(p scraper.Product, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Author), term)
}
