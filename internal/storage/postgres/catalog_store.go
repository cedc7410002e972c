// Package postgres provides Postgres-backed persistence for the catalog.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfwise/catalog-scraper/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CatalogStoreConfig controls the Postgres connection pool used for catalog
// rows.
type CatalogStoreConfig struct {
	DSN             string
	CategoriesTable string
	ProductsTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// CatalogStore persists categories and products in Postgres. Upserts are
// keyed on the catalog invariants: slug for categories, (source_url,
// category_slug) for products.
type CatalogStore struct {
	pool       pgxQuerier
	categories string
	products   string
}

// NewCatalogStore creates a Postgres-backed CatalogStore using the provided
// config.
func NewCatalogStore(ctx context.Context, cfg CatalogStoreConfig) (*CatalogStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewCatalogStoreWithPool(pool, cfg.CategoriesTable, cfg.ProductsTable)
}

// NewCatalogStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewCatalogStoreWithPool(pool pgxQuerier, categoriesTable, productsTable string) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if categoriesTable == "" {
		categoriesTable = "categories"
	}
	if productsTable == "" {
		productsTable = "products"
	}
	for _, table := range []string{categoriesTable, productsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &CatalogStore{
		pool:       pool,
		categories: categoriesTable,
		products:   productsTable,
	}, nil
}

// Close releases the underlying pool resources.
func (s *CatalogStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindBySlug returns the category for slug, or (nil, nil) when absent.
func (s *CatalogStore) FindBySlug(ctx context.Context, slug string) (*scraper.Category, error) {
	query := fmt.Sprintf(`
SELECT title, slug, source_url, last_scraped_at
FROM %s
WHERE slug = $1`, s.categories)

	var cat scraper.Category
	err := s.pool.QueryRow(ctx, query, slug).
		Scan(&cat.Title, &cat.Slug, &cat.SourceURL, &cat.LastScrapedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return &cat, nil
}

// UpsertCategory inserts or refreshes a category keyed on slug.
func (s *CatalogStore) UpsertCategory(ctx context.Context, cat scraper.Category) (scraper.Category, error) {
	if cat.Slug == "" {
		return scraper.Category{}, fmt.Errorf("category slug is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (title, slug, source_url, last_scraped_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE
SET title = EXCLUDED.title,
	source_url = EXCLUDED.source_url,
	last_scraped_at = EXCLUDED.last_scraped_at
RETURNING title, slug, source_url, last_scraped_at`, s.categories)

	var out scraper.Category
	err := s.pool.QueryRow(ctx, query, cat.Title, cat.Slug, cat.SourceURL, cat.LastScrapedAt).
		Scan(&out.Title, &out.Slug, &out.SourceURL, &out.LastScrapedAt)
	if err != nil {
		return scraper.Category{}, fmt.Errorf("upsert category: %w", err)
	}
	return out, nil
}

// ListCategories returns all categories ordered by title.
func (s *CatalogStore) ListCategories(ctx context.Context) ([]scraper.Category, error) {
	query := fmt.Sprintf(`
SELECT title, slug, source_url, last_scraped_at
FROM %s
ORDER BY title`, s.categories)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []scraper.Category
	for rows.Next() {
		var cat scraper.Category
		if err := rows.Scan(&cat.Title, &cat.Slug, &cat.SourceURL, &cat.LastScrapedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// UpsertProduct inserts or refreshes a product keyed on (source_url,
// category_slug). The same item under two categories stays two rows.
func (s *CatalogStore) UpsertProduct(ctx context.Context, p scraper.Product) (scraper.Product, error) {
	if p.SourceURL == "" || p.CategorySlug == "" {
		return scraper.Product{}, fmt.Errorf("product source url and category slug are required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (title, price, author, image_url, source_url, source_id, category_slug, last_scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (source_url, category_slug) DO UPDATE
SET title = EXCLUDED.title,
	price = EXCLUDED.price,
	author = EXCLUDED.author,
	image_url = EXCLUDED.image_url,
	source_id = EXCLUDED.source_id,
	last_scraped_at = EXCLUDED.last_scraped_at
RETURNING title, price, author, image_url, source_url, source_id, category_slug, last_scraped_at`, s.products)

	var out scraper.Product
	err := s.pool.QueryRow(ctx, query,
		p.Title, p.Price, p.Author, p.ImageURL, p.SourceURL, p.SourceID, p.CategorySlug, p.LastScrapedAt,
	).Scan(
		&out.Title, &out.Price, &out.Author, &out.ImageURL,
		&out.SourceURL, &out.SourceID, &out.CategorySlug, &out.LastScrapedAt,
	)
	if err != nil {
		return scraper.Product{}, fmt.Errorf("upsert product: %w", err)
	}
	return out, nil
}

// ListProducts returns one page of products filtered by category and search
// term.
func (s *CatalogStore) ListProducts(ctx context.Context, q scraper.ProductQuery) (scraper.ProductListing, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = 50
	}

	where, args := s.productFilter(q)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, s.products, where)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return scraper.ProductListing{}, fmt.Errorf("count products: %w", err)
	}

	listQuery := fmt.Sprintf(`
SELECT title, price, author, image_url, source_url, source_id, category_slug, last_scraped_at
FROM %s%s
ORDER BY title
LIMIT $%d OFFSET $%d`, s.products, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return scraper.ProductListing{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []scraper.Product
	for rows.Next() {
		var p scraper.Product
		if err := rows.Scan(
			&p.Title, &p.Price, &p.Author, &p.ImageURL,
			&p.SourceURL, &p.SourceID, &p.CategorySlug, &p.LastScrapedAt,
		); err != nil {
			return scraper.ProductListing{}, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return scraper.ProductListing{}, fmt.Errorf("iterate products: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	return scraper.ProductListing{
		Products:   products,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

func (s *CatalogStore) productFilter(q scraper.ProductQuery) (string, []any) {
	var clauses []string
	var args []any
	if q.CategorySlug != "" {
		args = append(args, q.CategorySlug)
		clauses = append(clauses, fmt.Sprintf("category_slug = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d)", n, n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, " AND "), args
}
