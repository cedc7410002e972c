package scraper

import (
	"context"
	"io"
	"time"
)

// CategoryStore persists category records.
type CategoryStore interface {
	// FindBySlug returns the category or (nil, nil) when absent.
	FindBySlug(ctx context.Context, slug string) (*Category, error)
	UpsertCategory(ctx context.Context, cat Category) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// ProductStore persists product records keyed on (source_url, category_slug).
type ProductStore interface {
	UpsertProduct(ctx context.Context, p Product) (Product, error)
	ListProducts(ctx context.Context, q ProductQuery) (ProductListing, error)
}

// Fetcher retrieves a page without JavaScript execution.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer drives a headless browser session and returns fully rendered DOM
// snapshots. One Renderer instance corresponds to one browser session.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (Page, error)
	Close(ctx context.Context) error
}

// RendererFactory opens a fresh browser session. The coordinator acquires a
// session at run start and releases it on every exit path.
type RendererFactory func() (Renderer, error)

// Detector decides whether a statically fetched page is usable or JS
// rendering must be escalated.
type Detector interface {
	NeedsJS(ctx context.Context, page Page) bool
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs and source-ID fallback tokens.
type IDGenerator interface {
	NewID() (string, error)
}
