package scraper

import (
	"net/http"
	"time"
)

// Category is the durable record for one catalog grouping. Upserts are
// keyed on Slug.
type Category struct {
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	SourceURL     string    `json:"source_url"`
	LastScrapedAt time.Time `json:"last_scraped_at"`
}

// Product is the durable record for one catalog item. A product is uniquely
// identified by the pair (SourceURL, CategorySlug); the same item may appear
// under multiple categories.
type Product struct {
	Title         string    `json:"title"`
	Price         string    `json:"price"`
	Author        string    `json:"author,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	SourceURL     string    `json:"source_url"`
	SourceID      string    `json:"source_id"`
	CategorySlug  string    `json:"category_slug"`
	LastScrapedAt time.Time `json:"last_scraped_at"`
}

// CategoryCandidate is a raw extraction result before validation and
// persistence.
type CategoryCandidate struct {
	Title string
	URL   string
	Slug  string
}

// ProductCandidate is a raw extraction result before validation and
// persistence. Tier records which extraction strategy produced it.
type ProductCandidate struct {
	Title    string
	Price    string
	Author   string
	ImageURL string
	URL      string
	SourceID string
	Tier     int
}

// Page is a snapshot of a fetched or rendered document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	UsedJS     bool
}

// RenderRequest captures everything needed to render a page in the browser.
type RenderRequest struct {
	URL string
	// Scroll triggers lazy-load scrolling before the DOM snapshot is taken.
	Scroll bool
}

// RunKind distinguishes category runs from product runs in reports and events.
type RunKind string

// Run kinds emitted in completion events.
const (
	RunKindCategories RunKind = "categories"
	RunKindProducts   RunKind = "products"
)

// RunReport is the structured outcome returned by the invocation surface.
type RunReport struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// RunEvent is published after a run completes.
type RunEvent struct {
	RunID        string    `json:"run_id"`
	Kind         RunKind   `json:"kind"`
	CategorySlug string    `json:"category_slug,omitempty"`
	Success      bool      `json:"success"`
	Count        int       `json:"count"`
	Pages        int       `json:"pages"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// ProductQuery filters product listings.
type ProductQuery struct {
	CategorySlug string
	Search       string
	Page         int
	Limit        int
}

// ProductListing is one page of a product listing.
type ProductListing struct {
	Products   []Product `json:"products"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
}
