package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Coordinator validates extracted records, derives stable identifiers where
// missing, and commits them via idempotent upsert. It owns the control flow
// of one scrape run: navigate, extract into the run's buffer, drain,
// validate, upsert, clear.
type Coordinator struct {
	cfg        Config
	fetcher    Fetcher
	sessions   RendererFactory
	detector   Detector
	categories CategoryStore
	products   ProductStore
	archive    BlobStore
	events     Publisher
	idGen      IDGenerator
	clock      Clock
	logger     *zap.Logger
}

// NewCoordinator wires a Coordinator. archive and events may be nil; the
// corresponding steps are skipped.
func NewCoordinator(
	cfg Config,
	fetcher Fetcher,
	sessions RendererFactory,
	detector Detector,
	categories CategoryStore,
	products ProductStore,
	archive BlobStore,
	events Publisher,
	idGen IDGenerator,
	clock Clock,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		fetcher:    fetcher,
		sessions:   sessions,
		detector:   detector,
		categories: categories,
		products:   products,
		archive:    archive,
		events:     events,
		idGen:      idGen,
		clock:      clock,
		logger:     logger,
	}
}

// ScrapeCategories drives the configured landing page, extracts category
// links, and upserts the survivors keyed on slug. A run that extracts zero
// valid records is not an error.
func (c *Coordinator) ScrapeCategories(ctx context.Context) (RunReport, error) {
	started := c.clock.Now()
	runID := c.newRunID()
	sess := newSession(c.sessions)
	defer sess.close(ctx, c.logger)

	buf := NewBuffer[CategoryCandidate]()
	defer buf.Clear()

	page, err := c.acquirePage(ctx, sess, c.cfg.EntryURL, false)
	if err != nil {
		return c.finishCategories(ctx, runID, started, 0, 0, err)
	}
	c.archivePage(ctx, runID, page)

	cands, err := ExtractCategories(page)
	if err != nil {
		return c.finishCategories(ctx, runID, started, 0, 1, err)
	}
	buf.Add(cands...)

	count := c.ingestCategories(ctx, buf.Drain())
	return c.finishCategories(ctx, runID, started, count, 1, nil)
}

// ScrapeProducts scrapes the category page for slug, following pagination up
// to the page budget, and upserts survivors keyed on (sourceUrl, slug). The
// category must exist and carry a source URL; otherwise ErrCategoryNotFound
// is returned before any navigation happens.
func (c *Coordinator) ScrapeProducts(ctx context.Context, slug string) (RunReport, error) {
	started := c.clock.Now()
	runID := c.newRunID()

	cat, err := c.categories.FindBySlug(ctx, slug)
	if err != nil {
		return c.finishProducts(ctx, runID, slug, started, 0, 0, fmt.Errorf("lookup category %q: %w", slug, err))
	}
	if cat == nil || cat.SourceURL == "" {
		return c.finishProducts(ctx, runID, slug, started, 0, 0, fmt.Errorf("%w: %q", ErrCategoryNotFound, slug))
	}

	sess := newSession(c.sessions)
	defer sess.close(ctx, c.logger)

	buf := NewBuffer[ProductCandidate]()
	defer buf.Clear()

	seen := make(map[string]struct{})
	pageURL := cat.SourceURL
	pages := 0
	for pageURL != "" && pages < c.cfg.MaxPagesPerRun {
		page, navErr := c.acquirePage(ctx, sess, pageURL, true)
		if navErr != nil {
			if pages == 0 {
				return c.finishProducts(ctx, runID, slug, started, 0, 0, navErr)
			}
			// Partial results from earlier pages still commit.
			c.logger.Warn("pagination stopped on navigation failure",
				zap.String("url", pageURL), zap.Error(navErr))
			break
		}
		pages++
		c.archivePage(ctx, runID, page)

		cands, exErr := ExtractProducts(page, seen)
		if exErr != nil {
			c.logger.Warn("product extraction failed for page",
				zap.String("url", pageURL), zap.Error(exErr))
			break
		}
		buf.Add(cands...)
		pageURL = nextPageURL(page)
	}

	count := c.ingestProducts(ctx, slug, buf.Drain())
	return c.finishProducts(ctx, runID, slug, started, count, pages, nil)
}

func (c *Coordinator) ingestCategories(ctx context.Context, cands []CategoryCandidate) int {
	count := 0
	for _, cand := range cands {
		if cand.Title == "" || cand.URL == "" || cand.Slug == "" {
			recordsSkipped.WithLabelValues("category_incomplete").Inc()
			continue
		}
		rec := Category{
			Title:         cand.Title,
			Slug:          cand.Slug,
			SourceURL:     cand.URL,
			LastScrapedAt: c.clock.Now(),
		}
		if _, err := c.categories.UpsertCategory(ctx, rec); err != nil {
			persistenceErrors.Inc()
			c.logger.Warn("category upsert failed; skipping record",
				zap.String("slug", cand.Slug), zap.Error(err))
			continue
		}
		recordsUpserted.WithLabelValues("category").Inc()
		count++
	}
	return count
}

func (c *Coordinator) ingestProducts(ctx context.Context, slug string, cands []ProductCandidate) int {
	count := 0
	for _, cand := range cands {
		title := collapseSpace(cand.Title)
		if !usableTitle(title) {
			recordsSkipped.WithLabelValues("product_title").Inc()
			continue
		}
		if cand.URL == "" {
			recordsSkipped.WithLabelValues("product_source_url").Inc()
			continue
		}
		sourceID := cand.SourceID
		if sourceID == "" {
			id, err := c.idGen.NewID()
			if err != nil {
				recordsSkipped.WithLabelValues("product_source_id").Inc()
				c.logger.Warn("source id fallback failed; skipping record",
					zap.String("url", cand.URL), zap.Error(err))
				continue
			}
			sourceID = id
		}
		price := cand.Price
		if price == "" {
			price = placeholderPrice
		}
		rec := Product{
			Title:         title,
			Price:         price,
			Author:        cand.Author,
			ImageURL:      cand.ImageURL,
			SourceURL:     cand.URL,
			SourceID:      sourceID,
			CategorySlug:  slug,
			LastScrapedAt: c.clock.Now(),
		}
		if _, err := c.products.UpsertProduct(ctx, rec); err != nil {
			persistenceErrors.Inc()
			c.logger.Warn("product upsert failed; skipping record",
				zap.String("url", cand.URL), zap.Error(err))
			continue
		}
		recordsUpserted.WithLabelValues("product").Inc()
		count++
	}
	return count
}

// acquirePage fetches via the fast path first and escalates to the browser
// session when the static snapshot is unusable or the fetch itself failed.
// A page that passes the detector already carries its content server-side,
// so no scrolling is needed for it.
func (c *Coordinator) acquirePage(ctx context.Context, sess *session, rawURL string, scroll bool) (Page, error) {
	page, err := c.fetcher.Fetch(ctx, rawURL)
	if err == nil && !c.detector.NeedsJS(ctx, page) {
		return page, nil
	}
	if err != nil {
		c.logger.Debug("static fetch failed; escalating to browser",
			zap.String("url", rawURL), zap.Error(err))
	}
	renderer, err := sess.renderer()
	if err != nil {
		return Page{}, &NavigationError{URL: rawURL, Err: err}
	}
	return renderer.Render(ctx, RenderRequest{URL: rawURL, Scroll: scroll})
}

func (c *Coordinator) finishCategories(ctx context.Context, runID string, started time.Time, count, pages int, runErr error) (RunReport, error) {
	return c.finishRun(ctx, runID, RunKindCategories, "", started, count, pages, runErr)
}

func (c *Coordinator) finishProducts(ctx context.Context, runID, slug string, started time.Time, count, pages int, runErr error) (RunReport, error) {
	return c.finishRun(ctx, runID, RunKindProducts, slug, started, count, pages, runErr)
}

func (c *Coordinator) finishRun(
	ctx context.Context,
	runID string,
	kind RunKind,
	slug string,
	started time.Time,
	count, pages int,
	runErr error,
) (RunReport, error) {
	report := RunReport{Success: runErr == nil, Count: count}
	outcome := "success"
	if runErr != nil {
		report.Error = runErr.Error()
		outcome = "failure"
	}
	runsCompleted.WithLabelValues(string(kind), outcome).Inc()

	c.publishEvent(ctx, RunEvent{
		RunID:        runID,
		Kind:         kind,
		CategorySlug: slug,
		Success:      runErr == nil,
		Count:        count,
		Pages:        pages,
		StartedAt:    started,
		FinishedAt:   c.clock.Now(),
	})

	if runErr != nil {
		c.logger.Warn("scrape run failed",
			zap.String("run_id", runID),
			zap.String("kind", string(kind)),
			zap.Error(runErr))
		return report, runErr
	}
	c.logger.Info("scrape run finished",
		zap.String("run_id", runID),
		zap.String("kind", string(kind)),
		zap.Int("count", count),
		zap.Int("pages", pages))
	return report, nil
}

func (c *Coordinator) publishEvent(ctx context.Context, ev RunEvent) {
	if c.events == nil {
		return
	}
	if _, err := c.events.Publish(ctx, c.cfg.EventTopic, ev); err != nil {
		c.logger.Warn("run event publish failed", zap.String("run_id", ev.RunID), zap.Error(err))
	}
}

func (c *Coordinator) archivePage(ctx context.Context, runID string, page Page) {
	if c.archive == nil {
		return
	}
	path := fmt.Sprintf("runs/%s/%s.html", runID, safeBasename(page.pageURL()))
	if _, err := c.archive.PutObject(ctx, path, "text/html", bytes.NewReader(page.Body)); err != nil {
		c.logger.Warn("snapshot archive failed", zap.String("path", path), zap.Error(err))
	}
}

func (c *Coordinator) newRunID() string {
	id, err := c.idGen.NewID()
	if err != nil {
		return fmt.Sprintf("run-%d", c.clock.Now().UnixNano())
	}
	return id
}

// session lazily opens one browser session per run and guarantees it is
// released with the run.
type session struct {
	open    Renderer
	err     error
	factory RendererFactory
}

func newSession(factory RendererFactory) *session {
	return &session{factory: factory}
}

func (s *session) renderer() (Renderer, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.open != nil {
		return s.open, nil
	}
	if s.factory == nil {
		s.err = ErrRendererDisabled
		return nil, s.err
	}
	r, err := s.factory()
	if err != nil {
		s.err = err
		return nil, err
	}
	s.open = r
	return r, nil
}

func (s *session) close(ctx context.Context, logger *zap.Logger) {
	if s.open == nil {
		return
	}
	if err := s.open.Close(ctx); err != nil {
		logger.Warn("browser session close failed", zap.Error(err))
	}
	s.open = nil
}

// Selectors tried when hunting for the next pagination link.
var nextPageSelectors = []string{
	"a[rel='next']",
	"link[rel='next']",
	"a.pagination__next",
	".pagination a.next",
	"li.next a",
	"a[aria-label='Next']",
	"a[aria-label='Next page']",
}

// nextPageURL returns the absolute URL of the next catalog page, or "" when
// the page has no discoverable pagination.
func nextPageURL(page Page) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return ""
	}
	base, err := url.Parse(page.pageURL())
	if err != nil {
		return ""
	}
	for _, sel := range nextPageSelectors {
		href, ok := doc.Find(sel).First().Attr("href")
		if !ok {
			continue
		}
		if abs := absoluteURL(base, href); abs != "" && abs != page.pageURL() {
			return abs
		}
	}
	return ""
}
