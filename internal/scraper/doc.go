// Package scraper implements the catalog extraction pipeline: the colly fast
// path, the chromedp page driver, the category and tiered product extractors,
// the per-run result buffer, and the ingestion coordinator that commits
// records through idempotent upserts.
package scraper
