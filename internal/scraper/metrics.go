package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesFetched counts pages retrieved through the static fast path.
	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_pages_fetched_total",
		Help: "The total number of pages fetched without JS rendering.",
	})
	// pagesRendered counts pages rendered in the headless browser.
	pagesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_pages_rendered_total",
		Help: "The total number of pages rendered via headless Chrome.",
	})
	// productsExtracted counts extracted product candidates per strategy tier.
	productsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_products_extracted_total",
		Help: "The total number of product candidates extracted, by strategy.",
	}, []string{"strategy"})
	// recordsUpserted counts records committed to durable storage.
	recordsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_records_upserted_total",
		Help: "The total number of records committed via upsert, by kind.",
	}, []string{"kind"})
	// recordsSkipped counts candidates discarded before persistence.
	recordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_records_skipped_total",
		Help: "The total number of candidates discarded, by reason.",
	}, []string{"reason"})
	// persistenceErrors counts per-record storage failures that were skipped.
	persistenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_persistence_errors_total",
		Help: "The total number of per-record persistence failures.",
	})
	// runsCompleted counts scrape runs by kind and outcome.
	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_runs_completed_total",
		Help: "The total number of scrape runs, by kind and outcome.",
	}, []string{"kind", "outcome"})
)
