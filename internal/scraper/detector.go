package scraper

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HeuristicDetector decides whether a statically fetched page is usable for
// extraction or whether the run must escalate to headless rendering. The
// signals are cheap and deliberately conservative: a false positive costs one
// browser render, a false negative costs a run of empty extractions.
type HeuristicDetector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewHeuristicDetector constructs a Detector with the configured thresholds.
func NewHeuristicDetector(cfg Config) *HeuristicDetector {
	keywords := make([][]byte, 0, len(cfg.DetectorKeywords))
	for _, kw := range cfg.DetectorKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		keywords = append(keywords, bytes.ToLower([]byte(kw)))
	}
	return &HeuristicDetector{
		minHTMLBytes: cfg.DetectorMinHTMLBytes,
		selectors:    cfg.DetectorSelectors,
		keywords:     keywords,
	}
}

// NeedsJS inspects the static snapshot for signals that the content only
// materializes under JavaScript.
func (d *HeuristicDetector) NeedsJS(_ context.Context, page Page) bool {
	if d == nil {
		return false
	}
	body := page.Body
	if page.StatusCode >= 400 {
		return true
	}
	if d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes {
		return true
	}
	if len(d.keywords) > 0 && len(body) > 0 {
		lower := bytes.ToLower(body)
		for _, kw := range d.keywords {
			if bytes.Contains(lower, kw) {
				return true
			}
		}
	}
	return d.missingSelectors(body)
}

func (d *HeuristicDetector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}
