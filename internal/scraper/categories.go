package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors tried when hunting for category links on a landing page. Links
// under navigation containers come first; the collections path marker catches
// sites that render their menu outside a nav element.
var categoryLinkSelectors = []string{
	"nav a[href]",
	"header a[href]",
	"a[href*='/collections/']",
	"a[href*='/category/']",
}

const maxCategoryTitleLen = 60

// Titles containing these markers are promotional or utility links, not real
// category names.
var categoryDenylist = []string{
	"view all",
	"sign in",
	"sign up",
	"log in",
	"basket",
	"cart",
	"checkout",
	"help",
	"contact",
	"gbp",
	"usd",
	"eur",
}

// ExtractCategories scans a rendered landing page for category links,
// normalizes them, and deduplicates by slug keeping the first occurrence in
// DOM order.
func ExtractCategories(page Page) ([]CategoryCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse landing page: %w", err)
	}
	base, err := url.Parse(page.pageURL())
	if err != nil {
		return nil, fmt.Errorf("parse landing url: %w", err)
	}

	seen := make(map[string]struct{})
	var out []CategoryCandidate
	for _, sel := range categoryLinkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			cand, ok := categoryFromAnchor(base, s)
			if !ok {
				return
			}
			if _, dup := seen[cand.Slug]; dup {
				return
			}
			seen[cand.Slug] = struct{}{}
			out = append(out, cand)
		})
	}
	return out, nil
}

func categoryFromAnchor(base *url.URL, s *goquery.Selection) (CategoryCandidate, bool) {
	href, _ := s.Attr("href")
	abs := absoluteURL(base, href)
	if abs == "" {
		return CategoryCandidate{}, false
	}
	title := firstLine(s.Text())
	if title == "" || len(title) > maxCategoryTitleLen {
		return CategoryCandidate{}, false
	}
	if containsAnyFold(title, categoryDenylist) {
		return CategoryCandidate{}, false
	}
	slug := lastPathSegment(abs)
	if slug == "" {
		return CategoryCandidate{}, false
	}
	return CategoryCandidate{
		Title: collapseSpace(title),
		URL:   abs,
		Slug:  strings.ToLower(slug),
	}, true
}

func (p Page) pageURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
