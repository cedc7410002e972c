package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Container selectors tried by the structured scan, most site-specific first.
// The first selector yielding more than minContainerMatches elements wins;
// the threshold guards against matching a single unrelated element.
var productContainerSelectors = []string{
	"article.product-card",
	"div.product-card",
	"li.product-item",
	"div.product-item",
	"[data-product-id]",
	"li.grid__item",
	"div.product-grid > div",
	"ul.products > li",
	"article",
}

// Href markers that identify a product detail link.
var productPathMarkers = []string{
	"/products/",
	"/product/",
	"/books/",
	"/book/",
	"/item/",
	"/p/",
}

// Titles matching these phrases are UI noise, not product names.
var productTitleDenylist = []string{
	"add to",
	"view all",
	"basket",
	"cart",
	"wishlist",
	"quick view",
	"sign in",
}

const (
	minContainerMatches = 2
	minProductTitleLen  = 3
	minImagePixels      = 80
	maxAncestorHops     = 4
)

var (
	byLineRe  = regexp.MustCompile(`(?i)\bby\s+([A-Z][\w.'-]*(?:\s+[A-Z][\w.'-]*){0,3})`)
	twoCapsRe = regexp.MustCompile(`^[A-Z][a-z]+\s+[A-Z][a-z]+$`)
)

type extraction struct {
	doc  *goquery.Document
	base *url.URL
	seen map[string]struct{}
}

// productStrategy is one tier of the fallback chain: stateless, shares the
// rendered DOM as input and a candidate list as output.
type productStrategy struct {
	name string
	scan func(ex *extraction) []ProductCandidate
}

var productStrategies = []productStrategy{
	{name: "containers", scan: scanContainers},
	{name: "links", scan: scanProductLinks},
	{name: "images", scan: scanImageProximity},
	{name: "anchors", scan: scanAnchorsLastResort},
}

// ExtractProducts runs the tiered fallback chain against an already rendered
// DOM snapshot. Each tier is attempted only if the previous found nothing.
// seen carries hrefs accepted earlier in the same run so paginated pages
// deduplicate against each other; pass a fresh map per run.
func ExtractProducts(page Page, seen map[string]struct{}) ([]ProductCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse category page: %w", err)
	}
	base, err := url.Parse(page.pageURL())
	if err != nil {
		return nil, fmt.Errorf("parse category url: %w", err)
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}
	ex := &extraction{doc: doc, base: base, seen: seen}

	for tier, strat := range productStrategies {
		cands := strat.scan(ex)
		if len(cands) == 0 {
			continue
		}
		for i := range cands {
			cands[i].Tier = tier + 1
		}
		productsExtracted.WithLabelValues(strat.name).Add(float64(len(cands)))
		return cands, nil
	}
	return nil, nil
}

// Tier 1: structured container scan.
func scanContainers(ex *extraction) []ProductCandidate {
	sel := pickContainerSelector(ex.doc)
	if sel == "" {
		return nil
	}
	var out []ProductCandidate
	ex.doc.Find(sel).Each(func(_ int, c *goquery.Selection) {
		cand, ok := candidateFromContainer(ex, c)
		if !ok {
			return
		}
		ex.seen[cand.URL] = struct{}{}
		out = append(out, cand)
	})
	return out
}

func pickContainerSelector(doc *goquery.Document) string {
	for _, sel := range productContainerSelectors {
		if doc.Find(sel).Length() > minContainerMatches {
			return sel
		}
	}
	return ""
}

func candidateFromContainer(ex *extraction, c *goquery.Selection) (ProductCandidate, bool) {
	link := c.Find("a.product-link, a.product-card__link, a.product-item__link").First()
	if link.Length() == 0 {
		link = productPathAnchor(c)
	}
	if link.Length() == 0 {
		link = c.Find("a[href]").First()
	}
	if link.Length() == 0 {
		return ProductCandidate{}, false
	}
	href, _ := link.Attr("href")
	abs := absoluteURL(ex.base, href)
	if abs == "" {
		return ProductCandidate{}, false
	}
	if _, dup := ex.seen[abs]; dup {
		return ProductCandidate{}, false
	}

	title := firstLine(link.Text())
	if title == "" {
		title = firstLine(c.Find("h1, h2, h3, h4, .title, .product-title").First().Text())
	}
	if title == "" {
		title, _ = c.Find("img[alt]").First().Attr("alt")
		title = firstLine(title)
	}
	title = collapseSpace(title)
	if !usableTitle(title) {
		return ProductCandidate{}, false
	}

	price := findPrice(c.Find(".price, .product-price, [class*='price']").First().Text())
	if price == "" {
		price = findPrice(c.Text())
	}
	if price == "" {
		price = placeholderPrice
	}

	author := collapseSpace(firstLine(c.Find(".author, .product-author, [class*='author']").First().Text()))

	img := c.Find("img").First()
	imgSrc, ok := img.Attr("src")
	if !ok || imgSrc == "" {
		imgSrc, _ = img.Attr("data-src")
	}

	return ProductCandidate{
		Title:    title,
		Price:    price,
		Author:   author,
		ImageURL: absoluteURL(ex.base, imgSrc),
		URL:      abs,
		SourceID: lastPathSegment(abs),
	}, true
}

// Tier 2: anchors matching a product path, no container context.
func scanProductLinks(ex *extraction) []ProductCandidate {
	var out []ProductCandidate
	ex.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !isProductPath(href) {
			return
		}
		abs := absoluteURL(ex.base, href)
		if abs == "" {
			return
		}
		if _, dup := ex.seen[abs]; dup {
			return
		}

		title := collapseSpace(firstLine(a.Text()))
		if title == "" {
			title, _ = a.Find("img[alt]").First().Attr("alt")
			title = collapseSpace(firstLine(title))
		}
		if !usableTitle(title) {
			return
		}

		price := findPrice(a.Text())
		if price == "" {
			price = findPrice(a.Parent().Text())
		}
		if price == "" {
			price = placeholderPrice
		}

		ex.seen[abs] = struct{}{}
		out = append(out, ProductCandidate{
			Title:    title,
			Price:    price,
			Author:   authorFromText(a.Parent().Text()),
			URL:      abs,
			SourceID: lastPathSegment(abs),
		})
	})
	return out
}

// Tier 3: sufficiently large images, walking up a bounded number of ancestor
// levels until both a price and a link are found.
func scanImageProximity(ex *extraction) []ProductCandidate {
	var out []ProductCandidate
	ex.doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if imageTooSmall(img) {
			return
		}
		node := img.Parent()
		for hop := 0; hop < maxAncestorHops && node.Length() > 0; hop++ {
			cand, ok := candidateFromProximity(ex, img, node)
			if ok {
				ex.seen[cand.URL] = struct{}{}
				out = append(out, cand)
				return
			}
			node = node.Parent()
		}
	})
	return out
}

func candidateFromProximity(ex *extraction, img, node *goquery.Selection) (ProductCandidate, bool) {
	text := node.Text()
	price := findPrice(text)
	if price == "" {
		return ProductCandidate{}, false
	}
	link := productPathAnchor(node)
	if link.Length() == 0 {
		link = node.Find("a[href]").First()
	}
	if link.Length() == 0 {
		return ProductCandidate{}, false
	}
	href, _ := link.Attr("href")
	abs := absoluteURL(ex.base, href)
	if abs == "" {
		return ProductCandidate{}, false
	}
	if _, dup := ex.seen[abs]; dup {
		return ProductCandidate{}, false
	}

	title := titleFromBlockText(text)
	if title == "" {
		title, _ = img.Attr("alt")
		title = collapseSpace(firstLine(title))
	}
	if !usableTitle(title) {
		return ProductCandidate{}, false
	}

	imgSrc, _ := img.Attr("src")
	return ProductCandidate{
		Title:    title,
		Price:    price,
		Author:   authorFromText(text),
		ImageURL: absoluteURL(ex.base, imgSrc),
		URL:      abs,
		SourceID: lastPathSegment(abs),
	}, true
}

// Tier 4: any anchor carrying an image with alt text or enough visible text,
// accepted even without a confirmed price.
func scanAnchorsLastResort(ex *extraction) []ProductCandidate {
	var out []ProductCandidate
	ex.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := absoluteURL(ex.base, href)
		if abs == "" {
			return
		}
		if _, dup := ex.seen[abs]; dup {
			return
		}

		img := a.Find("img").First()
		title, _ := img.Attr("alt")
		title = collapseSpace(firstLine(title))
		if title == "" {
			title = collapseSpace(firstLine(a.Text()))
		}
		if img.Length() == 0 || !usableTitle(title) {
			return
		}

		imgSrc, _ := img.Attr("src")
		ex.seen[abs] = struct{}{}
		out = append(out, ProductCandidate{
			Title:    title,
			Price:    placeholderPrice,
			ImageURL: absoluteURL(ex.base, imgSrc),
			URL:      abs,
			SourceID: lastPathSegment(abs),
		})
	})
	return out
}

func productPathAnchor(s *goquery.Selection) *goquery.Selection {
	return s.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		return isProductPath(href)
	}).First()
}

func isProductPath(href string) bool {
	return containsAnyFold(href, productPathMarkers)
}

func usableTitle(title string) bool {
	title = strings.TrimSpace(title)
	if len(title) < minProductTitleLen {
		return false
	}
	return !containsAnyFold(title, productTitleDenylist)
}

// imageTooSmall treats images below the pixel threshold as icons. Images
// without size attributes are kept, since their rendered size is unknown.
func imageTooSmall(img *goquery.Selection) bool {
	for _, attr := range []string{"width", "height"} {
		raw, ok := img.Attr(attr)
		if !ok {
			continue
		}
		var px int
		if _, err := fmt.Sscanf(strings.TrimSuffix(raw, "px"), "%d", &px); err == nil && px > 0 && px < minImagePixels {
			return true
		}
	}
	return false
}

// titleFromBlockText returns the first line of text that is neither a price
// nor an action phrase.
func titleFromBlockText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpace(line)
		if line == "" {
			continue
		}
		if priceRe.MatchString(line) {
			continue
		}
		if containsAnyFold(line, productTitleDenylist) {
			continue
		}
		if byLineRe.MatchString(line) && strings.HasPrefix(strings.ToLower(line), "by ") {
			continue
		}
		return line
	}
	return ""
}

// authorFromText recovers an author from a "by <name>" line, falling back to
// a two-capitalized-word heuristic.
func authorFromText(text string) string {
	if m := byLineRe.FindStringSubmatch(text); len(m) == 2 {
		return collapseSpace(m[1])
	}
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpace(line)
		if twoCapsRe.MatchString(line) {
			return line
		}
	}
	return ""
}
