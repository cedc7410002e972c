package scraper

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// priceRe matches a currency symbol followed by digits with an optional
// decimal fraction, e.g. "£9.99", "$12", "€7,50".
var priceRe = regexp.MustCompile(`[£$€¥]\s*\d+(?:[.,]\d{1,2})?`)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// placeholderPrice is stored when no price can be located; extraction keeps
// the record rather than dropping it.
const placeholderPrice = "£0.00"

func findPrice(text string) string {
	m := priceRe.FindString(text)
	if m == "" {
		return ""
	}
	return strings.Join(strings.Fields(m), "")
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// lastPathSegment returns the final non-empty path segment of rawURL, or ""
// when the path has none.
func lastPathSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(parsed.Path, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segs[i]); seg != "" {
			return seg
		}
	}
	return ""
}

// absoluteURL resolves href against base and strips fragments. Returns ""
// for unusable hrefs (empty, javascript:, mailto:).
func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	resolved.Fragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func containsAnyFold(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func hashURL(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// safeBasename derives a filesystem- and object-store-safe name for a page
// snapshot from its URL.
func safeBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return hashURL(raw)
	}
	host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		p = "root"
	}
	p = invalidFilenameChars.ReplaceAllString(p, "_")
	hash := hashURL(raw)[:16]
	return fmt.Sprintf("%s_%s_%s", host, p, hash)
}
