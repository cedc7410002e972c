package scraper

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindPrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "pound with decimals", text: "The Hobbit £9.99", want: "£9.99"},
		{name: "dollar without decimals", text: "Sale $12 today", want: "$12"},
		{name: "euro with comma fraction", text: "nur €7,50", want: "€7,50"},
		{name: "space between symbol and digits", text: "£ 4.25", want: "£4.25"},
		{name: "no price", text: "Add to basket", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, findPrice(tt.text))
		})
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "plain path", url: "https://example.org/category/fiction", want: "fiction"},
		{name: "trailing slash", url: "https://example.org/category/fiction/", want: "fiction"},
		{name: "query ignored", url: "https://example.org/products/the-hobbit?ref=home", want: "the-hobbit"},
		{name: "root path", url: "https://example.org/", want: ""},
		{name: "no path", url: "https://example.org", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, lastPathSegment(tt.url))
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://example.org/category/fiction")
	require.NoError(t, err)

	tests := []struct {
		name string
		href string
		want string
	}{
		{name: "relative path", href: "/products/dune", want: "https://example.org/products/dune"},
		{name: "sibling path", href: "dune", want: "https://example.org/category/dune"},
		{name: "absolute untouched", href: "https://other.org/products/dune", want: "https://other.org/products/dune"},
		{name: "fragment stripped", href: "/products/dune#reviews", want: "https://example.org/products/dune"},
		{name: "javascript rejected", href: "javascript:void(0)", want: ""},
		{name: "mailto rejected", href: "mailto:shop@example.org", want: ""},
		{name: "tel rejected", href: "tel:+441234567890", want: ""},
		{name: "empty rejected", href: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, absoluteURL(base, tt.href))
		})
	}
}

func TestSafeBasename(t *testing.T) {
	a := safeBasename("https://example.org/category/fiction?page=2")
	b := safeBasename("https://example.org/category/fiction?page=3")

	require.NotEqual(t, a, b, "distinct URLs must map to distinct names")
	require.True(t, strings.HasPrefix(a, "example.org_category_fiction_"))
	require.NotContains(t, a, "/")
	require.NotContains(t, a, "?")
}

func TestCollapseSpace(t *testing.T) {
	require.Equal(t, "The Great Gatsby", collapseSpace("  The \n Great \t Gatsby "))
	require.Equal(t, "", collapseSpace("   \n\t "))
}

func TestFirstLine(t *testing.T) {
	require.Equal(t, "The Hobbit", firstLine("\n  \n  The Hobbit\n  J.R.R. Tolkien"))
	require.Equal(t, "", firstLine("\n \n"))
}
