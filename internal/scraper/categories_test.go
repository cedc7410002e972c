package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func landingPage(body string) Page {
	return Page{
		URL:      "https://shop.example.org/",
		FinalURL: "https://shop.example.org/",
		Body:     []byte(body),
	}
}

func TestExtractCategoriesDeduplicatesBySlug(t *testing.T) {
	// Five anchors, two sharing a slug with earlier ones: first occurrence in
	// DOM order wins.
	body := `<html><body><nav>
		<a href="/category/fiction">Fiction</a>
		<a href="/category/non-fiction">Non-Fiction</a>
		<a href="/category/fiction?ref=footer">Fiction Again</a>
		<a href="/category/children">Children's Books</a>
		<a href="/collections/children">Kids</a>
	</nav></body></html>`

	cands, err := ExtractCategories(landingPage(body))
	require.NoError(t, err)
	require.Len(t, cands, 3)

	require.Equal(t, "fiction", cands[0].Slug)
	require.Equal(t, "Fiction", cands[0].Title)
	require.Equal(t, "https://shop.example.org/category/fiction", cands[0].URL)
	require.Equal(t, "non-fiction", cands[1].Slug)
	require.Equal(t, "children", cands[2].Slug)
	require.Equal(t, "Children's Books", cands[2].Title, "first occurrence keeps its title")
}

func TestExtractCategoriesFiltersNoise(t *testing.T) {
	body := `<html><body><nav>
		<a href="/category/fiction">Fiction</a>
		<a href="/account/login">Sign In</a>
		<a href="/basket">Basket (2)</a>
		<a href="/category/all">View All</a>
		<a href="javascript:void(0)">Menu</a>
		<a href="/category/untitled"></a>
	</nav></body></html>`

	cands, err := ExtractCategories(landingPage(body))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, "fiction", cands[0].Slug)
}

func TestExtractCategoriesOutsideNav(t *testing.T) {
	// Menus rendered without a nav element are still found through the
	// collections path marker.
	body := `<html><body><div class="menu">
		<a href="/collections/crime-thriller">Crime &amp; Thriller</a>
	</div></body></html>`

	cands, err := ExtractCategories(landingPage(body))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, "crime-thriller", cands[0].Slug)
	require.Equal(t, "Crime & Thriller", cands[0].Title)
}

func TestExtractCategoriesLowercasesSlug(t *testing.T) {
	body := `<html><body><nav><a href="/category/Fiction">Fiction</a></nav></body></html>`

	cands, err := ExtractCategories(landingPage(body))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, "fiction", cands[0].Slug)
}

func TestExtractCategoriesEmptyPage(t *testing.T) {
	cands, err := ExtractCategories(landingPage("<html><body></body></html>"))
	require.NoError(t, err)
	require.Empty(t, cands)
}

func TestPageURLPrefersFinalURL(t *testing.T) {
	p := Page{URL: "https://a.example.org/", FinalURL: "https://b.example.org/moved"}
	require.Equal(t, "https://b.example.org/moved", p.pageURL())

	p.FinalURL = ""
	require.Equal(t, "https://a.example.org/", p.pageURL())
}
