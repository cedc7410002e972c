package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func categoryPage(body string) Page {
	return Page{
		URL:      "https://shop.example.org/category/fiction",
		FinalURL: "https://shop.example.org/category/fiction",
		Body:     []byte(body),
	}
}

func TestExtractProductsContainerScan(t *testing.T) {
	body := `<html><body><div class="grid">
		<article class="product-card">
			<a class="product-link" href="/products/dune">Dune</a>
			<span class="price">£8.99</span>
			<span class="author">Frank Herbert</span>
			<img src="/img/dune.jpg" alt="Dune">
		</article>
		<article class="product-card">
			<a class="product-link" href="/products/emma">Emma</a>
			<span class="price">£6.49</span>
			<img data-src="/img/emma.jpg" alt="Emma">
		</article>
		<article class="product-card">
			<a class="product-link" href="/products/it">It</a>
			<span class="price">£7.99</span>
		</article>
	</div></body></html>`

	cands, err := ExtractProducts(categoryPage(body), nil)
	require.NoError(t, err)
	// "It" is under the minimum title length and is dropped; the card still
	// counts toward container-selector detection.
	require.Len(t, cands, 2)

	first := cands[0]
	require.Equal(t, 1, first.Tier)
	require.Equal(t, "Dune", first.Title)
	require.Equal(t, "£8.99", first.Price)
	require.Equal(t, "Frank Herbert", first.Author)
	require.Equal(t, "https://shop.example.org/products/dune", first.URL)
	require.Equal(t, "https://shop.example.org/img/dune.jpg", first.ImageURL)
	require.Equal(t, "dune", first.SourceID)

	require.Equal(t, "Emma", cands[1].Title)
	require.Equal(t, "https://shop.example.org/img/emma.jpg", cands[1].ImageURL,
		"lazy-loaded data-src fills in for a missing src")
}

func TestExtractProductsContainerMissingPriceGetsPlaceholder(t *testing.T) {
	card := `<article class="product-card">
		<a class="product-link" href="/products/%s">%s</a>
	</article>`
	body := "<html><body>" +
		fmt.Sprintf(card, "dune", "Dune") +
		fmt.Sprintf(card, "emma", "Emma") +
		fmt.Sprintf(card, "it-follows", "It Follows") +
		"</body></html>"

	cands, err := ExtractProducts(categoryPage(body), nil)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	for _, cand := range cands {
		require.Equal(t, placeholderPrice, cand.Price)
	}
}

func TestExtractProductsContainerDiscardsActionTitles(t *testing.T) {
	body := `<html><body>
		<article class="product-card"><a class="product-link" href="/products/dune">Dune</a></article>
		<article class="product-card"><a class="product-link" href="/products/emma">Emma</a></article>
		<article class="product-card"><a class="product-link" href="/basket/add">Add to basket</a></article>
	</body></html>`

	cands, err := ExtractProducts(categoryPage(body), nil)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	for _, cand := range cands {
		require.NotContains(t, strings.ToLower(cand.Title), "add to")
	}
}

func TestExtractProductsLinkFallback(t *testing.T) {
	// No recognizable containers; twelve plain anchors matching product
	// paths. The structured scan yields nothing and the link tier takes over.
	var sb strings.Builder
	sb.WriteString("<html><body><div>")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, `<a href="/products/book-%d">Book %d</a>`, i, i)
	}
	sb.WriteString("</div></body></html>")

	cands, err := ExtractProducts(categoryPage(sb.String()), nil)
	require.NoError(t, err)
	require.Len(t, cands, 12)
	for i, cand := range cands {
		require.Equal(t, 2, cand.Tier)
		require.Equal(t, fmt.Sprintf("Book %d", i), cand.Title)
		require.Equal(t, fmt.Sprintf("book-%d", i), cand.SourceID)
		require.Equal(t, placeholderPrice, cand.Price)
	}
}

func TestExtractProductsLinkFallbackReadsParentPrice(t *testing.T) {
	body := `<html><body>
		<div><a href="/products/dune">Dune</a> by Frank Herbert <span>£8.99</span></div>
	</body></html>`

	cands, err := ExtractProducts(categoryPage(body), nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, 2, cands[0].Tier)
	require.Equal(t, "£8.99", cands[0].Price)
	require.Equal(t, "Frank Herbert", cands[0].Author)
}

func TestExtractProductsImageProximity(t *testing.T) {
	// No containers, no product-path anchors. Large images with a nearby
	// price and link are recovered by the proximity tier; icons are not.
	body := `<html><body>
		<div class="tile">
			<img src="/img/dune.jpg" alt="Dune" width="300" height="400">
			<div>
				Dune
				by Frank Herbert
				£8.99
				<a href="/detail/dune">More</a>
			</div>
		</div>
		<div class="tile">
			<img src="/img/cart-icon.png" alt="Cart" width="16" height="16">
			£0.00
			<a href="/detail/cart">Basket</a>
		</div>
	</body></html>`

	cands, err := ExtractProducts(categoryPage(body), nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	cand := cands[0]
	require.Equal(t, 3, cand.Tier)
	require.Equal(t, "Dune", cand.Title)
	require.Equal(t, "£8.99", cand.Price)
	require.Equal(t, "Frank Herbert", cand.Author)
	require.Equal(t, "https://shop.example.org/detail/dune", cand.URL)
	require.Equal(t, "https://shop.example.org/img/dune.jpg", cand.ImageURL)
}

func TestExtractProductsAnchorLastResort(t *testing.T) {
	// No containers, no product paths, no prices: the last-resort tier keeps
	// anchors that wrap an image with alt text.
	body := `<html><body>
		<a href="/detail/dune"><img src="/img/dune.jpg" alt="Dune"></a>
		<a href="/detail/plain">plain text link</a>
	</body></html>`

	cands, err := ExtractProducts(categoryPage(body), nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	cand := cands[0]
	require.Equal(t, 4, cand.Tier)
	require.Equal(t, "Dune", cand.Title)
	require.Equal(t, placeholderPrice, cand.Price)
	require.Equal(t, "https://shop.example.org/detail/dune", cand.URL)
}

func TestExtractProductsEmptyPage(t *testing.T) {
	cands, err := ExtractProducts(categoryPage("<html><body><p>no products here</p></body></html>"), nil)
	require.NoError(t, err)
	require.Empty(t, cands)
}

func TestExtractProductsSeenCarriesAcrossPages(t *testing.T) {
	page1 := `<html><body>
		<a href="/products/dune">Dune</a>
		<a href="/products/emma">Emma</a>
	</body></html>`
	page2 := `<html><body>
		<a href="/products/emma">Emma</a>
		<a href="/products/it-follows">It Follows</a>
	</body></html>`

	seen := make(map[string]struct{})
	first, err := ExtractProducts(categoryPage(page1), seen)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := ExtractProducts(categoryPage(page2), seen)
	require.NoError(t, err)
	require.Len(t, second, 1, "records already seen on the first page are dropped")
	require.Equal(t, "It Follows", second[0].Title)
}

func TestUsableTitle(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{title: "Dune", want: true},
		{title: "It", want: false},
		{title: "  ", want: false},
		{title: "Add to basket", want: false},
		{title: "Quick View", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			require.Equal(t, tt.want, usableTitle(tt.title))
		})
	}
}

func TestAuthorFromText(t *testing.T) {
	require.Equal(t, "Frank Herbert", authorFromText("Dune\nby Frank Herbert\n£8.99"))
	require.Equal(t, "Jane Austen", authorFromText("Emma\nJane Austen\n£6.49"))
	require.Equal(t, "", authorFromText("£8.99\nadd to basket"))
}

func TestImageTooSmall(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<img id="icon" src="a.png" width="16" height="16">
		<img id="big" src="b.png" width="300px">
		<img id="unsized" src="c.png">
	</body></html>`)

	require.True(t, imageTooSmall(doc.Find("#icon")))
	require.False(t, imageTooSmall(doc.Find("#big")))
	require.False(t, imageTooSmall(doc.Find("#unsized")), "unknown size is kept")
}
