package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(t *testing.T) (*CollyFetcher, *httpmock.MockTransport) {
	t.Helper()
	f, err := NewCollyFetcher(Config{
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	f.baseCollector.WithTransport(transport)
	return f, transport
}

func TestCollyFetcherFetch(t *testing.T) {
	f, transport := newTestFetcher(t)
	resp := httpmock.NewStringResponse(200, "<html><body>catalog</body></html>")
	resp.Header.Set("Content-Type", "text/html")
	transport.RegisterResponder("GET", "https://shop.example.org/", httpmock.ResponderFromResponse(resp))

	page, err := f.Fetch(context.Background(), "https://shop.example.org/")
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Equal(t, "https://shop.example.org/", page.URL)
	require.Contains(t, string(page.Body), "catalog")
	require.Equal(t, "text/html", page.Headers.Get("Content-Type"))
	require.False(t, page.UsedJS)
}

func TestCollyFetcherFetchError(t *testing.T) {
	f, transport := newTestFetcher(t)
	transport.RegisterNoResponder(httpmock.ConnectionFailure)

	_, err := f.Fetch(context.Background(), "https://unreachable.example.org/")
	require.Error(t, err)
}

func TestCollyFetcherRevisitsSameURL(t *testing.T) {
	f, transport := newTestFetcher(t)
	transport.RegisterResponder("GET", "https://shop.example.org/",
		httpmock.NewStringResponder(200, "<html></html>"))

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), "https://shop.example.org/")
		require.NoError(t, err, "fetch %d should not be blocked by visit tracking", i+1)
	}
	require.Equal(t, 2, transport.GetTotalCallCount())
}
