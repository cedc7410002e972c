package scraper

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func validViper() *viper.Viper {
	v := viper.New()
	v.Set("scraper.entry_url", "https://shop.example.org/")
	v.Set("scraper.user_agent", "CatalogScraper/1.0")
	v.Set("scraper.request_timeout", "10s")
	v.Set("scraper.navigation_timeout", "45s")
	v.Set("scraper.ready_timeout", "8s")
	v.Set("scraper.settle_delay", "500ms")
	v.Set("scraper.scroll_step_delay", "250ms")
	v.Set("scraper.scroll_max_height", 40000)
	v.Set("scraper.scroll_max_steps", 20)
	v.Set("scraper.max_pages_per_run", 5)
	v.Set("scraper.domain_qps", 0.5)
	v.Set("detector.min_html_bytes", 2048)
	v.Set("detector.selector_must", "main, .product-grid")
	v.Set("detector.keywords", []string{"__NEXT_DATA__", " ", "__NEXT_DATA__"})
	v.Set("events.topic", "scrape-runs")
	return v
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(validViper())
	require.NoError(t, err)

	require.Equal(t, "https://shop.example.org/", cfg.EntryURL)
	require.Equal(t, 45*time.Second, cfg.NavigationTimeout)
	require.Equal(t, 5, cfg.MaxPagesPerRun)
	require.Equal(t, []string{"main", ".product-grid"}, cfg.DetectorSelectors)
	require.Equal(t, []string{"__NEXT_DATA__"}, cfg.DetectorKeywords, "keywords are trimmed and deduplicated")
	require.Equal(t, "scrape-runs", cfg.EventTopic)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "missing entry url", key: "scraper.entry_url", value: ""},
		{name: "missing user agent", key: "scraper.user_agent", value: ""},
		{name: "zero navigation timeout", key: "scraper.navigation_timeout", value: "0s"},
		{name: "zero page budget", key: "scraper.max_pages_per_run", value: 0},
		{name: "negative qps", key: "scraper.domain_qps", value: -1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validViper()
			v.Set(tt.key, tt.value)
			_, err := LoadConfig(v)
			require.Error(t, err)
		})
	}
}
