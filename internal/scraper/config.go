package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob that influences a scrape run.
// All values originate from Viper so the scraper can be configured via files,
// env vars, or CLI flags. The entry URL is deployment configuration, never
// hardcoded.
type Config struct {
	EntryURL             string
	UserAgent            string
	RequestTimeout       time.Duration
	NavigationTimeout    time.Duration
	ReadyTimeout         time.Duration
	SettleDelay          time.Duration
	ScrollStepDelay      time.Duration
	ScrollMaxHeight      int64
	ScrollMaxSteps       int
	MaxPagesPerRun       int
	DomainQPS            float64
	DetectorMinHTMLBytes int
	DetectorSelectors    []string
	DetectorKeywords     []string
	EventTopic           string
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		EntryURL:             v.GetString("scraper.entry_url"),
		UserAgent:            v.GetString("scraper.user_agent"),
		RequestTimeout:       v.GetDuration("scraper.request_timeout"),
		NavigationTimeout:    v.GetDuration("scraper.navigation_timeout"),
		ReadyTimeout:         v.GetDuration("scraper.ready_timeout"),
		SettleDelay:          v.GetDuration("scraper.settle_delay"),
		ScrollStepDelay:      v.GetDuration("scraper.scroll_step_delay"),
		ScrollMaxHeight:      v.GetInt64("scraper.scroll_max_height"),
		ScrollMaxSteps:       v.GetInt("scraper.scroll_max_steps"),
		MaxPagesPerRun:       v.GetInt("scraper.max_pages_per_run"),
		DomainQPS:            v.GetFloat64("scraper.domain_qps"),
		DetectorMinHTMLBytes: v.GetInt("detector.min_html_bytes"),
		DetectorSelectors:    splitSelectors(v.GetString("detector.selector_must")),
		DetectorKeywords:     normalizeKeywords(v.GetStringSlice("detector.keywords")),
		EventTopic:           v.GetString("events.topic"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.EntryURL == "" {
		return fmt.Errorf("scraper.entry_url must be set")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("scraper.user_agent must be set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("scraper.request_timeout must be > 0")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("scraper.navigation_timeout must be > 0")
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("scraper.ready_timeout must be > 0")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("scraper.settle_delay must be >= 0")
	}
	if c.ScrollStepDelay <= 0 {
		return fmt.Errorf("scraper.scroll_step_delay must be > 0")
	}
	if c.ScrollMaxHeight <= 0 {
		return fmt.Errorf("scraper.scroll_max_height must be > 0")
	}
	if c.ScrollMaxSteps <= 0 {
		return fmt.Errorf("scraper.scroll_max_steps must be > 0")
	}
	if c.MaxPagesPerRun <= 0 {
		return fmt.Errorf("scraper.max_pages_per_run must be > 0")
	}
	if c.DomainQPS < 0 {
		return fmt.Errorf("scraper.domain_qps must be >= 0")
	}
	if c.DetectorMinHTMLBytes < 0 {
		return fmt.Errorf("detector.min_html_bytes must be >= 0")
	}
	return nil
}

func splitSelectors(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
