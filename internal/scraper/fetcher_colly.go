package scraper

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// CollyFetcher retrieves pages without JavaScript execution. It serves as the
// cheap probe before paying for a browser render.
type CollyFetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg Config, logger *zap.Logger) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.SetRequestTimeout(cfg.RequestTimeout)
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})

	if cfg.DomainQPS > 0 {
		delay := time.Duration(float64(time.Second) / cfg.DomainQPS)
		if err := base.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       delay,
		}); err != nil {
			return nil, err
		}
	}

	return &CollyFetcher{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Fetch retrieves a page via the configured Colly collector.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		send(fetchResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if res.err == nil {
			pagesFetched.Inc()
		}
		return res.page, res.err
	default:
		return Page{}, errors.New("colly fetch produced no result")
	}
}

type fetchResult struct {
	page Page
	err  error
}
