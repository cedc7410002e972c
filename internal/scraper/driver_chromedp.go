package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChromedpRenderer drives one headless Chrome session via chromedp. It is
// acquired at run start and must be closed on every exit path.
type ChromedpRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	cfg             Config
	domainLimiters  sync.Map
}

// NewChromedpRenderer opens a browser session using the provided
// configuration.
func NewChromedpRenderer(cfg Config, logger *zap.Logger) (*ChromedpRenderer, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		cfg:             cfg,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *ChromedpRenderer) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

// Render navigates to the requested URL, waits for readiness, optionally
// triggers lazy-load scrolling, and returns the rendered DOM snapshot.
// Readiness is best-effort: a readiness timeout degrades to proceeding with
// whatever rendered. A hard navigation failure returns a NavigationError.
func (r *ChromedpRenderer) Render(ctx context.Context, req RenderRequest) (Page, error) {
	if r == nil {
		return Page{}, ErrRendererDisabled
	}
	if err := r.waitDomainBudget(ctx, req.URL); err != nil {
		return Page{}, fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	r.recordResponse(tabCtx, meta)

	if err := chromedp.Run(taskCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(r.cfg.UserAgent),
		chromedp.Navigate(req.URL),
	); err != nil {
		return Page{}, &NavigationError{URL: req.URL, Err: err}
	}

	r.waitReady(taskCtx, req.URL)

	if req.Scroll {
		if err := r.autoScroll(taskCtx); err != nil {
			r.logger.Warn("auto-scroll aborted; extracting current state",
				zap.String("url", req.URL), zap.Error(err))
		}
	}

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return Page{}, &NavigationError{URL: req.URL, Err: err}
	}

	pagesRendered.Inc()
	return Page{
		URL:        req.URL,
		FinalURL:   meta.finalURL(req.URL),
		StatusCode: meta.statusCode,
		Headers:    meta.headers,
		Body:       []byte(html),
		UsedJS:     true,
	}, nil
}

// waitReady waits for the document body and then a bounded settle delay.
// Target pages render asynchronously and no perfect readiness signal exists,
// so a timeout here is a non-fatal branch: proceed with what rendered.
func (r *ChromedpRenderer) waitReady(ctx context.Context, rawURL string) {
	readyCtx, cancel := context.WithTimeout(ctx, r.cfg.ReadyTimeout)
	defer cancel()
	if err := chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		r.logger.Warn("readiness wait timed out; proceeding anyway",
			zap.String("url", rawURL), zap.Error(err))
		return
	}
	if r.cfg.SettleDelay > 0 {
		select {
		case <-time.After(r.cfg.SettleDelay):
		case <-ctx.Done():
		}
	}
}

// autoScroll repeatedly scrolls to the bottom and re-measures the document
// height. It terminates when the height stops growing between two
// consecutive measurements or the configured ceiling is reached, guarding
// against infinite lazy-load loops.
func (r *ChromedpRenderer) autoScroll(ctx context.Context) error {
	var lastHeight int64 = -1
	for step := 0; step < r.cfg.ScrollMaxSteps; step++ {
		var height int64
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`document.body.scrollHeight`, &height),
		); err != nil {
			return fmt.Errorf("measure scroll height: %w", err)
		}
		if height == lastHeight || height >= r.cfg.ScrollMaxHeight {
			return nil
		}
		lastHeight = height

		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		); err != nil {
			return fmt.Errorf("scroll to bottom: %w", err)
		}
		select {
		case <-time.After(r.cfg.ScrollStepDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	headers    http.Header
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: make(http.Header),
	}
}

func (m *responseMeta) finalURL(raw string) string {
	if m.url == "" {
		return raw
	}
	return m.url
}

func (r *ChromedpRenderer) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
			for k, v := range resp.Response.Headers {
				meta.headers.Add(k, fmt.Sprint(v))
			}
		})
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (r *ChromedpRenderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}
