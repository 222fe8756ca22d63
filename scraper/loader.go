package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// PageLoader returns the rendered HTML of a page.
type PageLoader interface {
	Load(ctx context.Context, pageURL string) (string, error)
	Close() error
}

// HTTPLoader fetches pages with a plain GET. It is enough for help centers
// that render server side.
type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{client: &http.Client{Timeout: timeout}}
}

func (l *HTTPLoader) Load(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %s", pageURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}
	return string(data), nil
}

func (l *HTTPLoader) Close() error { return nil }

// BrowserLoader renders pages in headless Chrome with stealth patches so
// help centers that block automation still serve content.
type BrowserLoader struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   *log.Logger
}

func NewBrowserLoader(logger *log.Logger) (*BrowserLoader, error) {
	if logger == nil {
		logger = log.Default()
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("window-size", "1920,1080")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	logger.Printf("headless chrome ready at %s", controlURL)

	return &BrowserLoader{
		browser:  browser,
		launcher: l,
		timeout:  30 * time.Second,
		logger:   logger,
	}, nil
}

func (l *BrowserLoader) Load(ctx context.Context, pageURL string) (string, error) {
	page, err := stealth.Page(l.browser)
	if err != nil {
		return "", fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		l.logger.Printf("wait load %s: %v", pageURL, err)
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read DOM of %s: %w", pageURL, err)
	}
	return html, nil
}

func (l *BrowserLoader) Close() error {
	err := l.browser.Close()
	l.launcher.Kill()
	return err
}

var (
	_ PageLoader = (*HTTPLoader)(nil)
	_ PageLoader = (*BrowserLoader)(nil)
)
