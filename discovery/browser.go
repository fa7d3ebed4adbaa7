package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserProvider searches through a real headless Chrome with stealth
// patches applied. Slower and heavier than HTTPProvider, but it renders
// the result page the way a person's browser would, which gets past the
// challenge pages the plain-HTTP path trips on.
type BrowserProvider struct {
	cfg BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

// BrowserConfig configures a BrowserProvider.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Endpoint overrides the search URL. Default: Bing.
	Endpoint string

	// NavigateTimeout bounds page load per search. Default: 30s.
	NavigateTimeout time.Duration

	// RecycleInterval is the maximum lifetime of a Chrome process before
	// it is restarted. Chrome leaks under sustained scraping. Default: 4h.
	RecycleInterval time.Duration

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = defaultSearchEndpoint
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewBrowserProvider creates a browser-backed search provider. Chrome is
// launched lazily on the first search.
func NewBrowserProvider(cfg BrowserConfig) *BrowserProvider {
	cfg.defaults()
	return &BrowserProvider{cfg: cfg}
}

// Search runs one query in a fresh stealth tab.
func (p *BrowserProvider) Search(ctx context.Context, query string) ([]Link, error) {
	b, err := p.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigateTimeout)
	defer cancel()

	searchURL := p.cfg.Endpoint + "?q=" + url.QueryEscape(query)
	if err := page.Context(navCtx).Navigate(searchURL); err != nil {
		return nil, fmt.Errorf("browser: navigate: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		p.cfg.Logger.Warn("browser: wait load timeout", "query", query, "error", err)
	}

	res, err := page.Context(navCtx).Eval(`() =>
		[...document.querySelectorAll('li.b_algo h2 a, ol#b_results h2 a')]
			.map(a => ({href: a.href, text: a.innerText}))`)
	if err != nil {
		return nil, fmt.Errorf("browser: collect results: %w", err)
	}

	var links []Link
	seen := make(map[string]bool)
	for _, item := range res.Value.Arr() {
		href := item.Get("href").Str()
		target := resultURL(href)
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, Link{URL: target, Title: item.Get("text").Str()})
	}
	return links, nil
}

// ensureBrowser returns a connected browser, launching or recycling
// Chrome as needed.
func (p *BrowserProvider) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("browser: provider is closed")
	}
	if p.browser != nil && time.Since(p.startAt) > p.cfg.RecycleInterval {
		p.cfg.Logger.Info("browser: recycle interval reached", "uptime", time.Since(p.startAt))
		p.cleanupLocked()
	}
	if p.browser != nil {
		return p.browser, nil
	}

	log := p.cfg.Logger
	var wsURL string
	if p.cfg.RemoteURL != "" {
		wsURL = p.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		p.lnch = l
		log.Info("browser: launched local chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	p.browser = b
	p.startAt = time.Now()
	return b, nil
}

// Close shuts down Chrome.
func (p *BrowserProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cleanupLocked()
	return nil
}

func (p *BrowserProvider) cleanupLocked() {
	if p.browser != nil {
		p.browser.Close()
		p.browser = nil
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
		p.lnch = nil
	}
}
