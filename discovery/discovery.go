// Package discovery finds safety data sheet URLs for products by querying
// a web search provider and ranking the results. Discovery is best-effort:
// provider failures and empty result sets degrade to a Result with no URL,
// never an error, so one flaky search cannot fail a whole extraction run.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/chemfetch/sdspipe/ident"
	"github.com/chemfetch/sdspipe/kit"
	"github.com/chemfetch/sdspipe/lookup"
)

// ErrNoProvider is returned when the engine has no search provider wired.
var ErrNoProvider = errors.New("discovery: no search provider configured")

// Link is one search result.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Provider executes one web search and returns result links in rank order.
type Provider interface {
	Search(ctx context.Context, query string) ([]Link, error)
}

// Result is the outcome of one discovery attempt. SdsURL is empty when no
// candidate scored above the threshold. TopLinks always carries the best
// candidates seen, so a human can review what the ranker rejected.
type Result struct {
	SdsURL   string   `json:"sds_url,omitempty"`
	TopLinks []string `json:"top_links,omitempty"`
}

// Config configures the discovery engine.
type Config struct {
	Provider Provider

	// Cache stores recent query results, including negative ones. A miss
	// for a product is itself worth remembering: retrying the same failed
	// search on every batch run burns provider quota for nothing.
	Cache *lookup.Cache[Result]

	// SearchesPerMinute rate-limits outbound provider queries across all
	// callers. Default: 30.
	SearchesPerMinute int

	// MinScore is the ranking threshold below which a candidate is not
	// trusted as an SDS URL. Default: 30.
	MinScore int

	// TopN is how many candidates to report in Result.TopLinks. Default: 5.
	TopN int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SearchesPerMinute <= 0 {
		c.SearchesPerMinute = 30
	}
	if c.MinScore <= 0 {
		c.MinScore = 30
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Cache == nil {
		c.Cache = lookup.New[Result](lookup.Options{})
	}
}

// Engine runs SDS URL discovery.
type Engine struct {
	cfg     Config
	limiter *rate.Limiter
}

// New creates a discovery Engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.SearchesPerMinute)/60.0), 1),
	}
}

// FindSdsURL searches for the product's SDS document URL. Queries degrade
// from most to least specific: name+size+barcode, then name+barcode, then
// name alone. The first query whose best candidate clears the score
// threshold wins. The only returned errors are invalid input and context
// cancellation.
func (e *Engine) FindSdsURL(ctx context.Context, name, size, barcode string) (*Result, error) {
	if e.cfg.Provider == nil {
		return nil, ErrNoProvider
	}
	if !ident.ValidName(name) {
		return nil, ident.ErrInvalidInput
	}
	log := e.cfg.Logger.With("product", name, "transport", kit.GetTransport(ctx))

	key := cacheKey(name, size, barcode)
	if cached, ok := e.cfg.Cache.Get(key); ok {
		log.Debug("discovery: cache hit", "sds_url", cached.SdsURL)
		return &cached, nil
	}

	result := Result{}
	for _, query := range buildQueries(name, size, barcode) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		links, err := e.cfg.Provider.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("discovery: search failed", "query", query, "error", err)
			continue
		}

		ranked := rankLinks(links, name)
		if len(result.TopLinks) == 0 {
			result.TopLinks = topURLs(ranked, e.cfg.TopN)
		}
		if len(ranked) > 0 && ranked[0].Score >= e.cfg.MinScore {
			result.SdsURL = ranked[0].URL
			result.TopLinks = topURLs(ranked, e.cfg.TopN)
			log.Info("discovery: found sds url",
				"query", query, "url", result.SdsURL, "score", ranked[0].Score)
			break
		}
		log.Debug("discovery: no candidate above threshold",
			"query", query, "candidates", len(ranked))
	}

	e.cfg.Cache.Set(key, result)
	return &result, nil
}

// buildQueries returns search queries from most to least specific,
// skipping variants whose identifiers are absent.
func buildQueries(name, size, barcode string) []string {
	base := `"` + strings.TrimSpace(name) + `"`
	suffix := " sds safety data sheet pdf"

	var queries []string
	add := func(q string) {
		for _, existing := range queries {
			if existing == q {
				return
			}
		}
		queries = append(queries, q)
	}

	size = strings.TrimSpace(size)
	barcode = strings.TrimSpace(barcode)
	if size != "" && barcode != "" {
		add(base + " " + size + " " + barcode + suffix)
	}
	if barcode != "" {
		add(base + " " + barcode + suffix)
	}
	add(base + suffix)
	return queries
}

func cacheKey(name, size, barcode string) string {
	return strings.ToLower(strings.Join([]string{name, size, barcode}, "|"))
}

func topURLs(ranked []ScoredLink, n int) []string {
	if len(ranked) < n {
		n = len(ranked)
	}
	urls := make([]string, 0, n)
	for _, l := range ranked[:n] {
		urls = append(urls, l.URL)
	}
	return urls
}
