package discovery

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTTPProvider searches Bing with plain HTTP and parses the result page.
// Cheaper than the browser provider and good enough until the search
// engine starts serving challenge pages; the browser provider exists for
// that case.
type HTTPProvider struct {
	client    *http.Client
	userAgent string
	endpoint  string
}

// HTTPProviderOptions configures an HTTPProvider.
type HTTPProviderOptions struct {
	// Endpoint overrides the search URL, for tests. Default: Bing.
	Endpoint string
	// UserAgent sent with search requests. Search engines reject the Go
	// default agent outright.
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

const defaultSearchEndpoint = "https://www.bing.com/search"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// NewHTTPProvider creates an HTTP search provider.
func NewHTTPProvider(opts HTTPProviderOptions) *HTTPProvider {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultSearchEndpoint
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPProvider{
		client:    client,
		userAgent: opts.UserAgent,
		endpoint:  opts.Endpoint,
	}
}

// Search runs one query and returns the organic result links in page order.
func (p *HTTPProvider) Search(ctx context.Context, query string) ([]Link, error) {
	reqURL := p.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("search: new request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept-Language", "en-AU,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("search: read body: %w", err)
	}
	return parseResultLinks(body)
}

// parseResultLinks walks the result page and collects outbound anchors.
// Bing wraps organic results in /ck/a redirect links carrying the real
// URL base64-encoded in the "u" parameter; those are unwrapped. Anchors
// pointing back at the engine itself are navigation, not results.
func parseResultLinks(body []byte) ([]Link, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("search: parse html: %w", err)
	}

	var links []Link
	seen := make(map[string]bool)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if href := attrVal(n, "href"); href != "" {
				if target := resultURL(href); target != "" && !seen[target] {
					seen[target] = true
					links = append(links, Link{URL: target, Title: nodeText(n)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// resultURL turns an anchor href into an outbound result URL, or "" when
// the anchor is engine navigation.
func resultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Host)
	if strings.Contains(host, "bing.com") {
		if strings.HasPrefix(u.Path, "/ck/a") {
			return decodeRedirect(u.Query().Get("u"))
		}
		return ""
	}
	if strings.Contains(host, "microsoft.com") || strings.Contains(host, "msn.com") {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// decodeRedirect unwraps the base64url target from a /ck/a "u" parameter.
// The encoded value carries an "a1" version prefix.
func decodeRedirect(param string) string {
	if len(param) < 3 || !strings.HasPrefix(param, "a1") {
		return ""
	}
	decoded, err := base64.RawURLEncoding.DecodeString(param[2:])
	if err != nil {
		return ""
	}
	target := string(decoded)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return ""
	}
	return target
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText collects the text content under a node.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
