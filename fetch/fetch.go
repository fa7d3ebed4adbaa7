// Package fetch downloads SDS documents over HTTP with the bounds the
// pipeline requires: a hard timeout, a response size cap, and a guard
// against URLs that target private address space. A fetch with no timeout
// is a defect: the outbound request is the only bound on extraction job
// duration.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a fetched document body.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindHTML  Kind = "html"
	KindOther Kind = "other"
)

// ErrTooLarge is returned when the response body exceeds the configured cap.
var ErrTooLarge = errors.New("fetch: response too large")

// Document is a fetched SDS candidate.
type Document struct {
	URL         string
	Data        []byte
	Kind        Kind
	ContentType string
}

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds the whole request. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body. Default: 20 MB.
	MaxBytes int64
	// UserAgent sent with every request.
	UserAgent string
	// AllowPrivateHosts disables the SSRF guard. Tests and closed-network
	// deployments only.
	AllowPrivateHosts bool
	// Client overrides the HTTP client (the Timeout option still applies
	// per request via context).
	Client *http.Client
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 20 << 20
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (compatible; sdspipe/1.0)"
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Fetcher performs bounded document downloads.
type Fetcher struct {
	opts Options
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	opts.defaults()
	return &Fetcher{opts: opts}
}

// Get downloads url and classifies the body. Non-2xx statuses, oversized
// bodies, unsafe URLs, and timeouts are all errors: a failed fetch aborts
// the extraction job that requested it.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Document, error) {
	if !f.opts.AllowPrivateHosts {
		if err := CheckURL(rawURL); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/pdf,text/html;q=0.9,*/*;q=0.8")

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch: get %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := readAllLimited(resp.Body, f.opts.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch: get %s: %w", rawURL, err)
	}

	ct := resp.Header.Get("Content-Type")
	doc := &Document{
		URL:         rawURL,
		Data:        data,
		Kind:        classify(ct, data),
		ContentType: ct,
	}

	f.opts.Logger.Debug("fetch: downloaded document",
		"url", rawURL, "bytes", len(data), "kind", doc.Kind, "content_type", ct)
	return doc, nil
}

// readAllLimited reads at most maxBytes from r, returning ErrTooLarge when
// the limit is exceeded.
func readAllLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

var pdfMagic = []byte("%PDF-")

// classify decides the document kind from the Content-Type header and the
// leading bytes. The magic wins over the header: plenty of hosts serve PDFs
// as application/octet-stream.
func classify(contentType string, data []byte) Kind {
	if bytes.HasPrefix(data, pdfMagic) {
		return KindPDF
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return KindPDF
	case strings.Contains(ct, "html"):
		return KindHTML
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	lower := bytes.ToLower(trimmed)
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) {
		return KindHTML
	}
	return KindOther
}
