package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chemfetch/sdspipe/ident"
	"github.com/chemfetch/sdspipe/lookup"
)

type fakeProvider struct {
	queries []string
	results map[string][]Link // keyed by substring of the query
	err     error
}

func (f *fakeProvider) Search(_ context.Context, query string) ([]Link, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	for key, links := range f.results {
		if strings.Contains(query, key) {
			return links, nil
		}
	}
	return nil, nil
}

var sdsLink = Link{
	URL:   "https://acmechem.example/sds/acmesolve.pdf",
	Title: "AcmeSolve Safety Data Sheet",
}

func newTestEngine(p Provider) *Engine {
	return New(Config{
		Provider:          p,
		Cache:             lookup.New[Result](lookup.Options{}),
		SearchesPerMinute: 100000, // effectively unlimited under test
	})
}

func TestFindSdsURL_FirstQueryWins(t *testing.T) {
	p := &fakeProvider{results: map[string][]Link{"9300611": {sdsLink}}}
	e := newTestEngine(p)

	res, err := e.FindSdsURL(context.Background(), "AcmeSolve", "500ml", "9300611")
	if err != nil {
		t.Fatal(err)
	}
	if res.SdsURL != sdsLink.URL {
		t.Errorf("sds url: got %q", res.SdsURL)
	}
	if len(p.queries) != 1 {
		t.Errorf("queries: got %d, want 1 (%v)", len(p.queries), p.queries)
	}
	if len(res.TopLinks) == 0 || res.TopLinks[0] != sdsLink.URL {
		t.Errorf("top links: got %v", res.TopLinks)
	}
}

func TestFindSdsURL_QueryDegradation(t *testing.T) {
	// Only the bare name query returns a usable link: the engine must walk
	// down from the most specific variant.
	p := &fakeProvider{results: map[string][]Link{`"AcmeSolve" sds`: {sdsLink}}}
	e := newTestEngine(p)

	res, err := e.FindSdsURL(context.Background(), "AcmeSolve", "500ml", "9300611")
	if err != nil {
		t.Fatal(err)
	}
	if res.SdsURL != sdsLink.URL {
		t.Fatalf("sds url: got %q after queries %v", res.SdsURL, p.queries)
	}
	if len(p.queries) != 3 {
		t.Errorf("queries: got %d, want 3 (%v)", len(p.queries), p.queries)
	}
}

func TestFindSdsURL_NoCandidateYieldsEmptyResult(t *testing.T) {
	p := &fakeProvider{results: map[string][]Link{
		"AcmeSolve": {{URL: "https://www.ebay.com.au/itm/123", Title: "AcmeSolve for sale"}},
	}}
	e := newTestEngine(p)

	res, err := e.FindSdsURL(context.Background(), "AcmeSolve", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.SdsURL != "" {
		t.Errorf("sds url: got %q, want empty", res.SdsURL)
	}
	if len(res.TopLinks) == 0 {
		t.Error("top links should still report rejected candidates")
	}
}

func TestFindSdsURL_CachesResults(t *testing.T) {
	p := &fakeProvider{results: map[string][]Link{"AcmeSolve": {sdsLink}}}
	e := newTestEngine(p)

	ctx := context.Background()
	if _, err := e.FindSdsURL(ctx, "AcmeSolve", "500ml", "9300611"); err != nil {
		t.Fatal(err)
	}
	calls := len(p.queries)

	res, err := e.FindSdsURL(ctx, "AcmeSolve", "500ml", "9300611")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.queries) != calls {
		t.Errorf("second lookup hit the provider: %d -> %d calls", calls, len(p.queries))
	}
	if res.SdsURL != sdsLink.URL {
		t.Errorf("cached sds url: got %q", res.SdsURL)
	}
}

func TestFindSdsURL_CachesNegatives(t *testing.T) {
	p := &fakeProvider{}
	e := newTestEngine(p)

	ctx := context.Background()
	if _, err := e.FindSdsURL(ctx, "Unknown Product", "", ""); err != nil {
		t.Fatal(err)
	}
	calls := len(p.queries)
	if _, err := e.FindSdsURL(ctx, "Unknown Product", "", ""); err != nil {
		t.Fatal(err)
	}
	if len(p.queries) != calls {
		t.Errorf("negative result not cached: %d -> %d calls", calls, len(p.queries))
	}
}

func TestFindSdsURL_ProviderErrorDegrades(t *testing.T) {
	p := &fakeProvider{err: errors.New("engine says no")}
	e := newTestEngine(p)

	res, err := e.FindSdsURL(context.Background(), "AcmeSolve", "", "")
	if err != nil {
		t.Fatalf("provider error must degrade, not fail: %v", err)
	}
	if res.SdsURL != "" {
		t.Errorf("sds url: got %q", res.SdsURL)
	}
}

func TestFindSdsURL_InvalidName(t *testing.T) {
	e := newTestEngine(&fakeProvider{})
	if _, err := e.FindSdsURL(context.Background(), "   ", "", ""); !errors.Is(err, ident.ErrInvalidInput) {
		t.Fatalf("error: got %v, want ErrInvalidInput", err)
	}
}

func TestBuildQueries(t *testing.T) {
	qs := buildQueries("AcmeSolve", "500ml", "9300611")
	if len(qs) != 3 {
		t.Fatalf("got %d queries: %v", len(qs), qs)
	}
	if !strings.Contains(qs[0], "500ml") || !strings.Contains(qs[0], "9300611") {
		t.Errorf("first query not most specific: %q", qs[0])
	}
	if strings.Contains(qs[2], "500ml") || strings.Contains(qs[2], "9300611") {
		t.Errorf("last query not bare: %q", qs[2])
	}

	if qs := buildQueries("AcmeSolve", "", ""); len(qs) != 1 {
		t.Errorf("bare name: got %v", qs)
	}
}
