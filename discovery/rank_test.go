package discovery

import "testing"

func TestRankLinks_SdsBeatsRetail(t *testing.T) {
	links := []Link{
		{URL: "https://www.ebay.com.au/itm/acmesolve-500-degreaser", Title: "AcmeSolve 500 for sale"},
		{URL: "https://acmechem.example/sds/acmesolve-500.pdf", Title: "AcmeSolve 500 Safety Data Sheet"},
		{URL: "https://blog.example/cleaning-tips", Title: "Ten cleaning tips"},
	}

	ranked := rankLinks(links, "AcmeSolve 500")
	if len(ranked) != 3 {
		t.Fatalf("ranked: got %d links", len(ranked))
	}
	if ranked[0].URL != "https://acmechem.example/sds/acmesolve-500.pdf" {
		t.Errorf("best: got %q", ranked[0].URL)
	}
	if ranked[0].Score < scoreSdsKeyword+scorePDF {
		t.Errorf("sds pdf score too low: %d", ranked[0].Score)
	}

	for _, l := range ranked {
		if l.URL == links[0].URL && l.Score >= ranked[0].Score {
			t.Errorf("marketplace link not demoted: %d", l.Score)
		}
	}
}

func TestRankLinks_DropsUnparseable(t *testing.T) {
	links := []Link{
		{URL: "javascript:void(0)", Title: "nav"},
		{URL: "://bad", Title: "broken"},
		{URL: "https://ok.example/sds.pdf", Title: "SDS"},
	}
	ranked := rankLinks(links, "product")
	if len(ranked) != 1 {
		t.Fatalf("got %d links, want 1", len(ranked))
	}
}

func TestRankLinks_Dedupes(t *testing.T) {
	links := []Link{
		{URL: "https://a.example/sds.pdf", Title: "SDS"},
		{URL: "https://a.example/sds.pdf", Title: "SDS again"},
	}
	if got := rankLinks(links, "x"); len(got) != 1 {
		t.Fatalf("got %d links, want 1", len(got))
	}
}

func TestContainsToken_WordBoundaries(t *testing.T) {
	if containsToken("wash your hands", "sds") {
		t.Error("sds matched inside 'hands'")
	}
	if !containsToken("acme sds library", "sds") {
		t.Error("standalone sds not matched")
	}
	if !containsToken("acme-sds.pdf", "sds") {
		t.Error("hyphen-delimited sds not matched")
	}
}

func TestSignificantTokens(t *testing.T) {
	toks := significantTokens(`Isocol Rubbing Alcohol 75ml`)
	want := []string{"isocol", "rubbing", "alcohol", "75ml"}
	if len(toks) != len(want) {
		t.Fatalf("got %v", toks)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Errorf("token[%d]: got %q, want %q", i, toks[i], want[i])
		}
	}
}
