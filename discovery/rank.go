package discovery

import (
	"net/url"
	"sort"
	"strings"
)

// ScoredLink is a search result with its ranking score.
type ScoredLink struct {
	URL   string
	Title string
	Score int
}

// Ranking weights. The signal hierarchy: explicit SDS vocabulary beats a
// PDF extension beats a product-name match; marketplace listings are
// demoted because they link product pages, not documents.
const (
	scoreSdsKeyword   = 40
	scorePDF          = 30
	scoreNameMatch    = 15
	scoreSdsPath      = 10
	scoreMarketplace  = -25
	scoreQueryStrings = -5
)

var sdsKeywords = []string{
	"safety data sheet", "safety-data-sheet", "safetydatasheet",
	"sds", "msds",
}

var marketplaceHosts = []string{
	"ebay.", "amazon.", "aliexpress.", "alibaba.", "gumtree.",
	"etsy.", "catch.com", "kogan.com", "temu.",
}

// rankLinks scores and sorts candidates best first. Unparseable URLs are
// dropped.
func rankLinks(links []Link, productName string) []ScoredLink {
	nameTokens := significantTokens(productName)

	var ranked []ScoredLink
	seen := make(map[string]bool)
	for _, l := range links {
		u, err := url.Parse(l.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		ranked = append(ranked, ScoredLink{
			URL:   l.URL,
			Title: l.Title,
			Score: scoreLink(u, l.Title, nameTokens),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func scoreLink(u *url.URL, title string, nameTokens []string) int {
	lowerURL := strings.ToLower(u.String())
	lowerTitle := strings.ToLower(title)
	lowerPath := strings.ToLower(u.Path)

	score := 0

	for _, kw := range sdsKeywords {
		if containsToken(lowerURL, kw) || containsToken(lowerTitle, kw) {
			score += scoreSdsKeyword
			break
		}
	}

	if strings.HasSuffix(lowerPath, ".pdf") || strings.Contains(lowerURL, ".pdf") {
		score += scorePDF
	}

	matched := 0
	for _, tok := range nameTokens {
		if strings.Contains(lowerURL, tok) || strings.Contains(lowerTitle, tok) {
			matched++
		}
	}
	if len(nameTokens) > 0 && matched*2 >= len(nameTokens) {
		score += scoreNameMatch
	}

	for _, seg := range strings.Split(lowerPath, "/") {
		if seg == "sds" || seg == "msds" || seg == "safety-data-sheets" {
			score += scoreSdsPath
			break
		}
	}

	host := strings.ToLower(u.Host)
	for _, mp := range marketplaceHosts {
		if strings.Contains(host, mp) {
			score += scoreMarketplace
			break
		}
	}

	// Long tracking query strings usually mean a portal page, not a document.
	if len(u.RawQuery) > 80 {
		score += scoreQueryStrings
	}

	return score
}

// containsToken matches kw in s on word boundaries, so "sds" does not
// match inside "hands".
func containsToken(s, kw string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isAlnum(s[start-1])
		afterOK := end == len(s) || !isAlnum(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// significantTokens splits a product name into lowercase tokens worth
// matching, dropping short filler words.
func significantTokens(name string) []string {
	var toks []string
	for _, t := range strings.Fields(strings.ToLower(name)) {
		t = strings.Trim(t, ".,()\"'")
		if len(t) >= 3 {
			toks = append(toks, t)
		}
	}
	return toks
}
