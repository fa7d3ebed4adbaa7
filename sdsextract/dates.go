package sdsextract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Issue date labels in priority order. An issue or revision date is the
// document's real vintage; a print date only says when someone hit print
// and is used as a last resort.
var issueDateLabels = []string{
	"date of issue",
	"issue date",
	"issued",
	"revision date",
	"date of revision",
	"revised",
	"date of preparation",
	"preparation date",
	"prepared",
	"version date",
	"date of last revision",
}

var printDateLabels = []string{
	"print date",
	"date of printing",
	"printed",
}

// dateTokenRe grabs a plausible date substring after a label: digits and
// month names with common separators.
var dateTokenRe = regexp.MustCompile(`(?i)\d{1,4}[\s./-]+(?:\d{1,2}|[a-z]{3,9})[\s./-]+\d{1,4}|(?i)[a-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}`)

// extractIssueDate finds the document date and returns it in ISO form
// (YYYY-MM-DD) with a confidence grade. SDS documents are regional:
// ambiguous numeric dates parse day-first, matching the AU/EU convention
// the corpus uses. Dates in the future are treated as parse artifacts
// and skipped.
func extractIssueDate(text string, now time.Time, confFactor float64) (Field, bool) {
	for _, group := range []struct {
		labels []string
		conf   float64
	}{
		{issueDateLabels, confSameLine},
		{printDateLabels, confNextLine},
	} {
		if iso, conf := findLabeledDate(text, group.labels, group.conf, now); iso != "" {
			return Field{Value: iso, Confidence: conf * confFactor}, true
		}
	}
	return Field{}, false
}

func findLabeledDate(text string, labels []string, conf float64, now time.Time) (string, float64) {
	lines := strings.Split(text, "\n")
	for _, label := range labels {
		for i, line := range lines {
			rest, ok := matchLabel(line, label)
			if !ok {
				continue
			}
			if iso := parseDateToken(rest, now); iso != "" {
				return iso, conf
			}
			if i+1 < len(lines) {
				if iso := parseDateToken(lines[i+1], now); iso != "" {
					return iso, conf * (confNextLine / confSameLine)
				}
			}
		}
	}
	return "", 0
}

// parseDateToken extracts and parses the first date-like token in s.
func parseDateToken(s string, now time.Time) string {
	token := dateTokenRe.FindString(s)
	if token == "" {
		return ""
	}
	token = strings.Join(strings.Fields(token), " ")

	t, err := dateparse.ParseAny(token, dateparse.PreferMonthFirst(false))
	if err != nil {
		return ""
	}
	// A future date is a day/month swap or OCR misread, not a real vintage.
	if t.After(now.AddDate(0, 0, 1)) {
		return ""
	}
	// Reject implausibly old dates from garbled digits.
	if t.Year() < 1980 {
		return ""
	}
	return t.Format("2006-01-02")
}
