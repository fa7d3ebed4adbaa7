package sdsextract

import (
	"fmt"
	"regexp"
	"strings"
)

// SDS documents follow the GHS 16-section layout. Field extraction only
// cares about two of them: section 1 (identification, supplier details)
// and section 14 (transport information, dangerous goods classification).
// Working on the section slice instead of the whole document keeps label
// matches from picking up unrelated text, e.g. an emergency phone number
// that happens to sit under a "Manufacturer" heading in section 16.

var (
	// Strict heading forms: "SECTION 1: Identification", "Section 14.",
	// "1. IDENTIFICATION". Either the SECTION keyword or a numbered title.
	sectionStrictRe = regexp.MustCompile(`(?im)^\s*(?:section\s+)?(\d{1,2})\s*[:.\-–]\s*\S`)

	// Loose fallback: a line that is just the section number, possibly with
	// the SECTION keyword, nothing else. Raw-scan output often loses the
	// title text onto the following line.
	sectionLooseRe = regexp.MustCompile(`(?im)^\s*(?:section\s+)?(\d{1,2})\s*$`)

	// Subsection headings ("1.1 Product identifier", "14.3. Packing group")
	// look like section headings to the strict pattern but are interior to
	// their parent section, never a boundary.
	subsectionRe = regexp.MustCompile(`(?i)^\s*(?:section\s+)?\d{1,2}\.\d`)
)

// minSectionLen rejects a heading match whose body came out implausibly
// short: a real section carries at least a few lines, so a shorter slice
// means the boundary latched onto a stray numbered line.
const minSectionLen = 30

// sectionText returns the text of the given GHS section, bounded by the
// next section heading. Tries strict heading forms first, then the loose
// form. Returns the full text when no heading structure is recognisable
// or the slice is too short to trust, so label scanning still has
// something to work with.
func sectionText(full string, number int) string {
	for _, re := range []*regexp.Regexp{sectionStrictRe, sectionLooseRe} {
		if s := sectionByRe(full, number, re); len(s) >= minSectionLen {
			return s
		}
	}
	return full
}

func sectionByRe(full string, number int, re *regexp.Regexp) string {
	var matches [][]int
	for _, m := range re.FindAllStringSubmatchIndex(full, -1) {
		if subsectionRe.MatchString(full[m[0]:]) {
			continue
		}
		matches = append(matches, m)
	}
	want := fmt.Sprintf("%d", number)

	for _, m := range matches {
		if full[m[2]:m[3]] != want {
			continue
		}
		// Body begins on the line after the heading.
		start := headingLineEnd(full, m[0])
		// Bounded by the next heading of any number.
		for _, n := range matches {
			if n[0] >= start {
				return strings.TrimSpace(full[start:n[0]])
			}
		}
		return strings.TrimSpace(full[start:])
	}
	return ""
}

// headingLineEnd returns the index just past the heading's line, so the
// section body starts on the next line.
func headingLineEnd(full string, headingStart int) int {
	if i := strings.IndexByte(full[headingStart:], '\n'); i >= 0 {
		return headingStart + i + 1
	}
	return len(full)
}
