package sdsextract

import (
	"regexp"
	"strings"
)

// Confidence grades by how the value was found. A labeled value on the
// same line as its label is near-certain; a bare next-line value under a
// label is likely; a value pulled from a jumbled table row less so; a
// loose whole-document match is a guess worth keeping but flagging.
const (
	confSameLine = 0.90
	confNextLine = 0.75
	confTable    = 0.70
	confLoose    = 0.50

	// OCR text is noisier than any structural extraction, so fields found
	// in it carry a discounted confidence.
	ocrConfidenceFactor = 0.8
)

// Label tables per field. Order matters: earlier labels are more specific
// and win when several match.
var (
	vendorLabels = []string{
		"manufacturer/supplier",
		"manufacturer name",
		"supplier name",
		"company name",
		"manufacturer",
		"supplier",
		"company",
		"registered company name",
		"name of supplier",
		"producer",
	}

	productNameLabels = []string{
		"product name",
		"product identifier",
		"trade name",
		"commercial product name",
		"name of the substance",
		"substance name",
		"material name",
		"identification of the substance",
		"product",
	}

	productUseLabels = []string{
		"recommended use",
		"identified uses",
		"intended use",
		"product use",
		"use of the substance",
		"uses advised",
		"application",
	}

	dgClassLabels = []string{
		"dangerous goods class",
		"dg class",
		"transport hazard class",
		"hazard class",
		"class",
		"adg class",
		"imdg class",
		"iata class",
		"un class",
	}

	subsidiaryRiskLabels = []string{
		"subsidiary risk",
		"subsidiary risks",
		"subsidiary hazard",
		"subrisk",
		"secondary risk",
	}

	packingGroupLabels = []string{
		"packing group",
		"packaging group",
		"pg",
	}
)

// noiseLabels name values that look like field content but never are:
// contact details, addresses, registration numbers. A candidate value
// starting with one of these is rejected.
var noiseLabels = []string{
	"phone", "telephone", "tel", "fax", "email", "e-mail", "web", "website",
	"address", "street", "po box", "p.o. box", "emergency", "abn", "acn",
	"poison", "poisons information", "details of the supplier",
	"in case of", "page", "date", "version", "revision", "sds no",
	"msds no", "code", "synonym",
}

var (
	// A DG class is a single digit 1-9 with an optional .1-.9 division.
	dgClassRe = regexp.MustCompile(`^[1-9](\.[1-9])?$`)
	// Loose form for scanning inside a longer string, e.g. "Class 3 Flammable".
	dgClassLooseRe = regexp.MustCompile(`\b([1-9](\.[1-9])?)\b`)

	packingGroupRe = regexp.MustCompile(`^(?i:I|II|III|IV)$`)
	// Loose form anchored to roman numerals in mixed text.
	packingGroupLooseRe = regexp.MustCompile(`\b(III|II|IV|I)\b`)
)

// noneValuePhrases mark a classification field explicitly stated as not
// applicable. Such a value is kept (it is information: the product is not
// a regulated dangerous good) but normalised and never treated as a class.
var noneValuePhrases = []string{
	"none", "n/a", "na", "not applicable", "not regulated",
	"not classified", "non-dangerous", "not dangerous",
	"not subject", "no", "nil", "not available", "-",
}

// isNoneValue reports whether the value states an explicit absence.
func isNoneValue(v string) bool {
	v = strings.ToLower(strings.TrimSpace(strings.Trim(v, ".")))
	for _, p := range noneValuePhrases {
		if v == p || strings.HasPrefix(v, p+" ") || strings.HasPrefix(v, p+",") {
			return true
		}
	}
	return false
}

// extractFields scans extracted SDS text for the metadata fields. The
// method's confidence factor discounts OCR-sourced matches.
func extractFields(text string, confFactor float64) map[string]Field {
	fields := make(map[string]Field)

	sec1 := sectionText(text, 1)
	sec14 := sectionText(text, 14)

	put := func(name, value string, conf float64) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		conf *= confFactor
		if existing, ok := fields[name]; ok && existing.Confidence >= conf {
			return
		}
		fields[name] = Field{Value: value, Confidence: conf}
	}

	if v, conf := findLabeled(sec1, productNameLabels, acceptFreeText); v != "" {
		put(FieldProductName, v, conf)
	}
	if v, conf := findLabeled(sec1, vendorLabels, acceptFreeText); v != "" {
		put(FieldVendor, v, conf)
	}
	if v, conf := findLabeled(sec1, productUseLabels, acceptFreeText); v != "" {
		put(FieldProductUse, v, conf)
		put(FieldDescription, v, conf)
	}

	if v, conf := findLabeled(sec14, dgClassLabels, acceptDGClass); v != "" {
		put(FieldDGClass, v, conf)
	} else if m := dgClassLooseRe.FindString(sec14); m != "" && looksLikeClassContext(sec14, m) {
		put(FieldDGClass, m, confLoose)
	}

	if v, conf := findLabeled(sec14, subsidiaryRiskLabels, acceptSubsidiaryRisk); v != "" {
		put(FieldSubsidiaryRisk, v, conf)
	}

	if v, conf := findLabeled(sec14, packingGroupLabels, acceptPackingGroup); v != "" {
		put(FieldPackingGroup, v, conf)
	}

	return fields
}

// acceptFn validates and normalises a candidate value for a field.
// Returns the cleaned value, or "" to reject.
type acceptFn func(raw string) string

// findLabeled scans lines for any of the labels and returns the first
// accepted value with its confidence grade. Same-line values beat
// next-line values; both beat table rows.
func findLabeled(text string, labels []string, accept acceptFn) (string, float64) {
	lines := strings.Split(text, "\n")

	for _, label := range labels {
		for i, line := range lines {
			rest, ok := matchLabel(line, label)
			if !ok {
				continue
			}
			if v := accept(cleanValue(rest)); v != "" {
				return v, confSameLine
			}
			// Label with nothing usable after it: try the next line.
			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if !startsWithNoise(next) && !startsWithAnyLabel(next) {
					if v := accept(cleanValue(next)); v != "" {
						return v, confNextLine
					}
				}
			}
		}
	}

	// Table layouts collapse label and value into one run of cells. Look
	// for the label anywhere in a line and take what follows.
	for _, label := range labels {
		for _, line := range lines {
			lower := strings.ToLower(line)
			idx := strings.Index(lower, label)
			if idx < 0 {
				continue
			}
			rest := line[idx+len(label):]
			if v := accept(cleanValue(rest)); v != "" {
				return v, confTable
			}
		}
	}

	return "", 0
}

// matchLabel reports whether the line starts with the label, and returns
// the remainder after the label and any separator.
func matchLabel(line, label string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, label) {
		return "", false
	}
	rest := trimmed[len(label):]
	// The label must end at a word boundary: "class" must not match
	// "classification".
	if rest != "" {
		c := rest[0]
		if c != ':' && c != ';' && c != '-' && c != '=' && c != ' ' && c != '\t' && c != '.' && c != ',' {
			return "", false
		}
	}
	rest = strings.TrimLeft(rest, " \t:;-=.,")
	return rest, true
}

// cleanValue normalises a candidate: trims separators, collapses internal
// whitespace, drops a duplicated phrase (two-column layouts repeat the
// value), and caps length.
func cleanValue(v string) string {
	v = strings.TrimSpace(strings.Trim(v, " \t:;-=|"))
	v = strings.Join(strings.Fields(v), " ")
	v = dedupRepeatedPhrase(v)
	if len(v) > 200 {
		v = strings.TrimSpace(v[:200])
	}
	return v
}

// dedupRepeatedPhrase collapses "Acme Corp Acme Corp" into "Acme Corp".
// Two-column PDF layouts frequently emit the same cell twice.
func dedupRepeatedPhrase(v string) string {
	words := strings.Fields(v)
	if n := len(words); n >= 2 && n%2 == 0 {
		half := n / 2
		if strings.EqualFold(strings.Join(words[:half], " "), strings.Join(words[half:], " ")) {
			return strings.Join(words[:half], " ")
		}
	}
	return v
}

func startsWithNoise(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, n := range noiseLabels {
		if strings.HasPrefix(lower, n) {
			return true
		}
	}
	return false
}

var allLabels = func() []string {
	var all []string
	for _, set := range [][]string{
		vendorLabels, productNameLabels, productUseLabels,
		dgClassLabels, subsidiaryRiskLabels, packingGroupLabels,
	} {
		all = append(all, set...)
	}
	return all
}()

func startsWithAnyLabel(line string) bool {
	for _, label := range allLabels {
		if _, ok := matchLabel(line, label); ok {
			return true
		}
	}
	return false
}

// acceptFreeText takes any non-noise value with at least one letter.
func acceptFreeText(v string) string {
	if v == "" || startsWithNoise(v) {
		return ""
	}
	hasLetter := false
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return ""
	}
	return v
}

// acceptDGClass validates a dangerous goods class: a class code, or an
// explicit not-regulated statement (normalised to "None").
func acceptDGClass(v string) string {
	if v == "" {
		return ""
	}
	if isNoneValue(v) {
		return "None"
	}
	// Exact code.
	if dgClassRe.MatchString(v) {
		return v
	}
	// "3 Flammable liquids" and similar: code leads the value.
	first := strings.Fields(v)[0]
	first = strings.Trim(first, ".,;")
	if dgClassRe.MatchString(first) {
		return first
	}
	return ""
}

// acceptSubsidiaryRisk validates a subsidiary risk: class codes or an
// explicit none.
func acceptSubsidiaryRisk(v string) string {
	if v == "" {
		return ""
	}
	if isNoneValue(v) {
		return "None"
	}
	var risks []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == ' '
	}) {
		part = strings.Trim(part, ".,;()")
		if dgClassRe.MatchString(part) {
			risks = append(risks, part)
		}
	}
	if len(risks) == 0 {
		return ""
	}
	return strings.Join(risks, ", ")
}

// acceptPackingGroup validates a packing group: roman numeral I-IV or an
// explicit none.
func acceptPackingGroup(v string) string {
	if v == "" {
		return ""
	}
	if isNoneValue(v) {
		return "None"
	}
	upper := strings.ToUpper(strings.Trim(v, ".,;"))
	if packingGroupRe.MatchString(upper) {
		return upper
	}
	// "II (medium danger)" forms.
	if m := packingGroupLooseRe.FindString(upper); m != "" {
		if f := strings.Fields(upper); len(f) > 0 && strings.Trim(f[0], ".,;()") == m {
			return m
		}
	}
	return ""
}

// looksLikeClassContext guards the loose DG class scan: the number must
// sit near transport vocabulary, otherwise any stray digit would match.
func looksLikeClassContext(section, match string) bool {
	idx := strings.Index(section, match)
	if idx < 0 {
		return false
	}
	lo := idx - 60
	if lo < 0 {
		lo = 0
	}
	hi := idx + 60
	if hi > len(section) {
		hi = len(section)
	}
	window := strings.ToLower(section[lo:hi])
	for _, kw := range []string{"class", "hazard", "adg", "imdg", "iata", "un"} {
		if strings.Contains(window, kw) {
			return true
		}
	}
	return false
}
