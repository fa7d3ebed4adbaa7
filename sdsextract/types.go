package sdsextract

import "strings"

// Canonical field names produced by the extraction engine. Fields that are
// not found are simply absent from Result.Fields; absence is not an error.
const (
	FieldProductName    = "product_name"
	FieldVendor         = "vendor"
	FieldDescription    = "description"
	FieldProductUse     = "product_use"
	FieldIssueDate      = "issue_date"
	FieldDGClass        = "dangerous_goods_class"
	FieldSubsidiaryRisk = "subsidiary_risk"
	FieldPackingGroup   = "packing_group"
)

// Extraction methods, in the order the strategy chain tries them.
const (
	MethodStructured = "pdfcpu"  // content-stream extraction
	MethodTextLayer  = "pdftext" // general-purpose text layer
	MethodRawScan    = "rawscan" // baseline byte scan, always available
	MethodOCR        = "ocr"     // optical character recognition sidecar
	MethodHTML       = "html"    // SDS served as a web page
)

// Field is one extracted value with a confidence score in [0, 1].
// Confidence reflects pattern specificity: an exactly labeled field scores
// high, a value inferred from loose keyword proximity scores low.
type Field struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of extracting one document. It always exists, even
// when no strategy produced usable text: an empty Fields map with a zero
// quality is the degraded form, never a thrown fault.
type Result struct {
	Fields  map[string]Field `json:"fields"`
	RawText string           `json:"raw_text"`
	Method  string           `json:"method"`
	Quality *TextQuality     `json:"quality,omitempty"`
}

// DangerousGood reports whether the extracted dangerous-goods class marks
// the product as a regulated dangerous good: a class is present, valid, and
// not a none/not-applicable phrase.
func (r *Result) DangerousGood() bool {
	f, ok := r.Fields[FieldDGClass]
	if !ok || f.Value == "" {
		return false
	}
	return !isNoneValue(f.Value)
}

// HazardousSubstance mirrors DangerousGood. A finer heuristic would read
// the section 2 hazard classification; the DG class is the signal the rest
// of the system keys on.
func (r *Result) HazardousSubstance() bool {
	return r.DangerousGood()
}

// SubsidiaryRisks returns the extracted subsidiary risks as a list,
// filtered of none/not-applicable phrases.
func (r *Result) SubsidiaryRisks() []string {
	f, ok := r.Fields[FieldSubsidiaryRisk]
	if !ok || f.Value == "" || isNoneValue(f.Value) {
		return nil
	}
	var risks []string
	for _, part := range strings.Split(f.Value, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !isNoneValue(part) {
			risks = append(risks, part)
		}
	}
	return risks
}
