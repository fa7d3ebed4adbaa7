package sdsextract

import (
	"strings"
	"testing"
)

const sampleSDS = `Safety Data Sheet
SECTION 1: Identification of the material and supplier
Product name: AcmeSolve 500
Recommended use: Industrial degreasing solvent
Supplier: Acme Chemical Co Pty Ltd
Phone: 1800 000 000
Emergency: 13 11 26
SECTION 2: Hazards identification
Flammable liquid, category 3
SECTION 14: Transport information
UN Number: 1993
Class: 3
Subsidiary Risk: None
Packing Group: III
SECTION 15: Regulatory information
`

func TestExtractFields_Labeled(t *testing.T) {
	fields := extractFields(sampleSDS, 1.0)

	tests := []struct {
		field string
		value string
		conf  float64
	}{
		{FieldProductName, "AcmeSolve 500", confSameLine},
		{FieldVendor, "Acme Chemical Co Pty Ltd", confSameLine},
		{FieldProductUse, "Industrial degreasing solvent", confSameLine},
		{FieldDGClass, "3", confSameLine},
		{FieldSubsidiaryRisk, "None", confSameLine},
		{FieldPackingGroup, "III", confSameLine},
	}
	for _, tc := range tests {
		f, ok := fields[tc.field]
		if !ok {
			t.Fatalf("%s: not extracted", tc.field)
		}
		if f.Value != tc.value {
			t.Errorf("%s: got %q, want %q", tc.field, f.Value, tc.value)
		}
		if f.Confidence != tc.conf {
			t.Errorf("%s confidence: got %v, want %v", tc.field, f.Confidence, tc.conf)
		}
	}
}

func TestExtractFields_NextLineValue(t *testing.T) {
	text := `SECTION 1: Identification
Product name
AcmeSolve 500
Manufacturer
Acme Chemical Co
`
	fields := extractFields(text, 1.0)

	f, ok := fields[FieldProductName]
	if !ok {
		t.Fatal("product name not extracted")
	}
	if f.Value != "AcmeSolve 500" {
		t.Errorf("value: got %q", f.Value)
	}
	if f.Confidence != confNextLine {
		t.Errorf("confidence: got %v, want %v", f.Confidence, confNextLine)
	}

	v, ok := fields[FieldVendor]
	if !ok || v.Value != "Acme Chemical Co" {
		t.Errorf("vendor: got %+v", v)
	}
}

func TestExtractFields_NoiseRejected(t *testing.T) {
	text := `SECTION 1: Identification
Supplier
Phone: 1800 000 000
`
	fields := extractFields(text, 1.0)
	if f, ok := fields[FieldVendor]; ok {
		t.Errorf("vendor should be rejected as noise, got %q", f.Value)
	}
}

func TestExtractFields_OCRDiscount(t *testing.T) {
	fields := extractFields(sampleSDS, ocrConfidenceFactor)
	f, ok := fields[FieldProductName]
	if !ok {
		t.Fatal("product name not extracted")
	}
	want := confSameLine * ocrConfidenceFactor
	if f.Confidence != want {
		t.Errorf("confidence: got %v, want %v", f.Confidence, want)
	}
}

func TestExtractFields_TableLayout(t *testing.T) {
	text := `SECTION 14: Transport information
UN 1263 | Transport hazard class 3 | PG II
`
	fields := extractFields(text, 1.0)
	f, ok := fields[FieldDGClass]
	if !ok {
		t.Fatal("dg class not extracted from table row")
	}
	if f.Value != "3" {
		t.Errorf("dg class: got %q", f.Value)
	}
	if f.Confidence > confSameLine {
		t.Errorf("table confidence too high: %v", f.Confidence)
	}
}

func TestAcceptDGClass(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3", "3"},
		{"2.1", "2.1"},
		{"8 Corrosive substances", "8"},
		{"Not regulated", "None"},
		{"N/A", "None"},
		{"None allocated", "None"},
		{"10", ""},
		{"0", ""},
		{"3.0", ""},
		{"flammable", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := acceptDGClass(tc.in); got != tc.want {
			t.Errorf("acceptDGClass(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAcceptPackingGroup(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"I", "I"},
		{"ii", "II"},
		{"III", "III"},
		{"II (medium danger)", "II"},
		{"Not applicable", "None"},
		{"V", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := acceptPackingGroup(tc.in); got != tc.want {
			t.Errorf("acceptPackingGroup(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAcceptSubsidiaryRisk(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"6.1", "6.1"},
		{"3, 8", "3, 8"},
		{"None", "None"},
		{"corrosive", ""},
	}
	for _, tc := range tests {
		if got := acceptSubsidiaryRisk(tc.in); got != tc.want {
			t.Errorf("acceptSubsidiaryRisk(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsNoneValue(t *testing.T) {
	for _, v := range []string{"None", "N/A", "not applicable", "Not Regulated", "none allocated", "-"} {
		if !isNoneValue(v) {
			t.Errorf("isNoneValue(%q): got false", v)
		}
	}
	for _, v := range []string{"3", "II", "Acme Chemical"} {
		if isNoneValue(v) {
			t.Errorf("isNoneValue(%q): got true", v)
		}
	}
}

func TestDedupRepeatedPhrase(t *testing.T) {
	if got := dedupRepeatedPhrase("Acme Chemical Acme Chemical"); got != "Acme Chemical" {
		t.Errorf("got %q", got)
	}
	if got := dedupRepeatedPhrase("Acme Chemical Co"); got != "Acme Chemical Co" {
		t.Errorf("got %q", got)
	}
}

func TestResult_DerivedFlags(t *testing.T) {
	r := &Result{Fields: map[string]Field{
		FieldDGClass:        {Value: "3", Confidence: 0.9},
		FieldSubsidiaryRisk: {Value: "6.1, 8", Confidence: 0.9},
	}}
	if !r.DangerousGood() {
		t.Error("DangerousGood: got false for class 3")
	}
	if !r.HazardousSubstance() {
		t.Error("HazardousSubstance: got false for class 3")
	}
	if risks := r.SubsidiaryRisks(); len(risks) != 2 || risks[0] != "6.1" || risks[1] != "8" {
		t.Errorf("SubsidiaryRisks: got %v", risks)
	}

	none := &Result{Fields: map[string]Field{
		FieldDGClass: {Value: "None", Confidence: 0.9},
	}}
	if none.DangerousGood() {
		t.Error("DangerousGood: got true for None")
	}
	if risks := none.SubsidiaryRisks(); risks != nil {
		t.Errorf("SubsidiaryRisks without field: got %v", risks)
	}

	empty := &Result{Fields: map[string]Field{}}
	if empty.DangerousGood() {
		t.Error("DangerousGood: got true for empty fields")
	}
}

func TestCleanValue_CapsLength(t *testing.T) {
	long := strings.Repeat("x ", 200)
	if got := cleanValue(long); len(got) > 200 {
		t.Errorf("length: got %d", len(got))
	}
}
