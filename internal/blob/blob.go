// Package blob builds the canonical text representation of a case or query
// profile used as embedding input. The embedding vector is the sole basis of
// similarity search, so the rendering must be byte-stable: two inputs with
// identical attribute values (including absent ones) always produce identical
// text. This is what makes ingestion idempotent.
package blob

import (
	"strconv"
	"strings"
)

// Fields is the record-like attribute set rendered into blob text.
// Every field is optional; nil fields render as empty strings within the
// fixed line template, so presence and absence are both deterministic.
type Fields struct {
	// Title is the short case title.
	Title *string
	// Age is the patient age in years.
	Age *int
	// Sex is the enumerated sex code (e.g. "M", "F").
	Sex *string
	// BMI is the body-mass-index.
	BMI *float64
	// Smoker indicates smoking status; rendered as "Yes"/"No".
	Smoker *bool
	// DefectLengthCM is the defect length in centimeters.
	DefectLengthCM *float64
	// DonorSite is the donor site label (e.g. "ALT", "radial forearm").
	DonorSite *string
	// TechniqueSummary is the free-text technique description.
	TechniqueSummary *string
	// Complications is optional free text; emitted only when non-empty.
	Complications *string
	// Notes is optional free text; emitted only when non-empty.
	Notes *string
	// ImagingMeta is optional imaging metadata; emitted only when non-empty.
	ImagingMeta *string
}

// Render produces the canonical multi-line blob text for f.
// The first eight lines are always present in fixed order; the optional
// complications, notes, and imaging lines are appended only when their
// fields hold non-empty text.
func Render(f Fields) string {
	var b strings.Builder

	b.WriteString("Title: " + strOrEmpty(f.Title) + "\n")
	b.WriteString("Age: " + intOrEmpty(f.Age) + "\n")
	b.WriteString("Sex: " + strOrEmpty(f.Sex) + "\n")
	b.WriteString("BMI: " + floatOrEmpty(f.BMI) + "\n")
	b.WriteString("Smoker: " + yesNoOrEmpty(f.Smoker) + "\n")
	b.WriteString("Defect Length: " + floatOrEmpty(f.DefectLengthCM) + " cm\n")
	b.WriteString("Donor Site: " + strOrEmpty(f.DonorSite) + "\n")
	b.WriteString("Technique: " + strOrEmpty(f.TechniqueSummary))

	if v := strOrEmpty(f.Complications); v != "" {
		b.WriteString("\nComplications: " + v)
	}
	if v := strOrEmpty(f.Notes); v != "" {
		b.WriteString("\nNotes: " + v)
	}
	if v := strOrEmpty(f.ImagingMeta); v != "" {
		b.WriteString("\nImaging: " + v)
	}

	return b.String()
}

// RenderQuery builds the blob text for a retrieval query. When freeText is
// non-empty it is prepended as a leading line before the profile block.
func RenderQuery(freeText string, f Fields) string {
	body := Render(f)
	if freeText == "" {
		return body
	}
	return freeText + "\n" + body
}

// strOrEmpty dereferences an optional string, returning "" for nil.
func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// intOrEmpty formats an optional int, returning "" for nil.
func intOrEmpty(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// floatOrEmpty formats an optional float with the shortest exact
// representation so equal values always render identically.
func floatOrEmpty(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}

// yesNoOrEmpty renders an optional bool as "Yes"/"No", or "" for nil.
func yesNoOrEmpty(p *bool) string {
	if p == nil {
		return ""
	}
	if *p {
		return "Yes"
	}
	return "No"
}
