package blob

import (
	"strings"
	"testing"
)

// ptr helpers keep the test fixtures readable.
func sp(s string) *string   { return &s }
func ip(i int) *int         { return &i }
func fp(f float64) *float64 { return &f }
func bp(b bool) *bool       { return &b }

func fullFields() Fields {
	return Fields{
		Title:            sp("ALT flap lower leg"),
		Age:              ip(54),
		Sex:              sp("M"),
		BMI:              fp(27.5),
		Smoker:           bp(true),
		DefectLengthCM:   fp(12),
		DonorSite:        sp("ALT"),
		TechniqueSummary: sp("Free ALT flap with end-to-side anastomosis"),
	}
}

func Test_Render_FixedLineOrder(t *testing.T) {
	t.Parallel()

	got := Render(fullFields())
	want := "Title: ALT flap lower leg\n" +
		"Age: 54\n" +
		"Sex: M\n" +
		"BMI: 27.5\n" +
		"Smoker: Yes\n" +
		"Defect Length: 12 cm\n" +
		"Donor Site: ALT\n" +
		"Technique: Free ALT flap with end-to-side anastomosis"

	if got != want {
		t.Errorf("blob mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func Test_Render_Deterministic(t *testing.T) {
	t.Parallel()

	a := Render(fullFields())
	b := Render(fullFields())
	if a != b {
		t.Errorf("identical inputs rendered differently:\n%s\n---\n%s", a, b)
	}
}

func Test_Render_MissingFieldsRenderEmpty(t *testing.T) {
	t.Parallel()

	got := Render(Fields{Title: sp("partial")})
	want := "Title: partial\n" +
		"Age: \n" +
		"Sex: \n" +
		"BMI: \n" +
		"Smoker: \n" +
		"Defect Length:  cm\n" +
		"Donor Site: \n" +
		"Technique: "

	if got != want {
		t.Errorf("partial blob mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func Test_Render_OptionalLinesOnlyWhenPresent(t *testing.T) {
	t.Parallel()

	f := fullFields()
	base := Render(f)
	if strings.Contains(base, "Complications:") || strings.Contains(base, "Notes:") || strings.Contains(base, "Imaging:") {
		t.Fatalf("optional lines present without values:\n%s", base)
	}

	f.Complications = sp("partial flap loss")
	f.Notes = sp("revised day 3")
	f.ImagingMeta = sp("CTA preop")
	got := Render(f)

	wantSuffix := "\nComplications: partial flap loss\nNotes: revised day 3\nImaging: CTA preop"
	if !strings.HasSuffix(got, wantSuffix) {
		t.Errorf("optional lines missing or misordered:\n%s", got)
	}

	// Empty string behaves like absence.
	f.Notes = sp("")
	got = Render(f)
	if strings.Contains(got, "Notes:") {
		t.Errorf("empty notes produced a Notes line:\n%s", got)
	}
}

func Test_RenderQuery_PrependsFreeText(t *testing.T) {
	t.Parallel()

	f := fullFields()
	withText := RenderQuery("Young smoker with mid-tibia defect", f)
	if !strings.HasPrefix(withText, "Young smoker with mid-tibia defect\nTitle: ") {
		t.Errorf("free text not prepended:\n%s", withText)
	}

	withoutText := RenderQuery("", f)
	if withoutText != Render(f) {
		t.Errorf("empty free text altered the blob:\n%s", withoutText)
	}
}

func Test_Render_SmokerYesNo(t *testing.T) {
	t.Parallel()

	f := fullFields()
	f.Smoker = bp(false)
	if !strings.Contains(Render(f), "Smoker: No\n") {
		t.Errorf("smoker=false should render No")
	}
	f.Smoker = bp(true)
	if !strings.Contains(Render(f), "Smoker: Yes\n") {
		t.Errorf("smoker=true should render Yes")
	}
}
