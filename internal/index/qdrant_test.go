package index

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func Test_PayloadMap_OmitsAbsentAttributes(t *testing.T) {
	t.Parallel()

	p := Payload{
		CaseID:           3,
		Title:            "partial",
		Age:              61,
		Sex:              "F",
		TechniqueSummary: "pedicled flap",
		OutcomeRating:    3,
		BlobText:         "Title: partial",
	}

	m := payloadMap(p)
	for _, key := range []string{"bmi", "smoker", "defect_length_cm", "donor_site", "complications", "notes"} {
		if _, ok := m[key]; ok {
			t.Errorf("absent attribute %q should not be written", key)
		}
	}
}

func Test_ParsePayload_RoundTrip(t *testing.T) {
	t.Parallel()

	bmi := 24.5
	smoker := true
	length := 12.0
	site := "ALT"
	p := Payload{
		CaseID:           9,
		Title:            "full",
		Age:              48,
		Sex:              "M",
		BMI:              &bmi,
		Smoker:           &smoker,
		DefectLengthCM:   &length,
		DonorSite:        &site,
		TechniqueSummary: "free flap",
		Complications:    "none",
		OutcomeRating:    5,
		BlobText:         "Title: full",
	}

	got := parsePayload(qdrant.NewValueMap(payloadMap(p)))

	if got.CaseID != 9 || got.Title != "full" || got.Age != 48 || got.Sex != "M" {
		t.Errorf("scalar fields lost: %+v", got)
	}
	if got.BMI == nil || *got.BMI != 24.5 {
		t.Errorf("bmi lost: %v", got.BMI)
	}
	if got.Smoker == nil || !*got.Smoker {
		t.Errorf("smoker lost: %v", got.Smoker)
	}
	if got.DefectLengthCM == nil || *got.DefectLengthCM != 12 {
		t.Errorf("defect length lost: %v", got.DefectLengthCM)
	}
	if got.DonorSite == nil || *got.DonorSite != "ALT" {
		t.Errorf("donor site lost: %v", got.DonorSite)
	}
	if got.OutcomeRating != 5 || got.Complications != "none" || got.BlobText != "Title: full" {
		t.Errorf("payload fields lost: %+v", got)
	}
}

func Test_ParsePayload_MissingKeysStayNil(t *testing.T) {
	t.Parallel()

	got := parsePayload(qdrant.NewValueMap(map[string]any{
		"case_id": int64(4),
		"title":   "sparse",
	}))

	if got.CaseID != 4 || got.Title != "sparse" {
		t.Errorf("present keys lost: %+v", got)
	}
	if got.BMI != nil || got.Smoker != nil || got.DefectLengthCM != nil || got.DonorSite != nil {
		t.Errorf("missing keys must parse as nil: %+v", got)
	}
}
