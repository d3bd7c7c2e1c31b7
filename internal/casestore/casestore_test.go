package casestore

import (
	"context"
	"errors"
	"testing"
)

// openTestStore opens an in-memory Store for use in tests.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testCase returns a valid record for fixtures. id=0 requests auto-assignment.
func testCase(id int64, title string) Case {
	return Case{
		ID:               id,
		Title:            title,
		Age:              54,
		Sex:              "M",
		BMI:              27.5,
		Smoker:           true,
		DefectLengthCM:   12,
		DonorSite:        "ALT",
		TechniqueSummary: "Free ALT flap",
		OutcomeRating:    4,
	}
}

func Test_Store_CreateAssignsID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.Create(ctx, testCase(0, "first"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id2, err := s.Create(ctx, testCase(0, "second"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id1 == 0 || id2 == 0 {
		t.Fatalf("expected non-zero ids, got %d and %d", id1, id2)
	}
	if id1 == id2 {
		t.Errorf("distinct creates got the same id %d", id1)
	}
}

func Test_Store_CreateWithExplicitID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCase(42, "seeded"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 42 {
		t.Fatalf("want id 42, got %d", id)
	}

	c, err := s.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Title != "seeded" {
		t.Errorf("want title %q, got %q", "seeded", c.Title)
	}
}

func Test_Store_CreateOverwritesByID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	first := testCase(7, "original")
	first.Notes = "had notes"
	if _, err := s.Create(ctx, first); err != nil {
		t.Fatalf("create original: %v", err)
	}

	second := testCase(7, "replacement")
	second.DonorSite = "radial forearm"
	if _, err := s.Create(ctx, second); err != nil {
		t.Fatalf("create replacement: %v", err)
	}

	c, err := s.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Title != "replacement" || c.DonorSite != "radial forearm" {
		t.Errorf("overwrite incomplete: got %+v", c)
	}
	// No residual fields from the first record.
	if c.Notes != "" {
		t.Errorf("residual notes from first record: %q", c.Notes)
	}

	cases, err := s.List(ctx, 100, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cases) != 1 {
		t.Errorf("overwrite produced duplicate rows: %d", len(cases))
	}
}

func Test_Store_GetMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.Get(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func Test_Store_ListRecencyOrderAndPaging(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		if _, err := s.Create(ctx, testCase(0, title)); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}

	cases, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("want 2 cases, got %d", len(cases))
	}
	if cases[0].Title != "c" || cases[1].Title != "b" {
		t.Errorf("want most-recent-first [c b], got [%s %s]", cases[0].Title, cases[1].Title)
	}

	rest, err := s.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rest) != 1 || rest[0].Title != "a" {
		t.Errorf("offset page wrong: %+v", rest)
	}
}

func Test_Store_OptionalFieldsRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	c := testCase(0, "optional")
	c.Complications = "partial necrosis"
	c.ImagingMeta = "CTA preop"
	id, err := s.Create(ctx, c)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Complications != "partial necrosis" || got.ImagingMeta != "CTA preop" {
		t.Errorf("optional fields lost: %+v", got)
	}
	if got.Notes != "" {
		t.Errorf("absent notes should read back empty, got %q", got.Notes)
	}
}

func Test_Store_IDsAscending(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{5, 2, 9} {
		if _, err := s.Create(ctx, testCase(id, "x")); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}

	ids, err := s.IDs(ctx)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	want := []int64{2, 5, 9}
	if len(ids) != len(want) {
		t.Fatalf("want %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d]: want %d, got %d", i, want[i], ids[i])
		}
	}
}

func Test_Store_ValidateRejectsBadRating(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	c := testCase(0, "bad rating")
	c.OutcomeRating = 6
	if _, err := s.Create(context.Background(), c); err == nil {
		t.Errorf("outcome_rating 6 should be rejected")
	}
	c.OutcomeRating = 0
	if _, err := s.Create(context.Background(), c); err == nil {
		t.Errorf("outcome_rating 0 should be rejected")
	}
}
