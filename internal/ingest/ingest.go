// Package ingest coordinates the dual write that every new case record
// requires: the structured row in the record store and the derived vector in
// the similarity index. The structured write is authoritative and always
// happens first; a failure on the vector side leaves a stored-but-unsearchable
// record that Reconcile can repair later.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/54b3r/casematch-go/internal/blob"
	"github.com/54b3r/casematch-go/internal/casestore"
	"github.com/54b3r/casematch-go/internal/index"
)

// RecordStore is the slice of the record store the coordinator needs.
// *casestore.Store satisfies it.
type RecordStore interface {
	Create(ctx context.Context, c casestore.Case) (int64, error)
	Get(ctx context.Context, id int64) (casestore.Case, error)
	IDs(ctx context.Context) ([]int64, error)
}

// Config carries the optional knobs for a Coordinator.
type Config struct {
	// PoolSize bounds the worker pool used by Reconcile and SeedFile.
	// Zero means half the available CPUs, minimum one.
	PoolSize int
}

// Coordinator performs the ordered dual write and its repair pass.
type Coordinator struct {
	cases    RecordStore
	idx      index.VectorIndex
	embedder index.Embedder
	log      *slog.Logger
	poolSize int
}

// New builds a Coordinator. All three collaborators are required.
func New(cases RecordStore, idx index.VectorIndex, embedder index.Embedder, log *slog.Logger, cfg Config) (*Coordinator, error) {
	if cases == nil {
		return nil, fmt.Errorf("ingest: record store is required")
	}
	if idx == nil {
		return nil, fmt.Errorf("ingest: vector index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder is required")
	}
	if log == nil {
		log = slog.Default()
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}
	return &Coordinator{
		cases:    cases,
		idx:      idx,
		embedder: embedder,
		log:      log,
		poolSize: size,
	}, nil
}

// Ingest validates and stores the case, then embeds its canonical blob and
// upserts the vector under the same identifier. The returned id is valid
// whenever the structured write succeeded, even if the error is non-nil: in
// that state the record exists but is not yet searchable, and a later
// Reconcile (or a retried ingest of the same id) will index it.
func (co *Coordinator) Ingest(ctx context.Context, c casestore.Case) (int64, error) {
	id, err := co.cases.Create(ctx, c)
	if err != nil {
		return 0, err
	}
	c.ID = id

	if err := co.indexCase(ctx, c); err != nil {
		co.log.WarnContext(ctx, "case stored but not indexed; run reconcile to repair",
			"case_id", id, "error", err)
		return id, fmt.Errorf("ingest: case %d stored but not indexed: %w", id, err)
	}
	co.log.InfoContext(ctx, "case ingested", "case_id", id, "title", c.Title)
	return id, nil
}

// indexCase renders the blob, embeds it, and upserts the vector plus payload.
func (co *Coordinator) indexCase(ctx context.Context, c casestore.Case) error {
	text := blob.Render(caseFields(c))
	vectors, err := co.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embed: expected 1 vector, got %d", len(vectors))
	}
	if err := co.idx.Upsert(ctx, c.ID, vectors[0], casePayload(c, text)); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// caseFields maps a stored record onto the blob template fields. Optional
// strings map to nil when empty so the template drops their lines.
func caseFields(c casestore.Case) blob.Fields {
	f := blob.Fields{
		Title:            &c.Title,
		Age:              &c.Age,
		Sex:              &c.Sex,
		BMI:              &c.BMI,
		Smoker:           &c.Smoker,
		DefectLengthCM:   &c.DefectLengthCM,
		DonorSite:        &c.DonorSite,
		TechniqueSummary: &c.TechniqueSummary,
	}
	if c.Complications != "" {
		f.Complications = &c.Complications
	}
	if c.Notes != "" {
		f.Notes = &c.Notes
	}
	if c.ImagingMeta != "" {
		f.ImagingMeta = &c.ImagingMeta
	}
	return f
}

// casePayload builds the denormalized payload stored beside the vector.
func casePayload(c casestore.Case, blobText string) index.Payload {
	p := index.Payload{
		CaseID:           c.ID,
		Title:            c.Title,
		Age:              c.Age,
		Sex:              c.Sex,
		BMI:              &c.BMI,
		Smoker:           &c.Smoker,
		DefectLengthCM:   &c.DefectLengthCM,
		TechniqueSummary: c.TechniqueSummary,
		Complications:    c.Complications,
		Notes:            c.Notes,
		OutcomeRating:    c.OutcomeRating,
		BlobText:         blobText,
	}
	if c.DonorSite != "" {
		p.DonorSite = &c.DonorSite
	}
	return p
}
