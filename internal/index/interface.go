// Package index defines the interfaces for the similarity-search side of the
// engine: the external vector index, the text embedder, and the denormalized
// candidate payload stored alongside each vector. Concrete implementations
// (Qdrant, the HTTP embedders) satisfy these interfaces so retrieval and
// ingestion never depend on a specific backend.
package index

import (
	"context"
)

// Payload is the denormalized copy of a case record stored with its vector.
// It carries every scoring-relevant field so candidates can be scored without
// a join back to the record store on the query hot path.
//
// The four attributes the feature scorer compares (BMI, Smoker,
// DefectLengthCM, DonorSite) are pointers: nil means the value is absent from
// the stored payload and must be excluded from that scoring axis rather than
// treated as zero.
type Payload struct {
	// CaseID is the identifier shared with the record store entry.
	CaseID int64 `json:"case_id"`
	// Title is the short case title.
	Title string `json:"title"`
	// Age is the patient age in years.
	Age int `json:"age"`
	// Sex is the enumerated sex code.
	Sex string `json:"sex"`
	// BMI is the body-mass-index, nil when absent.
	BMI *float64 `json:"bmi,omitempty"`
	// Smoker is the smoking status, nil when absent.
	Smoker *bool `json:"smoker,omitempty"`
	// DefectLengthCM is the defect length in centimeters, nil when absent.
	DefectLengthCM *float64 `json:"defect_length_cm,omitempty"`
	// DonorSite is the donor site label, nil when absent.
	DonorSite *string `json:"donor_site,omitempty"`
	// TechniqueSummary is the free-text technique description.
	TechniqueSummary string `json:"technique_summary"`
	// Complications is optional free text.
	Complications string `json:"complications,omitempty"`
	// Notes is optional free text.
	Notes string `json:"notes,omitempty"`
	// OutcomeRating is the outcome grade, 1–5.
	OutcomeRating int `json:"outcome_rating"`
	// BlobText is the canonical text the stored vector was embedded from.
	BlobText string `json:"blob_text"`
}

// Hit is a single nearest-neighbor result returned by a vector index query.
type Hit struct {
	// CaseID is the identifier of the matched point.
	CaseID int64
	// Score is the cosine similarity reported by the index.
	Score float32
	// Payload is the stored candidate payload.
	Payload Payload
}

// VectorIndex is the interface for the external similarity-search service.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Upsert stores or replaces the vector and payload for the given case id.
	// Upsert is a replace-by-key, never an append: re-ingesting an id leaves
	// exactly one point.
	Upsert(ctx context.Context, id int64, vector []float32, payload Payload) error

	// Query returns up to limit nearest neighbors of the given vector,
	// ordered by descending similarity, with payloads attached.
	Query(ctx context.Context, vector []float32, limit int) ([]Hit, error)

	// Has reports whether a point exists for the given case id. Used by the
	// reconciliation pass to find records that were never indexed.
	Has(ctx context.Context, id int64) (bool, error)

	// Close releases any resources held by the index client.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be deterministic for identical model/version/input and
// safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
