// Package retrieval implements the hybrid retrieval-and-ranking engine.
// A query is described by free text plus a partial structured profile; the
// engine embeds the query blob, pulls a breadth of nearest neighbors from the
// vector index, scores each candidate on explicit attribute similarity, fuses
// the two scores into one ranking score, and returns the top-k candidates.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/54b3r/casematch-go/internal/blob"
	"github.com/54b3r/casematch-go/internal/index"
)

// ErrNoMatches is returned when the vector index yields zero candidates for a
// query. Callers must be able to distinguish "nothing matched" from "no
// opinion", so this is never silently converted into an empty result.
var ErrNoMatches = errors.New("retrieval: no matching cases")

// Attribute comparison weights and normalization scales for the feature score.
// A defect-length difference of defectLengthScale cm (or a BMI difference of
// bmiScale) maps to a component score of 0.
const (
	weightDefectLength = 0.3
	weightDonorSite    = 0.3
	weightSmoker       = 0.2
	weightBMI          = 0.2

	defectLengthScale = 20.0
	bmiScale          = 15.0
)

// DefaultBreadth is the number of nearest neighbors fetched from the vector
// index before fusion. Widening it trades latency for recall headroom.
const DefaultBreadth = 20

// Default fusion weights. They must sum to 1 so the final score stays a
// convex combination of the two component scores.
const (
	DefaultFeatureWeight   = 0.6
	DefaultEmbeddingWeight = 0.4
)

// Profile is a partial structured description of a new case. Every field is
// optional: a nil field simply does not participate in feature scoring.
type Profile struct {
	// Age is the patient age in years.
	Age *int `json:"age,omitempty"`
	// Sex is the enumerated sex code.
	Sex *string `json:"sex,omitempty"`
	// BMI is the body-mass-index.
	BMI *float64 `json:"bmi,omitempty"`
	// Smoker indicates smoking status.
	Smoker *bool `json:"smoker,omitempty"`
	// DefectLengthCM is the defect length in centimeters.
	DefectLengthCM *float64 `json:"defect_length_cm,omitempty"`
	// DonorSite is the donor site label. Matching is case-insensitive.
	DonorSite *string `json:"donor_site,omitempty"`
}

// blobFields maps the profile onto the canonical blob template.
func (p Profile) blobFields() blob.Fields {
	return blob.Fields{
		Age:            p.Age,
		Sex:            p.Sex,
		BMI:            p.BMI,
		Smoker:         p.Smoker,
		DefectLengthCM: p.DefectLengthCM,
		DonorSite:      p.DonorSite,
	}
}

// Match is a scored retrieval candidate. It exists only for the duration of
// one retrieval call and is never persisted.
type Match struct {
	// Payload is the candidate's denormalized case data from the index.
	index.Payload

	// EmbeddingScore is the index similarity score clamped into [0,1].
	EmbeddingScore float64 `json:"embedding_score"`
	// FeatureScore is the structured attribute similarity in [0,1].
	FeatureScore float64 `json:"feature_score"`
	// FinalScore is the fused ranking score in [0,1].
	FinalScore float64 `json:"final_score"`
}

// Config holds the retrieval tuning parameters.
type Config struct {
	// FeatureWeight is the fusion weight of the feature score.
	FeatureWeight float64
	// EmbeddingWeight is the fusion weight of the embedding score.
	// FeatureWeight + EmbeddingWeight must equal 1.
	EmbeddingWeight float64
	// Breadth is the number of candidates fetched from the vector index
	// before fusion. Always ≥ the requested top-k.
	Breadth int
}

// Retriever orchestrates embedding, vector-index query, feature scoring,
// fusion, ranking, and truncation. It holds only shared client handles and is
// safe for concurrent use.
type Retriever struct {
	// embedder converts the query blob into a dense vector.
	embedder index.Embedder
	// idx is the external vector index queried for candidates.
	idx index.VectorIndex
	// cfg holds the resolved retrieval configuration.
	cfg Config
}

// NewRetriever constructs a Retriever from the given collaborators and config.
// Zero-valued config fields take the package defaults; explicit weights must
// sum to 1.
func NewRetriever(embedder index.Embedder, idx index.VectorIndex, cfg Config) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	if idx == nil {
		return nil, fmt.Errorf("retrieval: vector index must not be nil")
	}
	if cfg.FeatureWeight == 0 && cfg.EmbeddingWeight == 0 {
		cfg.FeatureWeight = DefaultFeatureWeight
		cfg.EmbeddingWeight = DefaultEmbeddingWeight
	}
	if math.Abs(cfg.FeatureWeight+cfg.EmbeddingWeight-1) > 1e-9 {
		return nil, fmt.Errorf("retrieval: fusion weights must sum to 1, got %g + %g",
			cfg.FeatureWeight, cfg.EmbeddingWeight)
	}
	if cfg.Breadth <= 0 {
		cfg.Breadth = DefaultBreadth
	}
	return &Retriever{embedder: embedder, idx: idx, cfg: cfg}, nil
}

// Retrieve returns the topK best-matching cases for the given free text and
// profile, ordered by descending final score. Returns ErrNoMatches when the
// index yields zero candidates. topK ≤ 0 still queries the index (so the
// zero-candidate outcome is reported) but returns an empty list.
func (r *Retriever) Retrieve(ctx context.Context, freeText string, profile Profile, topK int) ([]Match, error) {
	queryBlob := blob.RenderQuery(freeText, profile.blobFields())

	embeddings, err := r.embedder.Embed(ctx, []string{queryBlob})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("retrieval: embedder returned empty result for query")
	}

	hits, err := r.idx.Query(ctx, embeddings[0], r.cfg.Breadth)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector index query failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, ErrNoMatches
	}
	if topK <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		embScore := clamp01(float64(hit.Score))
		featScore := clamp01(featureScore(profile, hit.Payload))
		matches = append(matches, Match{
			Payload:        hit.Payload,
			EmbeddingScore: embScore,
			FeatureScore:   featScore,
			FinalScore:     r.cfg.FeatureWeight*featScore + r.cfg.EmbeddingWeight*embScore,
		})
	}

	// Rank by final score; equal scores fall back to case id ascending so the
	// ordering is deterministic regardless of index return order.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].FinalScore != matches[j].FinalScore {
			return matches[i].FinalScore > matches[j].FinalScore
		}
		return matches[i].CaseID < matches[j].CaseID
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// featureScore computes the structured attribute similarity between a query
// profile and a candidate payload. Each of the four attribute comparisons
// joins the weighted average only when both sides have a value; the weights
// of excluded comparisons leave both the numerator and the denominator, so a
// partial profile is never penalized toward 0 on an axis it did not specify.
// Returns 0 when no attribute pair is comparable.
func featureScore(p Profile, c index.Payload) float64 {
	var weightedSum, totalWeight float64

	if p.DefectLengthCM != nil && c.DefectLengthCM != nil {
		s := math.Max(0, 1-math.Abs(*p.DefectLengthCM-*c.DefectLengthCM)/defectLengthScale)
		weightedSum += weightDefectLength * s
		totalWeight += weightDefectLength
	}

	if p.DonorSite != nil && c.DonorSite != nil && *p.DonorSite != "" && *c.DonorSite != "" {
		var s float64
		if strings.EqualFold(*p.DonorSite, *c.DonorSite) {
			s = 1
		}
		weightedSum += weightDonorSite * s
		totalWeight += weightDonorSite
	}

	if p.Smoker != nil && c.Smoker != nil {
		var s float64
		if *p.Smoker == *c.Smoker {
			s = 1
		}
		weightedSum += weightSmoker * s
		totalWeight += weightSmoker
	}

	if p.BMI != nil && c.BMI != nil {
		s := math.Max(0, 1-math.Abs(*p.BMI-*c.BMI)/bmiScale)
		weightedSum += weightBMI * s
		totalWeight += weightBMI
	}

	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// clamp01 bounds a score into [0,1]. Cosine similarity should already be
// bounded, but clamping guards against numerical drift from the index.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
