package index

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector index instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant instance.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a new QdrantIndex, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorIndex.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or replaces the vector and payload for the given case id.
// The case id is used directly as the numeric point id, so re-ingestion
// replaces the existing point rather than appending a duplicate.
func (s *QdrantIndex) Upsert(ctx context.Context, id int64, vector []float32, payload Payload) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(id)),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(payloadMap(payload)),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d failed: %w", id, err)
	}

	return nil
}

// Query performs a cosine similarity search and returns up to limit hits with
// payloads attached, ordered by descending similarity.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	l := uint64(limit)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &l,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{
			CaseID:  int64(r.Id.GetNum()),
			Score:   r.Score,
			Payload: parsePayload(r.Payload),
		}
		if hit.Payload.CaseID == 0 {
			hit.Payload.CaseID = hit.CaseID
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Has reports whether a point exists for the given case id.
func (s *QdrantIndex) Has(ctx context.Context, id int64) (bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(id))},
	})
	if err != nil {
		return false, fmt.Errorf("qdrant: get %d failed: %w", id, err)
	}
	return len(points) > 0, nil
}

// Ping calls the Qdrant HealthCheck RPC. Satisfies the server's readiness
// probe interface.
func (s *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *QdrantIndex) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// payloadMap flattens a Payload into the key/value form Qdrant stores.
// Absent optional attributes are omitted entirely so they read back as nil.
func payloadMap(p Payload) map[string]any {
	m := map[string]any{
		"case_id":           p.CaseID,
		"title":             p.Title,
		"age":               int64(p.Age),
		"sex":               p.Sex,
		"technique_summary": p.TechniqueSummary,
		"outcome_rating":    int64(p.OutcomeRating),
		"blob_text":         p.BlobText,
	}
	if p.BMI != nil {
		m["bmi"] = *p.BMI
	}
	if p.Smoker != nil {
		m["smoker"] = *p.Smoker
	}
	if p.DefectLengthCM != nil {
		m["defect_length_cm"] = *p.DefectLengthCM
	}
	if p.DonorSite != nil {
		m["donor_site"] = *p.DonorSite
	}
	if p.Complications != "" {
		m["complications"] = p.Complications
	}
	if p.Notes != "" {
		m["notes"] = p.Notes
	}
	return m
}

// parsePayload rebuilds a Payload from a stored Qdrant value map.
// Keys missing from the map leave the corresponding optional field nil.
func parsePayload(m map[string]*qdrant.Value) Payload {
	var p Payload
	if v, ok := m["case_id"]; ok {
		p.CaseID = v.GetIntegerValue()
	}
	if v, ok := m["title"]; ok {
		p.Title = v.GetStringValue()
	}
	if v, ok := m["age"]; ok {
		p.Age = int(v.GetIntegerValue())
	}
	if v, ok := m["sex"]; ok {
		p.Sex = v.GetStringValue()
	}
	if v, ok := m["bmi"]; ok {
		bmi := numericValue(v)
		p.BMI = &bmi
	}
	if v, ok := m["smoker"]; ok {
		smoker := v.GetBoolValue()
		p.Smoker = &smoker
	}
	if v, ok := m["defect_length_cm"]; ok {
		length := numericValue(v)
		p.DefectLengthCM = &length
	}
	if v, ok := m["donor_site"]; ok {
		site := v.GetStringValue()
		p.DonorSite = &site
	}
	if v, ok := m["technique_summary"]; ok {
		p.TechniqueSummary = v.GetStringValue()
	}
	if v, ok := m["complications"]; ok {
		p.Complications = v.GetStringValue()
	}
	if v, ok := m["notes"]; ok {
		p.Notes = v.GetStringValue()
	}
	if v, ok := m["outcome_rating"]; ok {
		p.OutcomeRating = int(v.GetIntegerValue())
	}
	if v, ok := m["blob_text"]; ok {
		p.BlobText = v.GetStringValue()
	}
	return p
}

// numericValue reads a Qdrant value that may have been stored as either an
// integer or a double (whole floats round-trip as integers through some
// writers).
func numericValue(v *qdrant.Value) float64 {
	if _, ok := v.GetKind().(*qdrant.Value_IntegerValue); ok {
		return float64(v.GetIntegerValue())
	}
	return v.GetDoubleValue()
}
