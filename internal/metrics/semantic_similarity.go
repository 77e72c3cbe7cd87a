package metrics

import (
	"context"
	"fmt"
	"math"

	"github.com/assay-dev/assay/internal/reason"
)

// Embedder is the narrow external collaborator semantic_similarity_to
// needs; the embeddings index itself is out of scope.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// semanticSimilarityMetric scores cosine similarity between the response
// text and a reference string over unit-weighted embeddings.
type semanticSimilarityMetric struct {
	embedder Embedder
}

func (semanticSimilarityMetric) Name() string { return "semantic_similarity_to" }

func (m semanticSimilarityMetric) Evaluate(ctx context.Context, _ TestCase, expected Expected, resp Response) (MetricResult, error) {
	if expected.Type != SemanticSimilarityTo {
		return neutral(), nil
	}
	if m.embedder == nil {
		return MetricResult{}, reason.New(reason.ConfigValidate, "semantic_similarity_to requires an Embedder but none is configured")
	}

	minScore := expected.MinScore
	if minScore == 0 {
		minScore = 0.8
	}

	got, err := m.embedder.Embed(ctx, resp.Text)
	if err != nil {
		return MetricResult{}, reason.New(reason.ProviderUnavailable, fmt.Sprintf("embed response: %v", err))
	}
	want, err := m.embedder.Embed(ctx, expected.Reference)
	if err != nil {
		return MetricResult{}, reason.New(reason.ProviderUnavailable, fmt.Sprintf("embed reference: %v", err))
	}

	score, err := CosineSimilarity(got, want)
	if err != nil {
		return MetricResult{}, reason.New(reason.ConfigValidate, err.Error())
	}

	return MetricResult{
		Score:  float64(score),
		Passed: float64(score) >= minScore,
		Details: map[string]any{
			"min_score": minScore,
			"reference": expected.Reference,
		},
	}, nil
}

// CosineSimilarity returns the cosine similarity of a and b. Dimension
// mismatch is an error; cosine(v,v) == 1 for any non-zero v.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("cosine similarity undefined for zero vector")
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// EncodeEmbedding little-endian-f32-encodes v for the embeddings BLOB
// column.
func EncodeEmbedding(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		bits := math.Float32bits(f)
		out[4*i+0] = byte(bits)
		out[4*i+1] = byte(bits >> 8)
		out[4*i+2] = byte(bits >> 16)
		out[4*i+3] = byte(bits >> 24)
	}
	return out
}

// DecodeEmbedding reverses EncodeEmbedding. The reader rejects blobs
// whose byte length is not a multiple of 4.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
