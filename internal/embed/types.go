// Package embed implements the embedding client (C3): batching text into
// provider-sized requests and enforcing the order/length invariant between
// input texts and output vectors.
package embed

import (
	"context"
	"math"
)

// Batching defaults (§4.3).
const (
	DefaultDimensions       = 384
	DefaultBatchTokens      = 8192
	DefaultBatchItems       = 200
	DefaultMaxInflight      = 4
	DefaultTokensPerChar    = 4
)

// Embedder is the opaque embedding provider (§6): something that turns text
// into fixed-dimension vectors. Implementations may be local (StaticEmbedder)
// or remote (an HTTP-backed provider); the client treats both identically.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector normalizes a vector to unit length, returning it unchanged
// if it is already the zero vector.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
