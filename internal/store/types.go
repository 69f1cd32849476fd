// Package store implements the vector store client (C4): a HNSW-backed
// vector index paired with a SQLite metadata store for predicate
// evaluation, file digests, and crash-tolerant per-path persistence.
package store

import (
	"context"
	"fmt"
)

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the underlying HNSW graph (§6).
type VectorStoreConfig struct {
	Dimensions     int
	Quantization   string // "f32", "f16", "i8" (default: "f16"); not read by HNSWStore, which stores float32
	Metric         string // "cos", "l2" (default: "cos")
	M              int    // default 16
	EfConstruction int    // default 200
	EfSearch       int    // default 100
}

// DefaultVectorStoreConfig returns the §6 documented defaults.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              16,
		EfConstruction: 200,
		EfSearch:       100,
	}
}

// VectorStore provides semantic nearest-neighbor search using HNSW.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// CollectionStats summarizes the vector store's contents.
type CollectionStats struct {
	ChunkCount    int
	DocumentCount int
	VectorCount   int
}

// FileDigestRecord is the persisted digest used to decide whether a file
// needs re-chunking/re-embedding on the next sync (§3).
type FileDigestRecord struct {
	Path          string
	ContentDigest string
	MTimeUnix     int64
	ChunkCount    int
	Dirty         bool // set when C4 failed to apply the last upsert for this path
}

// ErrDimensionMismatch indicates a vector dimension mismatch against the
// configured store dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
