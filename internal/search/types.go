// Package search implements the search service (C8): it turns a query into
// an embedding, fans it out to the vector store's predicate-filtered
// nearest-neighbor search, optionally reranks with a cross-encoder, and
// caches both the query embedding and the final result set.
package search

import (
	"time"

	"github.com/amanmcp/vaultengine/internal/chunk"
	"github.com/amanmcp/vaultengine/internal/store"
)

// Query is a single search request.
type Query struct {
	// Text is the raw query string.
	Text string

	// TopK is the number of results to return. Defaults to DefaultTopK.
	TopK int

	// MetadataFilter restricts results to chunks matching the predicate
	// (§4.4). A zero-value Predicate matches everything.
	MetadataFilter store.Predicate

	// KeywordFilter, if non-empty, requires the chunk text to contain this
	// literal, case-sensitive substring.
	KeywordFilter string

	// UseCache enables the query-embedding and search-result caches.
	UseCache bool

	// UseRerank enables cross-encoder reranking of the candidate set.
	UseRerank bool

	// UseExpansion enables the rule-based query expander before embedding.
	UseExpansion bool
}

// Result is one scored chunk returned from a search.
type Result struct {
	Chunk *chunk.Chunk

	// Score is the final normalized score in [0,1]: the raw vector
	// similarity when reranking is disabled, or the 0.3/0.7 blend of
	// vector similarity and sigmoid-normalized cross-encoder score
	// otherwise (§4.8 step 6).
	Score float64

	// VecScore is the raw vector similarity in [0,1], always populated.
	VecScore float64

	// CrossEncoderScore is the sigmoid-normalized cross-encoder score,
	// populated only when UseRerank was set and the reranker was
	// available.
	CrossEncoderScore float64

	// KeywordDensity is occurrences/chunk_word_count for the keyword
	// filter term, populated only when Query.KeywordFilter was set
	// (§4.8 step 7).
	KeywordDensity float64
}

// Response is the outcome of a single Search call.
type Response struct {
	Results []Result

	// CacheHit is true when the result came from the search-result cache
	// (step 1), short-circuiting the rest of the pipeline.
	CacheHit bool

	// Degraded is true when the query deadline was hit before reranking
	// finished; Results then holds the best vector-only ranking obtained
	// so far.
	Degraded bool

	Duration time.Duration
}

// Config holds the tunables named in §4.8.
type Config struct {
	// DefaultTopK is used when Query.TopK is unset.
	DefaultTopK int

	// RerankFanout is top_k_candidates fetched from the vector store when
	// reranking is enabled, before truncating to TopK.
	RerankFanout int

	// QueryDeadline bounds one Search call; on expiry, pending rerank work
	// is cancelled and the best vector-only result is returned (§5).
	QueryDeadline time.Duration
}

// DefaultConfig returns the §4.8/§5 documented defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTopK:   10,
		RerankFanout:  20,
		QueryDeadline: 2 * time.Second,
	}
}
