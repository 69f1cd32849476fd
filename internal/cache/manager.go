package cache

import "time"

const (
	DefaultQueryEmbeddingTTL      = 24 * time.Hour
	DefaultQueryEmbeddingCapacity = 10000

	DefaultSearchResultTTL      = 30 * time.Minute
	DefaultSearchResultCapacity = 2000
)

// Manager bundles the three caches named in §4.5: query embeddings, search
// results, and file digests. File-digest entries never expire (TTL 0) and
// are unbounded by default, since C6 needs one entry per vault file for
// the lifetime of the process.
type Manager struct {
	QueryEmbedding *Cache[[]float32]
	SearchResult   *Cache[any]
	FileDigest     *Cache[any]
}

// Config overrides the default TTL/capacity for each of the three caches.
type Config struct {
	QueryEmbeddingTTL      time.Duration
	QueryEmbeddingCapacity int
	SearchResultTTL        time.Duration
	SearchResultCapacity   int
	FileDigestCapacity     int // 0 means unbounded
}

// DefaultConfig returns the §4.5 documented defaults.
func DefaultConfig() Config {
	return Config{
		QueryEmbeddingTTL:      DefaultQueryEmbeddingTTL,
		QueryEmbeddingCapacity: DefaultQueryEmbeddingCapacity,
		SearchResultTTL:        DefaultSearchResultTTL,
		SearchResultCapacity:   DefaultSearchResultCapacity,
		FileDigestCapacity:     0,
	}
}

// NewManager constructs the three caches per cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		QueryEmbedding: New[[]float32](cfg.QueryEmbeddingTTL, cfg.QueryEmbeddingCapacity),
		SearchResult:   New[any](cfg.SearchResultTTL, cfg.SearchResultCapacity),
		FileDigest:     New[any](0, cfg.FileDigestCapacity),
	}
}

// AllStats returns a snapshot of each cache's counters, keyed by name, for
// C9 metrics propagation.
func (m *Manager) AllStats() map[string]Stats {
	return map[string]Stats{
		"query_embedding": m.QueryEmbedding.Stats(),
		"search_result":   m.SearchResult.Stats(),
		"file_digest":     m.FileDigest.Stats(),
	}
}
