package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/amanmcp/vaultengine/internal/cache"
	"github.com/amanmcp/vaultengine/internal/embed"
	vaerrors "github.com/amanmcp/vaultengine/internal/errors"
	"github.com/amanmcp/vaultengine/internal/store"
	"github.com/amanmcp/vaultengine/internal/telemetry"
)

// Engine is the search service (C8): it turns a query into an embedding,
// queries the vector store with an optional metadata/keyword predicate,
// optionally reranks the candidate set with a cross-encoder, and caches
// both the query embedding and the final result set.
type Engine struct {
	Store    *store.VaultStore
	Embedder *embed.Client
	Cache    *cache.Manager
	Reranker Reranker
	Expander Expander
	Config   Config
	Metrics  *telemetry.Recorder

	// QueryMetrics records per-query telemetry (term frequency, zero-result
	// queries, latency buckets) for search tuning. Optional: nil disables
	// recording.
	QueryMetrics *telemetry.QueryMetrics
}

// New constructs a search Engine. reranker and expander may be nil, in
// which case UseRerank/UseExpansion are treated as unavailable rather than
// erroring.
func New(vaultStore *store.VaultStore, embedder *embed.Client, cacheMgr *cache.Manager, reranker Reranker, expander Expander, metrics *telemetry.Recorder) *Engine {
	return &Engine{
		Store:    vaultStore,
		Embedder: embedder,
		Cache:    cacheMgr,
		Reranker: reranker,
		Expander: expander,
		Config:   DefaultConfig(),
		Metrics:  metrics,
	}
}

// Search implements the §4.8 algorithm. An empty result set is a valid,
// non-error outcome.
func (e *Engine) Search(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()
	topK := q.TopK
	if topK <= 0 {
		topK = e.Config.DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, e.Config.QueryDeadline)
	defer cancel()

	cacheKey := e.resultCacheKey(q, topK)
	if q.UseCache {
		if cached, ok := e.Cache.SearchResult.Peek(cacheKey); ok {
			if resp, ok := cached.(*Response); ok {
				e.count("search.cache_hit_search", 1)
				hit := *resp
				hit.CacheHit = true
				hit.Duration = time.Since(start)
				e.recordQuery(q, &hit, nil)
				return &hit, nil
			}
		}
	}

	queryText := q.Text
	if q.UseExpansion && e.Expander != nil {
		exp := e.Expander.Expand(q.Text)
		if exp.ExpandedText != "" {
			queryText = exp.ExpandedText
		}
	}

	vector, err := e.acquireQueryEmbedding(ctx, queryText, q.UseCache)
	if err != nil {
		return nil, err
	}

	topKCandidates := topK
	if q.UseRerank {
		topKCandidates = e.Config.RerankFanout
		if topKCandidates < topK {
			topKCandidates = topK
		}
	}

	var subPred *store.SubstringPredicate
	if q.KeywordFilter != "" {
		subPred = &store.SubstringPredicate{Field: "text", Substring: q.KeywordFilter}
	}

	candidates, err := e.Store.Query(ctx, vector, topKCandidates, topKCandidates, q.MetadataFilter, subPred)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		c, err := e.Store.GetChunk(ctx, cand.ID)
		if err != nil {
			continue
		}
		r := Result{
			Chunk:    c,
			Score:    float64(cand.Score),
			VecScore: float64(cand.Score),
		}
		if q.KeywordFilter != "" {
			r.KeywordDensity = keywordDensity(c.Text, q.KeywordFilter)
		}
		results = append(results, r)
	}

	degraded := false
	if q.UseRerank && e.Reranker != nil {
		reranked, err := e.rerank(ctx, queryText, results)
		switch {
		case err == nil:
			results = reranked
		case vaerrors.GetKind(err) == vaerrors.KindDeadlineExceeded || vaerrors.GetKind(err) == vaerrors.KindCancelled:
			degraded = true
			e.count("search.degraded_rerank_timeout", 1)
		default:
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Path != results[j].Chunk.Path {
			return results[i].Chunk.Path < results[j].Chunk.Path
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})
	if len(results) > topK {
		results = results[:topK]
	}

	resp := &Response{
		Results:  results,
		Degraded: degraded,
		Duration: time.Since(start),
	}

	if q.UseCache {
		cached := *resp
		e.Cache.SearchResult.Put(cacheKey, &cached)
	}

	e.recordQuery(q, resp, vector)
	return resp, nil
}

// recordQuery feeds a completed query into QueryMetrics, if configured. A
// query is classified Mixed when a keyword filter narrowed the vector
// candidates, Semantic otherwise; the embedding is sampled for the
// near-duplicate-query similarity check.
func (e *Engine) recordQuery(q Query, resp *Response, vector []float32) {
	if e.QueryMetrics == nil {
		return
	}
	queryType := telemetry.QueryTypeSemantic
	if q.KeywordFilter != "" {
		queryType = telemetry.QueryTypeMixed
	}
	e.QueryMetrics.Record(telemetry.QueryEvent{
		Query:       q.Text,
		QueryType:   queryType,
		ResultCount: len(resp.Results),
		Latency:     resp.Duration,
		Timestamp:   time.Now(),
	})
	if len(vector) > 0 {
		e.QueryMetrics.RecordQueryEmbedding(vector)
	}
}

// acquireQueryEmbedding resolves queryText's embedding via the query
// embedding cache (single-flight collapsed) or by calling the embedding
// client on a one-element batch, per §4.8 step 2.
func (e *Engine) acquireQueryEmbedding(ctx context.Context, queryText string, useCache bool) ([]float32, error) {
	compute := func() ([]float32, error) {
		vecs, err := e.Embedder.EmbedBatch(ctx, []string{queryText})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, vaerrors.Invariant("query embedding call returned wrong vector count", nil)
		}
		return vecs[0], nil
	}

	if !useCache {
		return compute()
	}
	return e.Cache.QueryEmbedding.Get(embeddingCacheKey(queryText), compute)
}

// rerank invokes the cross-encoder on (query, chunk text) pairs, blends
// sigmoid-normalized cross-encoder scores with vector scores per step 6,
// and returns a deadline/cancellation error the caller can recognize so it
// can fall back to the vector-only ranking instead of failing the query.
func (e *Engine) rerank(ctx context.Context, queryText string, results []Result) ([]Result, error) {
	if len(results) == 0 {
		return results, nil
	}
	if !e.Reranker.Available(ctx) {
		return results, nil
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Chunk.Text
	}

	scored, err := e.Reranker.Rerank(ctx, queryText, docs, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, deadlineOrCancelled(ctx)
		}
		return nil, vaerrors.TransientIo("cross-encoder rerank call", err)
	}

	byIndex := make(map[int]float64, len(scored))
	for _, s := range scored {
		byIndex[s.Index] = s.Score
	}

	out := make([]Result, len(results))
	copy(out, results)
	for i := range out {
		raw, ok := byIndex[i]
		if !ok {
			continue
		}
		ce := sigmoid(raw)
		out[i].CrossEncoderScore = ce
		out[i].Score = 0.3*out[i].VecScore + 0.7*ce
	}
	return out, nil
}

func deadlineOrCancelled(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return vaerrors.DeadlineExceededErr("search query deadline exceeded during rerank")
	}
	return vaerrors.CancelledErr("search query cancelled during rerank")
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// keywordDensity is occurrences of substr in text divided by text's word
// count (§4.8 step 7).
func keywordDensity(text, substr string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	occurrences := strings.Count(text, substr)
	return float64(occurrences) / float64(len(words))
}

func embeddingCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// resultCacheKey identifies a cached Response by every input that affects
// it. Expansion is deterministic given the raw query and its toggle, so
// the raw query text plus the toggle is what the key needs, not the
// expanded text itself.
func (e *Engine) resultCacheKey(q Query, topK int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s|k=%d|rerank=%t|expand=%t|kw=%s", q.Text, topK, q.UseRerank, q.UseExpansion, q.KeywordFilter)
	fmt.Fprintf(&b, "|eq=%v|in=%v|contains=%v", q.MetadataFilter.Eq, q.MetadataFilter.In, q.MetadataFilter.Contains)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) count(name string, delta int64) {
	if e.Metrics != nil {
		e.Metrics.Counter(name, delta, nil)
	}
}
