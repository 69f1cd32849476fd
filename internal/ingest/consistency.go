package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/amanmcp/vaultengine/internal/store"
)

// InconsistencyType categorizes a detected cross-store issue.
type InconsistencyType int

const (
	// InconsistencyOrphanVector indicates a vector present in the HNSW graph
	// with no corresponding row in the metadata store.
	InconsistencyOrphanVector InconsistencyType = iota
	// InconsistencyMissingVector indicates a metadata row with no
	// corresponding vector in the HNSW graph.
	InconsistencyMissingVector
	// InconsistencyOrphanDigest indicates a file digest record for a path
	// no longer present in the vault.
	InconsistencyOrphanDigest
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingVector:
		return "missing_vector"
	case InconsistencyOrphanDigest:
		return "orphan_digest"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
	Path    string
	Details string
}

// CheckResult is the outcome of a Checker.Check call.
type CheckResult struct {
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Checker validates that the vector store's HNSW graph agrees with its
// SQLite chunk rows. File digest records are not examined, so Check never
// reports InconsistencyOrphanDigest.
type Checker struct {
	store *store.VaultStore
}

// NewChecker constructs a Checker over st.
func NewChecker(st *store.VaultStore) *Checker {
	return &Checker{store: st}
}

// Check compares chunk IDs known to the metadata store against the
// vector index's AllIDs, reporting orphans and missing entries in both
// directions.
func (c *Checker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency

	chunkIDs, err := c.store.AllChunkIDs(ctx)
	if err != nil {
		return nil, err
	}
	metaSet := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		metaSet[id] = true
	}

	vectorIDs := c.store.VectorIDs()
	vectorSet := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = true
	}

	for _, id := range vectorIDs {
		if !metaSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, ChunkID: id, Details: "vector present without a metadata row"})
		}
	}
	for _, id := range chunkIDs {
		if !vectorSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, ChunkID: id, Details: "metadata row without a vector"})
		}
	}

	return &CheckResult{Checked: len(metaSet), Inconsistencies: issues, Duration: time.Since(start)}, nil
}

// Repair deletes orphaned vectors (best-effort) and logs a warning for
// missing vectors, which require a rewrite through the pipeline rather
// than a direct fix here.
func (c *Checker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphans []string
	var missing int

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanVector:
			orphans = append(orphans, issue.ChunkID)
		case InconsistencyMissingVector:
			missing++
		}
	}

	if len(orphans) > 0 {
		if err := c.store.DeleteVectorsByID(ctx, orphans); err != nil {
			slog.Warn("failed to delete orphan vectors", slog.Int("count", len(orphans)), slog.String("error", err.Error()))
		} else {
			slog.Info("deleted orphan vectors", slog.Int("count", len(orphans)))
		}
	}

	if missing > 0 {
		slog.Warn("vector store has chunks missing their vector; run a full sync to repair", slog.Int("missing_count", missing))
	}

	return nil
}
