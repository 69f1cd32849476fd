package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amanmcp/vaultengine/internal/chunk"
	vaerrors "github.com/amanmcp/vaultengine/internal/errors"
)

const vaultSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	heading_path TEXT NOT NULL,
	section_type TEXT NOT NULL,
	path_year TEXT,
	path_month TEXT,
	path_category TEXT,
	file_created INTEGER,
	file_modified INTEGER,
	file_type TEXT,
	frontmatter_keys TEXT,
	frontmatter_tags TEXT,
	content_tags TEXT,
	chunk_created INTEGER,
	content_quality_score REAL
);
CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);

CREATE TABLE IF NOT EXISTS file_digests (
	path TEXT PRIMARY KEY,
	content_digest TEXT NOT NULL,
	mtime_unix INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL,
	dirty INTEGER NOT NULL DEFAULT 0
);
`

// VaultStore is the vector store client (C4): a HNSW vector index paired
// with a SQLite metadata store, offering predicate-filtered query,
// per-path upsert/delete, and file-digest tracking for the ingestion
// pipeline's change detection.
//
// Digest access follows §5's lock discipline: Upsert/DeleteByPath take the
// writer-exclusive path, while Query and reconciliation reads take the
// shared path.
type VaultStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	vec    *HNSWStore
	dbPath string
}

// Open creates or reopens a VaultStore rooted at stateDir, with metadata in
// <stateDir>/digests.db and vectors in <stateDir>/vectors.hnsw.
func Open(stateDir string, cfg VectorStoreConfig) (*VaultStore, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, vaerrors.TransientIo("create state dir", err)
	}

	dbPath := filepath.Join(stateDir, "digests.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, vaerrors.TransientIo("open metadata db", err)
	}
	if _, err := db.Exec(vaultSchema); err != nil {
		db.Close()
		return nil, vaerrors.TransientIo("init metadata schema", err)
	}

	vec, err := NewHNSWStore(cfg)
	if err != nil {
		db.Close()
		return nil, vaerrors.Invariant("create vector index", err)
	}

	vecPath := filepath.Join(stateDir, "vectors.hnsw")
	if _, statErr := os.Stat(vecPath); statErr == nil {
		if err := vec.Load(vecPath); err != nil {
			db.Close()
			return nil, vaerrors.TransientIo("load vector index", err)
		}
	}

	return &VaultStore{db: db, vec: vec, dbPath: vecPath}, nil
}

// Close flushes the vector index to disk and closes the metadata store.
func (s *VaultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vec.Save(s.dbPath); err != nil {
		return err
	}
	if err := s.vec.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// Upsert replaces all chunks for path atomically: old rows and vectors are
// removed, new rows are written in one SQLite transaction, then vectors are
// added to the HNSW graph. If the vector add fails after the metadata
// commit, the path's digest is marked dirty so the ingestion pipeline
// retries it rather than silently serving stale vectors for fresh metadata.
func (s *VaultStore) Upsert(ctx context.Context, path string, chunks []*chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return vaerrors.Invariant(fmt.Sprintf("chunk/vector count mismatch for %s: %d vs %d", path, len(chunks), len(vectors)), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var oldIDs []string
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE path = ?`, path)
	if err != nil {
		return vaerrors.TransientIo("query existing chunks", err)
	}
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr == nil {
			oldIDs = append(oldIDs, id)
		}
	}
	rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vaerrors.TransientIo("begin upsert transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return vaerrors.TransientIo("clear existing chunks", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		if err := insertChunk(ctx, tx, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return vaerrors.TransientIo("commit upsert transaction", err)
	}

	if len(oldIDs) > 0 {
		_ = s.vec.Delete(ctx, oldIDs)
	}
	if err := s.vec.Add(ctx, ids, vectors); err != nil {
		s.markDirty(ctx, path)
		return vaerrors.Invariant(fmt.Sprintf("vector add failed for %s, marked dirty", path), err)
	}

	return nil
}

func insertChunk(ctx context.Context, tx *sql.Tx, c *chunk.Chunk) error {
	headingPath, _ := json.Marshal(c.HeadingPath)
	fmKeys, _ := json.Marshal(c.FrontmatterKeys)
	fmTags, _ := json.Marshal(c.FrontmatterTags)
	contentTags, _ := json.Marshal(c.ContentTags)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (
			id, path, chunk_index, text, token_count, heading_path, section_type,
			path_year, path_month, path_category, file_created, file_modified,
			file_type, frontmatter_keys, frontmatter_tags, content_tags,
			chunk_created, content_quality_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Path, c.ChunkIndex, c.Text, c.TokenCount, string(headingPath), string(c.SectionType),
		c.PathYear, c.PathMonth, c.PathCategory, c.FileCreated.Unix(), c.FileModified.Unix(),
		c.FileType, string(fmKeys), string(fmTags), string(contentTags),
		c.ChunkCreated.Unix(), c.ContentQualityScore,
	)
	if err != nil {
		return vaerrors.TransientIo("insert chunk row", err)
	}
	return nil
}

// DeleteByPath removes every chunk and vector belonging to path.
func (s *VaultStore) DeleteByPath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE path = ?`, path)
	if err != nil {
		return vaerrors.TransientIo("query chunks for delete", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return vaerrors.TransientIo("delete chunk rows", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM file_digests WHERE path = ?`, path); err != nil {
		return vaerrors.TransientIo("delete digest row", err)
	}
	if len(ids) > 0 {
		if err := s.vec.Delete(ctx, ids); err != nil {
			return vaerrors.Invariant(fmt.Sprintf("vector delete failed for %s", path), err)
		}
	}
	return nil
}

// Query performs a top-k nearest-neighbor search, applying an optional
// metadata predicate and substring predicate over the candidate fan-out
// before truncating to k (§4.4/§4.8).
func (s *VaultStore) Query(ctx context.Context, vector []float32, topKCandidates, k int, metaPred Predicate, subPred *SubstringPredicate) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topKCandidates < k {
		topKCandidates = k
	}
	candidates, err := s.vec.Search(ctx, vector, topKCandidates)
	if err != nil {
		return nil, err
	}
	if metaPred.Empty() && subPred == nil {
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		return candidates, nil
	}

	out := make([]*VectorResult, 0, k)
	for _, cand := range candidates {
		meta, err := s.loadMeta(ctx, cand.ID)
		if err != nil {
			continue
		}
		if !metaPred.Eval(meta) {
			continue
		}
		if subPred != nil && !subPred.Eval(meta) {
			continue
		}
		out = append(out, cand)
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (s *VaultStore) loadMeta(ctx context.Context, id string) (map[string]any, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, chunk_index, text, token_count, heading_path, section_type,
			path_year, path_month, path_category, file_type,
			frontmatter_keys, frontmatter_tags, content_tags, content_quality_score
		FROM chunks WHERE id = ?`, id)

	var (
		path, text, sectionType, pathYear, pathMonth, pathCategory, fileType string
		headingPathJSON, fmKeysJSON, fmTagsJSON, contentTagsJSON            string
		chunkIndex, tokenCount                                              int
		quality                                                             float64
	)
	if err := row.Scan(&path, &chunkIndex, &text, &tokenCount, &headingPathJSON, &sectionType,
		&pathYear, &pathMonth, &pathCategory, &fileType,
		&fmKeysJSON, &fmTagsJSON, &contentTagsJSON, &quality); err != nil {
		return nil, err
	}

	var headingPath, fmKeys, fmTags, contentTags []string
	_ = json.Unmarshal([]byte(headingPathJSON), &headingPath)
	_ = json.Unmarshal([]byte(fmKeysJSON), &fmKeys)
	_ = json.Unmarshal([]byte(fmTagsJSON), &fmTags)
	_ = json.Unmarshal([]byte(contentTagsJSON), &contentTags)

	return map[string]any{
		"path":                  path,
		"chunk_index":           chunkIndex,
		"text":                  text,
		"token_count":           tokenCount,
		"heading_path":          headingPath,
		"section_type":          sectionType,
		"path_year":             pathYear,
		"path_month":            pathMonth,
		"path_category":         pathCategory,
		"file_type":             fileType,
		"frontmatter_keys":      toAnySlice(fmKeys),
		"frontmatter_tags":      toAnySlice(fmTags),
		"content_tags":          toAnySlice(contentTags),
		"content_quality_score": quality,
	}, nil
}

// GetChunk loads the full chunk record for id, as returned by a prior
// Query call's VectorResult.ID. Used by the search service to hydrate
// scored IDs back into displayable chunks (§4.8).
func (s *VaultStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT path, chunk_index, text, token_count, heading_path, section_type,
			path_year, path_month, path_category, file_created, file_modified, file_type,
			frontmatter_keys, frontmatter_tags, content_tags,
			chunk_created, content_quality_score
		FROM chunks WHERE id = ?`, id)

	var (
		path, text, sectionType, pathYear, pathMonth, pathCategory, fileType string
		headingPathJSON, fmKeysJSON, fmTagsJSON, contentTagsJSON            string
		chunkIndex, tokenCount                                              int
		fileCreatedUnix, fileModifiedUnix, chunkCreatedUnix                 int64
		quality                                                             float64
	)
	if err := row.Scan(&path, &chunkIndex, &text, &tokenCount, &headingPathJSON, &sectionType,
		&pathYear, &pathMonth, &pathCategory, &fileCreatedUnix, &fileModifiedUnix, &fileType,
		&fmKeysJSON, &fmTagsJSON, &contentTagsJSON, &chunkCreatedUnix, &quality); err != nil {
		return nil, vaerrors.TransientIo("load chunk row", err)
	}

	var headingPath, fmKeys, fmTags, contentTags []string
	_ = json.Unmarshal([]byte(headingPathJSON), &headingPath)
	_ = json.Unmarshal([]byte(fmKeysJSON), &fmKeys)
	_ = json.Unmarshal([]byte(fmTagsJSON), &fmTags)
	_ = json.Unmarshal([]byte(contentTagsJSON), &contentTags)

	return &chunk.Chunk{
		ID:                  id,
		Text:                text,
		TokenCount:          tokenCount,
		ChunkIndex:          chunkIndex,
		HeadingPath:         headingPath,
		SectionType:         chunk.SectionType(sectionType),
		Path:                path,
		PathYear:            pathYear,
		PathMonth:           pathMonth,
		PathCategory:        pathCategory,
		FileCreated:         time.Unix(fileCreatedUnix, 0),
		FileModified:        time.Unix(fileModifiedUnix, 0),
		FileType:            fileType,
		FrontmatterKeys:     fmKeys,
		FrontmatterTags:     fmTags,
		ContentTags:         contentTags,
		ChunkCreated:        time.Unix(chunkCreatedUnix, 0),
		ContentQualityScore: quality,
	}, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// CollectionStats reports chunk, document, and vector counts.
func (s *VaultStore) CollectionStats(ctx context.Context) (CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunkCount, docCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunkCount); err != nil {
		return CollectionStats{}, vaerrors.TransientIo("count chunks", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT path) FROM chunks`).Scan(&docCount); err != nil {
		return CollectionStats{}, vaerrors.TransientIo("count documents", err)
	}
	return CollectionStats{ChunkCount: chunkCount, DocumentCount: docCount, VectorCount: s.vec.Count()}, nil
}

// GetDigest returns the persisted digest for path, or (nil, nil) if none.
func (s *VaultStore) GetDigest(ctx context.Context, path string) (*FileDigestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT path, content_digest, mtime_unix, chunk_count, dirty FROM file_digests WHERE path = ?`, path)
	var rec FileDigestRecord
	var dirty int
	if err := row.Scan(&rec.Path, &rec.ContentDigest, &rec.MTimeUnix, &rec.ChunkCount, &dirty); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, vaerrors.TransientIo("load file digest", err)
	}
	rec.Dirty = dirty != 0
	return &rec, nil
}

// PutDigest writes or replaces path's digest record. Called only after a
// successful Upsert, never before — §4.6's "digest updated only after
// upsert ack" rule.
func (s *VaultStore) PutDigest(ctx context.Context, rec FileDigestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := 0
	if rec.Dirty {
		dirty = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_digests (path, content_digest, mtime_unix, chunk_count, dirty)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content_digest=excluded.content_digest,
			mtime_unix=excluded.mtime_unix, chunk_count=excluded.chunk_count, dirty=excluded.dirty`,
		rec.Path, rec.ContentDigest, rec.MTimeUnix, rec.ChunkCount, dirty)
	if err != nil {
		return vaerrors.TransientIo("write file digest", err)
	}
	return nil
}

func (s *VaultStore) markDirty(ctx context.Context, path string) {
	_, _ = s.db.ExecContext(ctx, `UPDATE file_digests SET dirty = 1 WHERE path = ?`, path)
}

// AllChunkIDs returns every chunk ID known to the metadata store, for
// consistency checking against the vector index.
func (s *VaultStore) AllChunkIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks`)
	if err != nil {
		return nil, vaerrors.TransientIo("list chunk ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// VectorIDs returns every ID present in the vector index.
func (s *VaultStore) VectorIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vec.AllIDs()
}

// DeleteVectorsByID removes vectors by ID without touching metadata rows,
// used by the consistency checker to clear orphaned vector entries.
func (s *VaultStore) DeleteVectorsByID(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vec.Delete(ctx, ids)
}

// AllDigests returns every persisted digest, for startup reconciliation.
func (s *VaultStore) AllDigests(ctx context.Context) ([]FileDigestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT path, content_digest, mtime_unix, chunk_count, dirty FROM file_digests`)
	if err != nil {
		return nil, vaerrors.TransientIo("list file digests", err)
	}
	defer rows.Close()

	var out []FileDigestRecord
	for rows.Next() {
		var rec FileDigestRecord
		var dirty int
		if err := rows.Scan(&rec.Path, &rec.ContentDigest, &rec.MTimeUnix, &rec.ChunkCount, &dirty); err != nil {
			continue
		}
		rec.Dirty = dirty != 0
		out = append(out, rec)
	}
	return out, nil
}
