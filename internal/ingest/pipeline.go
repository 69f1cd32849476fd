// Package ingest implements the ingestion pipeline (C6): full-sync and
// incremental entry points that turn vault documents into chunked,
// embedded, upserted vector store state, plus the cross-process lock that
// keeps two engine instances from ingesting the same vault concurrently.
package ingest

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/amanmcp/vaultengine/internal/cache"
	"github.com/amanmcp/vaultengine/internal/chunk"
	"github.com/amanmcp/vaultengine/internal/embed"
	vaerrors "github.com/amanmcp/vaultengine/internal/errors"
	"github.com/amanmcp/vaultengine/internal/store"
	"github.com/amanmcp/vaultengine/internal/telemetry"
	"github.com/amanmcp/vaultengine/internal/vault"
	"github.com/amanmcp/vaultengine/internal/watcher"
)

// DefaultMaxConcurrency bounds how many paths may be rewritten at once
// during a full sync.
const DefaultMaxConcurrency = 8

// Vault is the subset of the vault client (C1) the pipeline depends on.
type Vault interface {
	Enumerate(ctx context.Context) ([]vault.DocumentMeta, error)
	Read(ctx context.Context, relPath string) (*vault.Document, error)
}

// Pipeline wires C1 (vault reads), C2 (chunking), C3 (embedding), and C4
// (vector store) into full-sync and incremental ingestion operations.
type Pipeline struct {
	Vault          Vault
	Processor      *chunk.Processor
	Embedder       *embed.Client
	Store          *store.VaultStore
	Cache          *cache.Manager
	Metrics        *telemetry.Recorder
	MaxConcurrency int

	pathLocks sync.Map // path -> *sync.Mutex, serializes rewrites of the same path
}

// New constructs a Pipeline with the default concurrency bound.
func New(v Vault, proc *chunk.Processor, embedder *embed.Client, st *store.VaultStore, cm *cache.Manager, metrics *telemetry.Recorder) *Pipeline {
	return &Pipeline{
		Vault:          v,
		Processor:      proc,
		Embedder:       embedder,
		Store:          st,
		Cache:          cm,
		Metrics:        metrics,
		MaxConcurrency: DefaultMaxConcurrency,
	}
}

// SyncResult tallies the outcome of a full sync.
type SyncResult struct {
	Scanned   int
	Skipped   int
	Rewritten int
	Deleted   int
	Failed    int
}

// FullSync enumerates the vault, comparing each file's current digest
// against its File Digest Record: an unchanged digest with a nonzero
// chunk count and no Dirty mark is skipped, everything else is rewritten. Paths present in
// the store's digests but absent from this enumeration are deleted.
// Rewrites run concurrently up to MaxConcurrency; per-path order is
// irrelevant across paths but serialized within one path via pathLock.
func (p *Pipeline) FullSync(ctx context.Context) (*SyncResult, error) {
	docs, err := p.Vault.Enumerate(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(docs))
	result := &SyncResult{Scanned: len(docs)}
	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxConcurrency())

	for _, doc := range docs {
		doc := doc
		seen[doc.Path] = true

		group.Go(func() error {
			existing, err := p.Store.GetDigest(gctx, doc.Path)
			if err != nil {
				return err
			}

			current, readErr := p.Vault.Read(gctx, doc.Path)
			if readErr != nil {
				mu.Lock()
				result.Failed++
				mu.Unlock()
				p.emit("ingest.read_failed", 1)
				return nil
			}

			if existing != nil && existing.ContentDigest == current.Digest && existing.ChunkCount > 0 && !existing.Dirty {
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}

			if err := p.rewrite(gctx, doc.Path, current); err != nil {
				mu.Lock()
				result.Failed++
				mu.Unlock()
				p.emit("ingest.rewrite_failed", 1)
				return nil
			}
			mu.Lock()
			result.Rewritten++
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return result, err
	}

	stale, err := p.Store.AllDigests(ctx)
	if err != nil {
		return result, err
	}
	for _, rec := range stale {
		if seen[rec.Path] {
			continue
		}
		if err := p.deleteOnly(ctx, rec.Path); err != nil {
			result.Failed++
			continue
		}
		result.Deleted++
	}

	p.emit("ingest.full_sync_skipped", int64(result.Skipped))
	p.emit("ingest.full_sync_rewritten", int64(result.Rewritten))
	p.emit("ingest.full_sync_deleted", int64(result.Deleted))

	return result, nil
}

// Incremental applies one watcher event: a create/modify is a rewrite, a
// delete is delete-only. Rename is modeled as delete-then-create by the
// monitor (§4.7), so it is never observed here directly.
func (p *Pipeline) Incremental(ctx context.Context, event watcher.FileEvent) error {
	lock := p.lockFor(event.Path)
	lock.Lock()
	defer lock.Unlock()

	switch event.Operation {
	case watcher.OpDelete:
		return p.deleteOnly(ctx, event.Path)
	case watcher.OpCreate, watcher.OpModify:
		doc, err := p.Vault.Read(ctx, event.Path)
		if err != nil {
			if vaerrors.GetKind(err) == vaerrors.KindNotFound {
				return p.deleteOnly(ctx, event.Path)
			}
			return err
		}
		return p.rewrite(ctx, event.Path, doc)
	default:
		return nil
	}
}

// rewrite deletes all existing chunks for path, re-chunks, re-embeds, and
// upserts the fresh set, updating the digest record only after the upsert
// acknowledgment (§4.6).
func (p *Pipeline) rewrite(ctx context.Context, path string, doc *vault.Document) error {
	chunks := p.Processor.Process(chunk.DocumentInput{
		Path:         doc.Path,
		Body:         doc.Body,
		Frontmatter:  doc.Frontmatter,
		ModTime:      doc.ModTime,
		Size:         doc.Size,
		PathYear:     doc.PathYear,
		PathMonth:    doc.PathMonth,
		PathCategory: doc.PathCategory,
		ContentTags:  doc.Stats.ContentTags,
	})

	if len(chunks) == 0 {
		if err := p.Store.DeleteByPath(ctx, path); err != nil {
			return err
		}
		return p.Store.PutDigest(ctx, store.FileDigestRecord{
			Path:          path,
			ContentDigest: doc.Digest,
			MTimeUnix:     doc.ModTime.Unix(),
			ChunkCount:    0,
		})
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	if err := p.Store.Upsert(ctx, path, chunks, vectors); err != nil {
		return err
	}

	if p.Cache != nil {
		p.Cache.FileDigest.Invalidate(path)
	}

	return p.Store.PutDigest(ctx, store.FileDigestRecord{
		Path:          path,
		ContentDigest: doc.Digest,
		MTimeUnix:     doc.ModTime.Unix(),
		ChunkCount:    len(chunks),
	})
}

func (p *Pipeline) deleteOnly(ctx context.Context, path string) error {
	if err := p.Store.DeleteByPath(ctx, path); err != nil {
		return err
	}
	if p.Cache != nil {
		p.Cache.FileDigest.Invalidate(path)
	}
	return nil
}

func (p *Pipeline) lockFor(path string) *sync.Mutex {
	actual, _ := p.pathLocks.LoadOrStore(path, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (p *Pipeline) maxConcurrency() int {
	if p.MaxConcurrency <= 0 {
		return DefaultMaxConcurrency
	}
	return p.MaxConcurrency
}

func (p *Pipeline) emit(name string, delta int64) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.Counter(name, delta, nil)
}
