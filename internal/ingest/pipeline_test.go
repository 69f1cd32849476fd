package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanmcp/vaultengine/internal/cache"
	"github.com/amanmcp/vaultengine/internal/chunk"
	"github.com/amanmcp/vaultengine/internal/embed"
	"github.com/amanmcp/vaultengine/internal/store"
	"github.com/amanmcp/vaultengine/internal/vault"
	"github.com/amanmcp/vaultengine/internal/watcher"
)

// fakeVault is an in-memory stand-in for the vault client (C1) so pipeline
// tests don't touch the filesystem.
type fakeVault struct {
	mu    sync.Mutex
	docs  map[string]*vault.Document
	order []string
}

func newFakeVault() *fakeVault {
	return &fakeVault{docs: make(map[string]*vault.Document)}
}

func (f *fakeVault) put(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[path]; !ok {
		f.order = append(f.order, path)
	}
	f.docs[path] = &vault.Document{
		Path:    path,
		Body:    []byte(body),
		ModTime: time.Now(),
		Size:    int64(len(body)),
		Digest:  fmt.Sprintf("digest-%s", body),
	}
}

func (f *fakeVault) remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, path)
	for i, p := range f.order {
		if p == path {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakeVault) Enumerate(ctx context.Context) ([]vault.DocumentMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]vault.DocumentMeta, 0, len(f.order))
	for _, p := range f.order {
		d := f.docs[p]
		out = append(out, vault.DocumentMeta{Path: p, Size: d.Size, ModTime: d.ModTime})
	}
	return out, nil
}

func (f *fakeVault) Read(ctx context.Context, relPath string) (*vault.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[relPath]
	if !ok {
		return nil, fmt.Errorf("not found: %s", relPath)
	}
	return d, nil
}

type fakeProvider struct{}

func (fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i) + 0.1, 0, 0, 0}
	}
	return out, nil
}
func (fakeProvider) Dimensions() int          { return 4 }
func (fakeProvider) ModelName() string        { return "fake" }
func (fakeProvider) Available(context.Context) bool { return true }
func (fakeProvider) Close() error             { return nil }

func newTestPipeline(t *testing.T, v Vault) *Pipeline {
	t.Helper()
	st, err := store.Open(t.TempDir(), store.DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	client := embed.NewClient(fakeProvider{}, nil)
	return New(v, chunk.NewProcessor(), client, st, cache.NewManager(cache.DefaultConfig()), nil)
}

func TestPipeline_FullSync_RewritesNewFiles(t *testing.T) {
	fv := newFakeVault()
	fv.put("a.md", "# Title\n\nSome content about testing pipelines.")
	fv.put("b.md", "# Other\n\nMore content here for the second file.")

	p := newTestPipeline(t, fv)
	result, err := p.FullSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Rewritten)
	assert.Equal(t, 0, result.Skipped)

	stats, err := p.Store.CollectionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
}

func TestPipeline_FullSync_SkipsUnchangedDigest(t *testing.T) {
	fv := newFakeVault()
	fv.put("a.md", "# Title\n\nSome content about testing pipelines.")

	p := newTestPipeline(t, fv)
	ctx := context.Background()

	_, err := p.FullSync(ctx)
	require.NoError(t, err)

	result, err := p.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Rewritten)
}

func TestPipeline_FullSync_RewritesOnDigestChange(t *testing.T) {
	fv := newFakeVault()
	fv.put("a.md", "# Title\n\noriginal content for this document here.")

	p := newTestPipeline(t, fv)
	ctx := context.Background()

	_, err := p.FullSync(ctx)
	require.NoError(t, err)

	fv.put("a.md", "# Title\n\ncompletely different content after an edit.")
	result, err := p.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rewritten)
}

func TestPipeline_FullSync_DeletesPathsNoLongerEnumerated(t *testing.T) {
	fv := newFakeVault()
	fv.put("a.md", "# Title\n\nsome content that will be deleted soon.")

	p := newTestPipeline(t, fv)
	ctx := context.Background()

	_, err := p.FullSync(ctx)
	require.NoError(t, err)

	fv.remove("a.md")
	result, err := p.FullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	stats, err := p.Store.CollectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentCount)
}

func TestPipeline_Incremental_CreateEventRewritesPath(t *testing.T) {
	fv := newFakeVault()
	fv.put("a.md", "# Title\n\nfresh content for an incremental create event.")

	p := newTestPipeline(t, fv)
	ctx := context.Background()

	err := p.Incremental(ctx, watcher.FileEvent{Path: "a.md", Operation: watcher.OpCreate})
	require.NoError(t, err)

	stats, err := p.Store.CollectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestPipeline_Incremental_DeleteEventRemovesPath(t *testing.T) {
	fv := newFakeVault()
	fv.put("a.md", "# Title\n\nsome content for a delete test case.")

	p := newTestPipeline(t, fv)
	ctx := context.Background()

	require.NoError(t, p.Incremental(ctx, watcher.FileEvent{Path: "a.md", Operation: watcher.OpCreate}))
	require.NoError(t, p.Incremental(ctx, watcher.FileEvent{Path: "a.md", Operation: watcher.OpDelete}))

	stats, err := p.Store.CollectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentCount)
}

func TestChecker_Check_FindsNoIssuesOnCleanStore(t *testing.T) {
	fv := newFakeVault()
	fv.put("a.md", "# Title\n\nconsistent content for the checker test.")

	p := newTestPipeline(t, fv)
	ctx := context.Background()
	_, err := p.FullSync(ctx)
	require.NoError(t, err)

	checker := NewChecker(p.Store)
	result, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Inconsistencies)
}

