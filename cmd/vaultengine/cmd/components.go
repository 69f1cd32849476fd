package cmd

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amanmcp/vaultengine/internal/cache"
	"github.com/amanmcp/vaultengine/internal/chunk"
	"github.com/amanmcp/vaultengine/internal/config"
	"github.com/amanmcp/vaultengine/internal/embed"
	"github.com/amanmcp/vaultengine/internal/ingest"
	"github.com/amanmcp/vaultengine/internal/search"
	"github.com/amanmcp/vaultengine/internal/store"
	"github.com/amanmcp/vaultengine/internal/telemetry"
	"github.com/amanmcp/vaultengine/internal/vault"
)

// app bundles every constructed component so commands can wire the subset
// they need without repeating the construction order.
type app struct {
	Config       *config.Config
	StateDir     string
	Metrics      *telemetry.Recorder
	Vault        *vault.Client
	Store        *store.VaultStore
	Embedder     *embed.Client
	Cache        *cache.Manager
	Pipeline     *ingest.Pipeline
	Search       *search.Engine
	QueryMetrics *telemetry.QueryMetrics
	MetricsStore *telemetry.SQLiteMetricsStore

	metricsDB *sql.DB
}

// stateDirFor returns <root>/.vaultengine, the directory config, the
// metadata db, and the HNSW index all live under.
func stateDirFor(root string) string {
	return filepath.Join(root, ".vaultengine")
}

// newApp loads config from stateDir (falling back to Default() plus
// root as vault.path) and constructs every C1-C9 component against it.
func newApp(root string) (*app, error) {
	stateDir := stateDirFor(root)

	cfg, err := config.Load(stateDir)
	if err != nil {
		cfg = config.Default()
		cfg.Vault.Path = root
		if verr := cfg.Validate(); verr != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if cfg.Vault.Path == "" {
		cfg.Vault.Path = root
	}

	metrics := telemetry.NewRecorder(1000)

	vaultClient := vault.New(cfg.Vault.Path, cfg.Vault.Extensions, metrics)

	storeCfg := store.DefaultVectorStoreConfig(cfg.Embedding.Dim)
	vaultStore, err := store.Open(stateDir, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	provider := embed.NewStaticEmbedder()
	embedder := embed.NewClient(provider, metrics)
	embedder.BatchTokens = cfg.Embedding.BatchTokens
	embedder.BatchItems = cfg.Embedding.BatchItems
	embedder.MaxInflight = cfg.Embedding.MaxInflight

	cacheMgr := cache.NewManager(cache.Config{
		QueryEmbeddingTTL:      time.Duration(cfg.Cache.QEmbedTTLSeconds) * time.Second,
		QueryEmbeddingCapacity: cfg.Cache.QEmbedCapacity,
		SearchResultTTL:        time.Duration(cfg.Cache.ResultTTLSeconds) * time.Second,
		SearchResultCapacity:   cfg.Cache.ResultCapacity,
	})

	processor := chunk.NewProcessor()

	pipeline := ingest.New(vaultClient, processor, embedder, vaultStore, cacheMgr, metrics)

	searchEngine := search.New(vaultStore, embedder, cacheMgr, &search.NoOpReranker{}, search.NewRuleExpander(), metrics)
	searchEngine.Config.RerankFanout = cfg.Search.RerankFanout
	searchEngine.Config.QueryDeadline = time.Duration(cfg.Search.TimeoutMs) * time.Millisecond

	metricsDB, metricsStore, queryMetrics, err := newQueryMetricsStore(stateDir)
	if err != nil {
		return nil, fmt.Errorf("open metrics store: %w", err)
	}
	searchEngine.QueryMetrics = queryMetrics

	return &app{
		Config:       cfg,
		StateDir:     stateDir,
		Metrics:      metrics,
		Vault:        vaultClient,
		Store:        vaultStore,
		Embedder:     embedder,
		Cache:        cacheMgr,
		Pipeline:     pipeline,
		Search:       searchEngine,
		QueryMetrics: queryMetrics,
		MetricsStore: metricsStore,
		metricsDB:    metricsDB,
	}, nil
}

// newQueryMetricsStore opens <stateDir>/telemetry.db on the mattn/go-sqlite3
// driver (kept distinct from the modernc.org/sqlite-backed digests.db so
// both drivers in go.mod are exercised against real files) and builds the
// query-analytics store and in-process collector on top of it.
func newQueryMetricsStore(stateDir string) (*sql.DB, *telemetry.SQLiteMetricsStore, *telemetry.QueryMetrics, error) {
	dbPath := filepath.Join(stateDir, "telemetry.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open telemetry db: %w", err)
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	queryMetrics := telemetry.NewQueryMetrics(metricsStore)
	return db, metricsStore, queryMetrics, nil
}

func (a *app) Close() error {
	if a.QueryMetrics != nil {
		_ = a.QueryMetrics.Close()
	}
	if a.metricsDB != nil {
		_ = a.metricsDB.Close()
	}
	return a.Store.Close()
}
