// Package config loads and validates the engine's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config mirrors the vault/chunking/embedding/ingest/monitor/search/cache
// tables of <state_dir>/config.toml.
type Config struct {
	Vault     VaultConfig     `toml:"vault"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Ingest    IngestConfig    `toml:"ingest"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Search    SearchConfig    `toml:"search"`
	Cache     CacheConfig     `toml:"cache"`
}

// VaultConfig configures which files are ingested.
type VaultConfig struct {
	Path       string   `toml:"path"`
	Extensions []string `toml:"extensions"`
}

// ChunkingConfig configures the content processor (C2).
type ChunkingConfig struct {
	MaxTokens     int `toml:"max_tokens"`
	TargetTokens  int `toml:"target_tokens"`
	OverlapTokens int `toml:"overlap_tokens"`
}

// EmbeddingConfig configures the embedding client (C3).
type EmbeddingConfig struct {
	Dim          int `toml:"dim"`
	BatchTokens  int `toml:"batch_tokens"`
	BatchItems   int `toml:"batch_items"`
	MaxInflight  int `toml:"max_inflight"`
}

// IngestConfig configures the ingestion pipeline (C6).
type IngestConfig struct {
	Concurrency int `toml:"concurrency"`
}

// MonitorConfig configures the vault monitor (C7).
type MonitorConfig struct {
	DebounceMs     int `toml:"debounce_ms"`
	QueueCapacity  int `toml:"queue_capacity"`
}

// SearchConfig configures the search service (C8).
type SearchConfig struct {
	RerankFanout int `toml:"rerank_fanout"`
	TimeoutMs    int `toml:"timeout_ms"`
}

// CacheConfig configures the cache manager (C5).
type CacheConfig struct {
	QEmbedTTLSeconds  int `toml:"qembed_ttl_s"`
	QEmbedCapacity    int `toml:"qembed_capacity"`
	ResultTTLSeconds  int `toml:"result_ttl_s"`
	ResultCapacity    int `toml:"result_capacity"`
}

// Default returns a Config populated with §6's documented defaults.
// vault.path has no default; callers must set it explicitly or provide it
// via the config file before Validate succeeds.
func Default() *Config {
	return &Config{
		Vault: VaultConfig{
			Extensions: []string{".md"},
		},
		Chunking: ChunkingConfig{
			MaxTokens:     512,
			TargetTokens:  340,
			OverlapTokens: 64,
		},
		Embedding: EmbeddingConfig{
			Dim:         384,
			BatchTokens: 8192,
			BatchItems:  200,
			MaxInflight: 4,
		},
		Ingest: IngestConfig{
			Concurrency: 8,
		},
		Monitor: MonitorConfig{
			DebounceMs:    500,
			QueueCapacity: 1024,
		},
		Search: SearchConfig{
			RerankFanout: 20,
			TimeoutMs:    2000,
		},
		Cache: CacheConfig{
			QEmbedTTLSeconds: 86400,
			QEmbedCapacity:   10000,
			ResultTTLSeconds: 1800,
			ResultCapacity:   2000,
		},
	}
}

// Load reads <stateDir>/config.toml, merging its values over Default(), then
// applies VAULTENGINE_* environment overrides and validates the result.
func Load(stateDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(stateDir, "config.toml")
	if data, err := os.ReadFile(path); err == nil {
		var parsed Config
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		cfg.mergeWith(&parsed)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Vault.Path != "" {
		c.Vault.Path = other.Vault.Path
	}
	if len(other.Vault.Extensions) > 0 {
		c.Vault.Extensions = other.Vault.Extensions
	}

	if other.Chunking.MaxTokens != 0 {
		c.Chunking.MaxTokens = other.Chunking.MaxTokens
	}
	if other.Chunking.TargetTokens != 0 {
		c.Chunking.TargetTokens = other.Chunking.TargetTokens
	}
	if other.Chunking.OverlapTokens != 0 {
		c.Chunking.OverlapTokens = other.Chunking.OverlapTokens
	}

	if other.Embedding.Dim != 0 {
		c.Embedding.Dim = other.Embedding.Dim
	}
	if other.Embedding.BatchTokens != 0 {
		c.Embedding.BatchTokens = other.Embedding.BatchTokens
	}
	if other.Embedding.BatchItems != 0 {
		c.Embedding.BatchItems = other.Embedding.BatchItems
	}
	if other.Embedding.MaxInflight != 0 {
		c.Embedding.MaxInflight = other.Embedding.MaxInflight
	}

	if other.Ingest.Concurrency != 0 {
		c.Ingest.Concurrency = other.Ingest.Concurrency
	}

	if other.Monitor.DebounceMs != 0 {
		c.Monitor.DebounceMs = other.Monitor.DebounceMs
	}
	if other.Monitor.QueueCapacity != 0 {
		c.Monitor.QueueCapacity = other.Monitor.QueueCapacity
	}

	if other.Search.RerankFanout != 0 {
		c.Search.RerankFanout = other.Search.RerankFanout
	}
	if other.Search.TimeoutMs != 0 {
		c.Search.TimeoutMs = other.Search.TimeoutMs
	}

	if other.Cache.QEmbedTTLSeconds != 0 {
		c.Cache.QEmbedTTLSeconds = other.Cache.QEmbedTTLSeconds
	}
	if other.Cache.QEmbedCapacity != 0 {
		c.Cache.QEmbedCapacity = other.Cache.QEmbedCapacity
	}
	if other.Cache.ResultTTLSeconds != 0 {
		c.Cache.ResultTTLSeconds = other.Cache.ResultTTLSeconds
	}
	if other.Cache.ResultCapacity != 0 {
		c.Cache.ResultCapacity = other.Cache.ResultCapacity
	}
}

// applyEnvOverrides applies VAULTENGINE_* environment variable overrides,
// highest precedence after the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VAULTENGINE_VAULT_PATH"); v != "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("VAULTENGINE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.MaxTokens = n
		}
	}
	if v := os.Getenv("VAULTENGINE_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Monitor.DebounceMs = n
		}
	}
	if v := os.Getenv("VAULTENGINE_INGEST_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Concurrency = n
		}
	}
}

// Validate rejects impossible tunable combinations before the engine starts.
func (c *Config) Validate() error {
	if c.Vault.Path == "" {
		return fmt.Errorf("vault.path is required")
	}
	if len(c.Vault.Extensions) == 0 {
		return fmt.Errorf("vault.extensions must not be empty")
	}
	for _, ext := range c.Vault.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("vault.extensions entries must start with '.', got %q", ext)
		}
	}

	if c.Chunking.OverlapTokens >= c.Chunking.TargetTokens {
		return fmt.Errorf("chunking.overlap_tokens (%d) must be less than chunking.target_tokens (%d)",
			c.Chunking.OverlapTokens, c.Chunking.TargetTokens)
	}
	if c.Chunking.TargetTokens > c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.target_tokens (%d) must not exceed chunking.max_tokens (%d)",
			c.Chunking.TargetTokens, c.Chunking.MaxTokens)
	}
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be positive, got %d", c.Chunking.MaxTokens)
	}

	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding.dim must be positive, got %d", c.Embedding.Dim)
	}
	if c.Embedding.MaxInflight <= 0 {
		return fmt.Errorf("embedding.max_inflight must be positive, got %d", c.Embedding.MaxInflight)
	}

	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be positive, got %d", c.Ingest.Concurrency)
	}

	if c.Monitor.DebounceMs < 0 {
		return fmt.Errorf("monitor.debounce_ms must be non-negative, got %d", c.Monitor.DebounceMs)
	}
	if c.Monitor.QueueCapacity <= 0 {
		return fmt.Errorf("monitor.queue_capacity must be positive, got %d", c.Monitor.QueueCapacity)
	}

	if c.Search.RerankFanout <= 0 {
		return fmt.Errorf("search.rerank_fanout must be positive, got %d", c.Search.RerankFanout)
	}
	if c.Search.TimeoutMs <= 0 {
		return fmt.Errorf("search.timeout_ms must be positive, got %d", c.Search.TimeoutMs)
	}

	return nil
}

// Write serializes c to <stateDir>/config.toml, creating stateDir if needed.
func (c *Config) Write(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(stateDir, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory or an
// existing config.toml, falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	dir := absDir
	for {
		if dirExists(filepath.Join(dir, ".git")) || fileExists(filepath.Join(dir, "config.toml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
