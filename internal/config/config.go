// Package config provides configuration loading and structs for the simstore server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool               `yaml:"debug"`
	Server      ServerConfig       `yaml:"server"`
	Storage     StorageConfig      `yaml:"storage"`
	Embedding   EmbeddingConfig    `yaml:"embedding"`
	Retrieval   RetrievalConfig    `yaml:"retrieval"`
	Collections []CollectionConfig `yaml:"collections"`
	Follow      FollowConfig       `yaml:"follow"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the record database path and the directory for index snapshots and side tables.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	SnapshotDir  string `yaml:"snapshot_dir"`
}

// EmbeddingConfig selects and configures the default embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "openai", "hashing", "mock".
	Provider   string        `yaml:"provider"`
	ModelPath  string        `yaml:"model_path"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	OpenAI     OpenAIConfig  `yaml:"openai"`
	Hashing    HashingConfig `yaml:"hashing"`
}

// OpenAIConfig holds settings for an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	MaxBatch    int    `yaml:"max_batch"`
	Concurrency int    `yaml:"concurrency"`
}

// HashingConfig holds settings for the lexical hashing embedder.
type HashingConfig struct {
	Dimensions int `yaml:"dimensions"`
}

// RetrievalConfig holds search and mutation tuning shared by all collections.
type RetrievalConfig struct {
	OverfetchMultiplier int    `yaml:"overfetch_multiplier"`
	OverfetchCap        int    `yaml:"overfetch_cap"`
	DefaultK            int    `yaml:"default_k"`
	MaxK                int    `yaml:"max_k"`
	SkipUnchanged       bool   `yaml:"skip_unchanged"`
	IndexType           string `yaml:"index_type"`
}

// CollectionConfig declares one named collection.
type CollectionConfig struct {
	Name string `yaml:"name"`
	// Kind is one of "cases", "guides", "keywords", "case_text".
	Kind string `yaml:"kind"`
	// Backend is "sqlite" (table in the shared database) or "file" (JSON side table in snapshot_dir).
	Backend   string `yaml:"backend"`
	IndexType string `yaml:"index_type"`
	// Embedder overrides embedding.provider for this collection.
	Embedder string `yaml:"embedder"`
}

// FollowConfig enables follower mode: reload file-backed collections when their snapshots change on disk.
type FollowConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.SnapshotDir = expandPath(cfg.Storage.SnapshotDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks collection declarations and numeric limits.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Collections))
	for _, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("collection name is required")
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate collection %q", col.Name)
		}
		seen[col.Name] = true
		if col.Backend != BackendSQLite && col.Backend != BackendFile {
			return fmt.Errorf("collection %q: unknown backend %q", col.Name, col.Backend)
		}
	}
	if c.Retrieval.OverfetchMultiplier < 1 {
		return fmt.Errorf("retrieval.overfetch_multiplier must be at least 1")
	}
	if c.Retrieval.DefaultK > c.Retrieval.MaxK {
		return fmt.Errorf("retrieval.default_k (%d) exceeds max_k (%d)", c.Retrieval.DefaultK, c.Retrieval.MaxK)
	}
	return nil
}

// Collection returns the collection declaration with the given name.
func (c *Config) Collection(name string) (CollectionConfig, bool) {
	for _, col := range c.Collections {
		if col.Name == name {
			return col, true
		}
	}
	return CollectionConfig{}, false
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
