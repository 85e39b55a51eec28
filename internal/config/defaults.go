package config

// Storage backends for a collection's durable records.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// DefaultCollections are created when the config declares none.
func DefaultCollections() []CollectionConfig {
	return []CollectionConfig{
		{Name: "cases", Kind: "cases"},
		{Name: "guides", Kind: "guides"},
		{Name: "keywords", Kind: "keywords", Backend: BackendFile, Embedder: "hashing"},
		{Name: "case_text", Kind: "case_text"},
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/simstore/data/db/simstore.db"
	}
	if cfg.Storage.SnapshotDir == "" {
		cfg.Storage.SnapshotDir = "/usr/local/var/simstore/data/snapshots"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/simstore/data/models/paraphrase-multilingual-MiniLM-L12-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAI.APIKeyEnv == "" {
		cfg.Embedding.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.OpenAI.Model == "" {
		cfg.Embedding.OpenAI.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.OpenAI.MaxBatch == 0 {
		cfg.Embedding.OpenAI.MaxBatch = 2048
	}
	if cfg.Embedding.OpenAI.Concurrency == 0 {
		cfg.Embedding.OpenAI.Concurrency = 4
	}
	if cfg.Embedding.Hashing.Dimensions == 0 {
		cfg.Embedding.Hashing.Dimensions = 1024
	}
	if cfg.Retrieval.OverfetchMultiplier == 0 {
		cfg.Retrieval.OverfetchMultiplier = 10
	}
	if cfg.Retrieval.OverfetchCap == 0 {
		cfg.Retrieval.OverfetchCap = 200
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 5
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = 100
	}
	if cfg.Retrieval.IndexType == "" {
		cfg.Retrieval.IndexType = "flat"
	}
	if len(cfg.Collections) == 0 {
		cfg.Collections = DefaultCollections()
	}
	for i := range cfg.Collections {
		col := &cfg.Collections[i]
		if col.Kind == "" {
			col.Kind = col.Name
		}
		if col.Backend == "" {
			if col.Kind == "keywords" {
				col.Backend = BackendFile
			} else {
				col.Backend = BackendSQLite
			}
		}
		if col.IndexType == "" {
			col.IndexType = cfg.Retrieval.IndexType
		}
		if col.Embedder == "" {
			col.Embedder = cfg.Embedding.Provider
		}
	}
	if cfg.Follow.DebounceMs == 0 {
		cfg.Follow.DebounceMs = 500
	}
}
