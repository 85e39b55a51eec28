package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/simstore/internal/config"
)

// Providers accepted by New.
const (
	ProviderONNX    = "onnx"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
	ProviderMock    = "mock"
)

// New builds the embedder named by provider from cfg, wrapped in an LRU cache when cfg.CacheSize > 0.
// An empty provider uses cfg.Provider.
func New(provider string, cfg config.EmbeddingConfig) (Embedder, error) {
	if provider == "" {
		provider = cfg.Provider
	}
	var e Embedder
	switch provider {
	case ProviderONNX:
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		e = onnx
	case ProviderOpenAI:
		key := os.Getenv(cfg.OpenAI.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("openai embedder: environment variable %s is empty", cfg.OpenAI.APIKeyEnv)
		}
		e = NewOpenAIEmbedder(key,
			WithModel(cfg.OpenAI.Model),
			WithDimensions(cfg.Dimensions),
			WithBaseURL(cfg.OpenAI.BaseURL),
			WithMaxBatch(cfg.OpenAI.MaxBatch),
			WithConcurrency(cfg.OpenAI.Concurrency),
		)
	case ProviderHashing:
		return NewHashingEmbedder(cfg.Hashing.Dimensions), nil
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, hashing, mock)", provider)
	}
	return NewCachedEmbedder(e, cfg.CacheSize), nil
}
