package embedding

import (
	"testing"

	"github.com/hyperjump/simstore/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.EmbeddingConfig{
		Provider:   ProviderHashing,
		Dimensions: 16,
		Hashing:    config.HashingConfig{Dimensions: 64},
		OpenAI:     config.OpenAIConfig{APIKeyEnv: "SIMSTORE_TEST_UNSET_KEY"},
	}

	e, err := New("", cfg)
	if err != nil {
		t.Fatalf("New(default): %v", err)
	}
	if e.Dimensions() != 64 {
		t.Errorf("hashing dims = %d, want 64", e.Dimensions())
	}

	m, err := New(ProviderMock, cfg)
	if err != nil {
		t.Fatalf("New(mock): %v", err)
	}
	if m.Dimensions() != 16 {
		t.Errorf("mock dims = %d, want 16", m.Dimensions())
	}

	if _, err := New("bogus", cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(ProviderOpenAI, cfg); err == nil {
		t.Error("expected error when API key env is empty")
	}
}

func TestNew_OpenAIWithKey(t *testing.T) {
	t.Setenv("SIMSTORE_TEST_KEY", "k")
	cfg := config.EmbeddingConfig{
		Dimensions: 8,
		CacheSize:  4,
		OpenAI:     config.OpenAIConfig{APIKeyEnv: "SIMSTORE_TEST_KEY", Model: "m", MaxBatch: 10, Concurrency: 2},
	}
	e, err := New(ProviderOpenAI, cfg)
	if err != nil {
		t.Fatalf("New(openai): %v", err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("got %T, want *CachedEmbedder", e)
	}
	if e.Dimensions() != 8 {
		t.Errorf("dims = %d, want 8", e.Dimensions())
	}
}
