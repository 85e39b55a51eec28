package embedding

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	*HashingEmbedder
	batches [][]string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, append([]string(nil), texts...))
	return c.HashingEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_OnlyMissesReachInner(t *testing.T) {
	inner := &countingEmbedder{HashingEmbedder: NewHashingEmbedder(32)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := e.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	out, err := e.EmbedBatch(ctx, []string{"b", "c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0] == nil || out[1] == nil || out[2] == nil {
		t.Fatalf("unexpected output %v", out)
	}
	if len(inner.batches) != 2 {
		t.Fatalf("inner calls = %d, want 2", len(inner.batches))
	}
	if got := inner.batches[1]; len(got) != 1 || got[0] != "c" {
		t.Errorf("second inner batch = %v, want [c]", got)
	}
	want, _ := inner.Embed(ctx, "c")
	for i := range want {
		if out[1][i] != want[i] {
			t.Fatal("cached output not aligned with input order")
		}
	}
}

func TestNewCachedEmbedder_ZeroCapacityReturnsInner(t *testing.T) {
	inner := NewHashingEmbedder(8)
	if e := NewCachedEmbedder(inner, 0); e != Embedder(inner) {
		t.Error("expected inner embedder to be returned unchanged")
	}
}
