// Package embedding turns text into unit-length float32 vectors.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmptyInput is returned when an embedder is asked to embed an empty string.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// NormalizeL2Slice normalizes the slice in place to unit L2 norm. Zero vectors are left unchanged.
func NormalizeL2Slice(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}
