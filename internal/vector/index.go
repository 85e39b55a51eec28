// Package vector provides exact inner-product vector indices keyed by int64 document IDs.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// SentinelID marks an unfilled search slot. It is never a valid document ID.
const SentinelID int64 = -1

// Metric describes how scores are computed. Vectors are unit-normalized, so inner product
// equals cosine similarity.
const Metric = "cosine (normalized vectors + inner product)"

var (
	// ErrRemoveUnsupported is returned by Remove when the index configuration cannot drop entries.
	ErrRemoveUnsupported = errors.New("vector: remove not supported by this index")
	// ErrNotInitialized is returned when vectors are added before the dimension is fixed.
	ErrNotInitialized = errors.New("vector: index dimension not initialized")
)

// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Index stores (id, unit vector) entries and answers top-N inner product queries.
//
// Add never deduplicates: adding an id that is already present creates a second entry, so
// callers remove stale entries for an id before re-adding it. Remove is best-effort and may
// fail with ErrRemoveUnsupported; the caller treats that as drift, not as a fatal error.
type Index interface {
	// Ensure fixes the dimension on first call. Later calls with another dimension fail.
	Ensure(dimensions int) error
	// Reset drops all entries and keeps the dimension.
	Reset()
	Add(ids []int64, vectors [][]float32) error
	// Remove drops every entry for the given ids and returns how many entries were dropped.
	Remove(ids []int64) (int, error)
	// Search returns exactly topN results by descending score; unfilled slots hold SentinelID.
	Search(query []float32, topN int) ([]Result, error)
	Contains(id int64) bool
	Size() int
	Dimensions() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID    int64
	Score float64 // Inner product; cosine similarity for normalized vectors
}

func sentinelResults(results []Result, topN int) []Result {
	for len(results) < topN {
		results = append(results, Result{ID: SentinelID, Score: -math.MaxFloat32})
	}
	return results
}

func validateAdd(dimensions int, ids []int64, vectors [][]float32) error {
	if dimensions == 0 {
		return ErrNotInitialized
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("vector: ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	for i, id := range ids {
		if id < 0 {
			return fmt.Errorf("vector: invalid id %d", id)
		}
		if len(vectors[i]) != dimensions {
			return &ErrDimensionMismatch{Expected: dimensions, Actual: len(vectors[i])}
		}
	}
	return nil
}
