//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import "fmt"

var errFAISSUnavailable = fmt.Errorf("FAISS not available: build with -tags=faiss and install FAISS library")

// FAISSIndex is a stub that returns an error when FAISS is not available.
// Build with -tags=faiss to enable FAISS support.
type FAISSIndex struct{}

// NewFAISSIndex returns an error because FAISS is not available.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Ensure(dimensions int) error { return errFAISSUnavailable }

func (f *FAISSIndex) Reset() {}

func (f *FAISSIndex) Add(ids []int64, vectors [][]float32) error { return errFAISSUnavailable }

func (f *FAISSIndex) Remove(ids []int64) (int, error) { return 0, errFAISSUnavailable }

func (f *FAISSIndex) Search(query []float32, topN int) ([]Result, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Contains(id int64) bool { return false }

func (f *FAISSIndex) Size() int { return 0 }

func (f *FAISSIndex) Dimensions() int { return 0 }

func (f *FAISSIndex) Save(path string) error { return errFAISSUnavailable }

func (f *FAISSIndex) Load(path string) error { return errFAISSUnavailable }

// Close is a no-op without FAISS.
func (f *FAISSIndex) Close() error { return nil }
