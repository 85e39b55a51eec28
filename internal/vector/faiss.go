//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/IndexIDMap_c.h>
#include <faiss/c_api/impl/AuxIndexStructures_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// FAISSIndex wraps an IndexIDMap2 over IndexFlatIP, so FAISS stores the caller's int64 ids
// directly and supports remove_ids. The FAISS index is created on the first Ensure.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	live       *roaring64.Bitmap
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS index. A dimension of 0 defers creation to Ensure.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	f := &FAISSIndex{live: roaring64.New()}
	if dimensions > 0 {
		if err := f.create(dimensions); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *FAISSIndex) create(dimensions int) error {
	var flat *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return fmt.Errorf("failed to create FAISS flat index: %s", faissLastError())
	}
	var idmap *C.FaissIndexIDMap2
	if ret := C.faiss_IndexIDMap2_new(&idmap, (*C.FaissIndex)(unsafe.Pointer(flat))); ret != 0 {
		C.faiss_Index_free((*C.FaissIndex)(unsafe.Pointer(flat)))
		return fmt.Errorf("failed to create FAISS id map: %s", faissLastError())
	}
	C.faiss_IndexIDMap2_set_own_fields(idmap, 1)
	f.index = (*C.FaissIndex)(unsafe.Pointer(idmap))
	f.dimensions = dimensions
	return nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Ensure creates the FAISS index on first call.
func (f *FAISSIndex) Ensure(dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index == nil {
		return f.create(dimensions)
	}
	if f.dimensions != dimensions {
		return &ErrDimensionMismatch{Expected: f.dimensions, Actual: dimensions}
	}
	return nil
}

// Reset drops all vectors.
func (f *FAISSIndex) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_reset(f.index)
	}
	f.live.Clear()
}

// Add inserts vectors under the given ids.
func (f *FAISSIndex) Add(ids []int64, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := validateAdd(f.dimensions, ids, vectors); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	n := len(vectors)
	flatVectors := make([]float32, 0, n*f.dimensions)
	for _, vec := range vectors {
		flatVectors = append(flatVectors, vec...)
	}
	ret := C.faiss_Index_add_with_ids(
		f.index,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flatVectors[0])),
		(*C.idx_t)(unsafe.Pointer(&ids[0])),
	)
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	for _, id := range ids {
		f.live.Add(uint64(id))
	}
	return nil
}

// Remove drops all vectors stored under the given ids.
func (f *FAISSIndex) Remove(ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index == nil || len(ids) == 0 {
		return 0, nil
	}
	var sel *C.FaissIDSelectorBatch
	if ret := C.faiss_IDSelectorBatch_new(&sel, C.size_t(len(ids)), (*C.idx_t)(unsafe.Pointer(&ids[0]))); ret != 0 {
		return 0, fmt.Errorf("failed to create FAISS id selector: %s", faissLastError())
	}
	defer C.faiss_IDSelector_free((*C.FaissIDSelector)(unsafe.Pointer(sel)))
	var removed C.size_t
	if ret := C.faiss_Index_remove_ids(f.index, (*C.FaissIDSelector)(unsafe.Pointer(sel)), &removed); ret != 0 {
		return 0, fmt.Errorf("FAISS remove_ids failed: %s", faissLastError())
	}
	for _, id := range ids {
		if id >= 0 {
			f.live.Remove(uint64(id))
		}
	}
	return int(removed), nil
}

// Search returns exactly topN results; FAISS pads unfilled slots with label -1.
func (f *FAISSIndex) Search(query []float32, topN int) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if topN <= 0 {
		return nil, nil
	}
	if f.index == nil {
		return sentinelResults(nil, topN), nil
	}
	if len(query) != f.dimensions {
		return nil, &ErrDimensionMismatch{Expected: f.dimensions, Actual: len(query)}
	}
	distances := make([]float32, topN)
	labels := make([]int64, topN)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(topN),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	results := make([]Result, 0, topN)
	for i := 0; i < topN; i++ {
		if labels[i] < 0 {
			break
		}
		results = append(results, Result{ID: labels[i], Score: float64(distances[i])})
	}
	return sentinelResults(results, topN), nil
}

// Contains reports whether id has at least one vector.
func (f *FAISSIndex) Contains(id int64) bool {
	if id < 0 {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.live.Contains(uint64(id))
}

// Size returns the number of stored vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Dimensions returns the fixed dimension, or 0 before Ensure.
func (f *FAISSIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimensions
}

// Save writes the FAISS index to path+".faiss" and the live id bitmap to path+".ids".
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" || f.index == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	cPath := C.CString(path + ".faiss")
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	idsFile, err := os.Create(path + ".ids")
	if err != nil {
		return fmt.Errorf("create id bitmap file: %w", err)
	}
	defer idsFile.Close()
	if _, err := f.live.WriteTo(idsFile); err != nil {
		return fmt.Errorf("write id bitmap: %w", err)
	}
	return nil
}

// Load reads a saved index. Missing files leave the index unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	faissPath := path + ".faiss"
	if _, err := os.Stat(faissPath); os.IsNotExist(err) {
		return nil
	}
	cPath := C.CString(faissPath)
	defer C.free(unsafe.Pointer(cPath))
	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	dim := int(C.faiss_Index_d(loaded))
	live := roaring64.New()
	if idsFile, err := os.Open(path + ".ids"); err == nil {
		_, err = live.ReadFrom(idsFile)
		idsFile.Close()
		if err != nil {
			C.faiss_Index_free(loaded)
			return fmt.Errorf("read id bitmap: %w", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dimensions != 0 && f.dimensions != dim {
		C.faiss_Index_free(loaded)
		return &ErrDimensionMismatch{Expected: f.dimensions, Actual: dim}
	}
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.dimensions = dim
	f.live = live
	return nil
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
