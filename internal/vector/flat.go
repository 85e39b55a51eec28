package vector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// FlatIndex is an exact brute-force inner product index.
// Vectors are stored contiguously; live ids are tracked in a bitmap for Contains.
type FlatIndex struct {
	dimensions int
	appendOnly bool
	ids        []int64
	data       []float32
	live       *roaring64.Bitmap
	mu         sync.RWMutex
}

// NewFlatIndex creates a flat index. A dimension of 0 defers it to the first Ensure call.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	return &FlatIndex{
		dimensions: dimensions,
		live:       roaring64.New(),
	}, nil
}

// NewAppendOnlyIndex creates a flat index whose Remove always fails with ErrRemoveUnsupported.
// Entries superseded by re-adding an id stay searchable until the next Reset.
func NewAppendOnlyIndex(dimensions int) (*FlatIndex, error) {
	f, err := NewFlatIndex(dimensions)
	if err != nil {
		return nil, err
	}
	f.appendOnly = true
	return f, nil
}

// Ensure fixes the index dimension.
func (f *FlatIndex) Ensure(dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dimensions == 0 {
		f.dimensions = dimensions
		return nil
	}
	if f.dimensions != dimensions {
		return &ErrDimensionMismatch{Expected: f.dimensions, Actual: dimensions}
	}
	return nil
}

// Reset drops all entries.
func (f *FlatIndex) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = nil
	f.data = nil
	f.live.Clear()
}

// Add appends one entry per id. The batch is validated before anything is appended.
func (f *FlatIndex) Add(ids []int64, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := validateAdd(f.dimensions, ids, vectors); err != nil {
		return err
	}
	for i, id := range ids {
		f.ids = append(f.ids, id)
		f.data = append(f.data, vectors[i]...)
		f.live.Add(uint64(id))
	}
	return nil
}

// Remove drops every entry whose id is in ids by compacting the storage.
func (f *FlatIndex) Remove(ids []int64) (int, error) {
	if f.appendOnly {
		return 0, ErrRemoveUnsupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := roaring64.New()
	for _, id := range ids {
		if id >= 0 && f.live.Contains(uint64(id)) {
			drop.Add(uint64(id))
		}
	}
	if drop.IsEmpty() {
		return 0, nil
	}
	dim := f.dimensions
	kept := 0
	for i, id := range f.ids {
		if drop.Contains(uint64(id)) {
			continue
		}
		if kept != i {
			f.ids[kept] = id
			copy(f.data[kept*dim:(kept+1)*dim], f.data[i*dim:(i+1)*dim])
		}
		kept++
	}
	removed := len(f.ids) - kept
	f.ids = f.ids[:kept]
	f.data = f.data[:kept*dim]
	f.live.AndNot(drop)
	return removed, nil
}

// Search scores every entry against query and returns exactly topN results.
func (f *FlatIndex) Search(query []float32, topN int) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if topN <= 0 {
		return nil, nil
	}
	if f.dimensions == 0 {
		return sentinelResults(nil, topN), nil
	}
	if len(query) != f.dimensions {
		return nil, &ErrDimensionMismatch{Expected: f.dimensions, Actual: len(query)}
	}
	dim := f.dimensions
	scores := make([]Result, len(f.ids))
	for i, id := range f.ids {
		scores[i] = Result{ID: id, Score: InnerProduct(query, f.data[i*dim:(i+1)*dim])}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if topN < len(scores) {
		scores = scores[:topN]
	}
	return sentinelResults(scores, topN), nil
}

// Contains reports whether at least one entry exists for id.
func (f *FlatIndex) Contains(id int64) bool {
	if id < 0 {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.live.Contains(uint64(id))
}

// Size returns the number of stored entries, counting duplicates.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Dimensions returns the fixed dimension, or 0 before Ensure.
func (f *FlatIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimensions
}

// Save writes a compressed snapshot to path via a temporary file and rename.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := writeSnapshot(file, f.dimensions, f.ids, f.data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the contents with the snapshot at path. A missing file leaves the index unchanged.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	snap, err := readSnapshot(file)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap.dimensions != 0 && f.dimensions != 0 && snap.dimensions != f.dimensions {
		return &ErrDimensionMismatch{Expected: f.dimensions, Actual: snap.dimensions}
	}
	if snap.dimensions != 0 {
		f.dimensions = snap.dimensions
	}
	f.ids = snap.ids
	f.data = snap.data
	f.live.Clear()
	for _, id := range f.ids {
		f.live.Add(uint64(id))
	}
	return nil
}

// Close releases resources (no-op for FlatIndex).
func (f *FlatIndex) Close() error {
	return nil
}
