package vector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatIndex_EnsureFixesDimension(t *testing.T) {
	idx, err := NewFlatIndex(0)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	if err := idx.Ensure(3); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := idx.Ensure(3); err != nil {
		t.Errorf("Ensure same dimension: %v", err)
	}
	err = idx.Ensure(4)
	var mismatch *ErrDimensionMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("Ensure(4) err=%v, want ErrDimensionMismatch", err)
	}
	if mismatch.Expected != 3 || mismatch.Actual != 4 {
		t.Errorf("mismatch=%+v", mismatch)
	}
	if err := idx.Ensure(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestFlatIndex_AddBeforeEnsure(t *testing.T) {
	idx, _ := NewFlatIndex(0)
	err := idx.Add([]int64{1}, [][]float32{{1, 0}})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("err=%v, want ErrNotInitialized", err)
	}
}

func TestFlatIndex_AddValidatesWholeBatch(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	err := idx.Add([]int64{1, 2}, [][]float32{{1, 0}, {1, 0, 0}})
	var mismatch *ErrDimensionMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("err=%v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0 after rejected batch", idx.Size())
	}
	if err := idx.Add([]int64{1}, nil); err == nil {
		t.Error("expected error for length mismatch")
	}
	if err := idx.Add([]int64{-1}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected error for negative id")
	}
}

func TestFlatIndex_SearchOrderAndPadding(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	ids := []int64{1, 2, 3}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.6, 0.8, 0}}
	if err := idx.Add(ids, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res, err := idx.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 5 {
		t.Fatalf("len=%d, want 5", len(res))
	}
	want := []int64{1, 3, 2, SentinelID, SentinelID}
	for i, w := range want {
		if res[i].ID != w {
			t.Errorf("res[%d].ID=%d, want %d", i, res[i].ID, w)
		}
	}
	if res[0].Score < 0.99 {
		t.Errorf("top score=%f, want ~1", res[0].Score)
	}
}

func TestFlatIndex_SearchUninitialized(t *testing.T) {
	idx, _ := NewFlatIndex(0)
	res, err := idx.Search([]float32{1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 || res[0].ID != SentinelID || res[1].ID != SentinelID {
		t.Errorf("res=%+v, want two sentinels", res)
	}
}

func TestFlatIndex_SearchDimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestFlatIndex_DuplicateAddAndRemove(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}})
	_ = idx.Add([]int64{1}, [][]float32{{0.6, 0.8}})
	if idx.Size() != 3 {
		t.Fatalf("Size=%d, want 3 (add does not deduplicate)", idx.Size())
	}
	n, err := idx.Remove([]int64{1, 99})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n != 2 {
		t.Errorf("removed=%d, want 2", n)
	}
	if idx.Contains(1) {
		t.Error("Contains(1) after remove")
	}
	if !idx.Contains(2) {
		t.Error("Contains(2) = false")
	}
	res, _ := idx.Search([]float32{0, 1}, 1)
	if res[0].ID != 2 {
		t.Errorf("top id=%d, want 2", res[0].ID)
	}
}

func TestFlatIndex_RemoveAbsent(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]int64{1}, [][]float32{{1, 0}})
	n, err := idx.Remove([]int64{5})
	if err != nil || n != 0 {
		t.Errorf("Remove absent = %d, %v", n, err)
	}
}

func TestAppendOnlyIndex_KeepsGhosts(t *testing.T) {
	idx, _ := NewAppendOnlyIndex(2)
	_ = idx.Add([]int64{1}, [][]float32{{1, 0}})
	if _, err := idx.Remove([]int64{1}); !errors.Is(err, ErrRemoveUnsupported) {
		t.Fatalf("err=%v, want ErrRemoveUnsupported", err)
	}
	_ = idx.Add([]int64{1}, [][]float32{{0, 1}})
	res, _ := idx.Search([]float32{1, 0}, 2)
	if res[0].ID != 1 || res[1].ID != 1 {
		t.Errorf("res=%+v, want both entries for id 1", res)
	}
}

func TestFlatIndex_Reset(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]int64{1}, [][]float32{{1, 0}})
	idx.Reset()
	if idx.Size() != 0 || idx.Contains(1) {
		t.Error("entries remain after Reset")
	}
	if idx.Dimensions() != 2 {
		t.Errorf("Dimensions=%d, want 2 after Reset", idx.Dimensions())
	}
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "cases.idx")
	idx, _ := NewFlatIndex(3)
	_ = idx.Add([]int64{10, 20}, [][]float32{{1, 0, 0}, {0, 0.6, 0.8}})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, _ := NewFlatIndex(0)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Dimensions() != 3 || loaded.Size() != 2 {
		t.Fatalf("loaded dim=%d size=%d", loaded.Dimensions(), loaded.Size())
	}
	if !loaded.Contains(20) {
		t.Error("Contains(20) = false after Load")
	}
	res, _ := loaded.Search([]float32{0, 0.6, 0.8}, 1)
	if res[0].ID != 20 {
		t.Errorf("top id=%d, want 20", res[0].ID)
	}
}

func TestFlatIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]int64{1}, [][]float32{{1, 0}})
	if err := idx.Load(filepath.Join(t.TempDir(), "missing.idx")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want unchanged 1", idx.Size())
	}
}

func TestFlatIndex_LoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.idx")
	src, _ := NewFlatIndex(2)
	_ = src.Add([]int64{1}, [][]float32{{1, 0}})
	_ = src.Save(path)

	dst, _ := NewFlatIndex(3)
	var mismatch *ErrDimensionMismatch
	if err := dst.Load(path); !errors.As(err, &mismatch) {
		t.Errorf("err=%v, want ErrDimensionMismatch", err)
	}
}

func TestFlatIndex_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.idx")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0644); err != nil {
		t.Fatal(err)
	}
	idx, _ := NewFlatIndex(0)
	if err := idx.Load(path); err == nil {
		t.Error("expected error for corrupt snapshot")
	}
}

func TestFlatIndex_SaveEmptyPath(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	if err := idx.Save(""); err != nil {
		t.Errorf("Save(''): %v", err)
	}
}
