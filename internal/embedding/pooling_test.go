package embedding

import "testing"

func TestMeanPool(t *testing.T) {
	// batch=2, seq=3, dim=2
	hidden := []float32{
		1, 2, 3, 4, 100, 100, // row 0: last token masked out
		5, 5, 7, 7, 9, 9, // row 1: all tokens live
	}
	mask := []int64{
		1, 1, 0,
		1, 1, 1,
	}
	got, err := meanPool(hidden, mask, 2, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float32{{2, 3}, {7, 7}}
	for i := range want {
		for d := range want[i] {
			if got[i][d] != want[i][d] {
				t.Errorf("row %d dim %d = %v, want %v", i, d, got[i][d], want[i][d])
			}
		}
	}
}

func TestMeanPool_EmptyMask(t *testing.T) {
	got, err := meanPool([]float32{1, 1, 1, 1}, []int64{0, 0}, 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range got[0] {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", got[0])
		}
	}
}

func TestMeanPool_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		hidden []float32
		mask   []int64
	}{
		{"short hidden", make([]float32, 3), make([]int64, 2)},
		{"short mask", make([]float32, 4), make([]int64, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := meanPool(tt.hidden, tt.mask, 1, 2, 2); err == nil {
				t.Error("expected shape error")
			}
		})
	}
}
