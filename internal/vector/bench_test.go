package vector

import (
	"math/rand"
	"testing"
)

func randomUnitVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		if norm := float32(L2Norm(v)); norm > 0 {
			for j := range v {
				v[j] /= norm
			}
		}
		vecs[i] = v
	}
	return vecs
}

func BenchmarkFlatIndexSearch(b *testing.B) {
	const n, dim = 10000, 384
	idx, err := NewFlatIndex(dim)
	if err != nil {
		b.Fatal(err)
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	if err := idx.Add(ids, randomUnitVectors(n, dim, 1)); err != nil {
		b.Fatal(err)
	}
	query := randomUnitVectors(1, dim, 2)[0]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Search(query, 50); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFlatIndexRemove(b *testing.B) {
	const n, dim = 2000, 64
	vecs := randomUnitVectors(n, dim, 3)
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		idx, _ := NewFlatIndex(dim)
		_ = idx.Add(ids, vecs)
		b.StartTimer()
		_, _ = idx.Remove(ids[:100])
	}
}
