package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/simstore/internal/embedding"
	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/storage"
	"github.com/hyperjump/simstore/internal/vector"
)

func BenchmarkStoreSearch(b *testing.B) {
	records, err := storage.NewFileStore(b.TempDir() + "/cases.json")
	if err != nil {
		b.Fatal(err)
	}
	idx, _ := vector.NewIndex(string(vector.IndexTypeFlat), 0)
	s := NewStore("cases", KindCases, records, idx, embedding.NewMockEmbedder(384))
	defer s.Close()

	docs := make([]*models.Document, 2000)
	for i := range docs {
		docs[i] = &models.Document{
			ID:       int64(i + 1),
			Category: fmt.Sprintf("cat-%d", i%20),
			Text:     fmt.Sprintf("case %d transcript about transfer request %d", i, i%37),
			Answer:   "answer",
		}
	}
	ctx := context.Background()
	if _, err := s.Replace(ctx, docs); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(ctx, "transfer request", SearchOptions{K: 10, Category: "cat-3"}); err != nil {
			b.Fatal(err)
		}
	}
}
