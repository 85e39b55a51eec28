package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/simstore/internal/embedding"
	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/storage"
	"github.com/hyperjump/simstore/internal/vector"
)

const testDims = 1024

// flakyEmbedder wraps HashingEmbedder, counts embedded texts, and fails while fail is set.
type flakyEmbedder struct {
	*embedding.HashingEmbedder
	mu       sync.Mutex
	fail     bool
	embedded int
}

var errProviderDown = errors.New("provider down")

func newFlakyEmbedder() *flakyEmbedder {
	return &flakyEmbedder{HashingEmbedder: embedding.NewHashingEmbedder(testDims)}
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errProviderDown
	}
	f.embedded += len(texts)
	return f.HashingEmbedder.EmbedBatch(ctx, texts)
}

func (f *flakyEmbedder) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyEmbedder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedded
}

func newSQLiteRecords(t *testing.T, name string) storage.RecordStore {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	records, err := db.Table(name, storage.TableOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func newTestStore(t *testing.T, kind Kind, indexType string, emb embedding.Embedder, opts ...Option) *Store {
	t.Helper()
	idx, err := vector.NewIndex(indexType, 0)
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(string(kind), kind, newSQLiteRecords(t, string(kind)), idx, emb, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func caseDoc(id int64, category, text string) *models.Document {
	return &models.Document{ID: id, Category: category, Text: text, Answer: "answer for " + text}
}

func mustUpsert(t *testing.T, s *Store, docs ...*models.Document) *UpsertResult {
	t.Helper()
	res, err := s.Upsert(context.Background(), docs)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return res
}

func mustSearch(t *testing.T, s *Store, query string, opts SearchOptions) []*models.Hit {
	t.Helper()
	hits, err := s.Search(context.Background(), query, opts)
	if err != nil {
		t.Fatalf("Search(%q): %v", query, err)
	}
	return hits
}

func mustStats(t *testing.T, s *Store) *models.Stats {
	t.Helper()
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return st
}

func hitIDs(hits []*models.Hit) []int64 {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.Document.ID
	}
	return ids
}

func floatPtr(v float64) *float64 { return &v }
