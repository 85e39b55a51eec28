package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/simstore/internal/config"
	"github.com/hyperjump/simstore/internal/embedding"
	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/storage"
)

func openTestRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "db", "simstore.db"),
			SnapshotDir:  filepath.Join(dir, "snapshots"),
		},
	}
	config.ApplyDefaults(cfg)
	factory := func(provider string) (embedding.Embedder, error) {
		return embedding.NewHashingEmbedder(testDims), nil
	}
	reg, err := Open(context.Background(), cfg, nil, WithEmbedderFactory(factory))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return reg
}

func TestOpen_DefaultCollections(t *testing.T) {
	reg := openTestRegistry(t, t.TempDir())
	defer reg.Close()

	want := []string{"cases", "guides", "keywords", "case_text"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if _, err := reg.Get("images"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("err = %v, want ErrUnknownCollection", err)
	}
	guides, _ := reg.Get("guides")
	if guides.Kind() != KindGuides {
		t.Errorf("kind = %q", guides.Kind())
	}
}

func TestRegistry_BuildSaveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	reg := openTestRegistry(t, dir)
	cases, _ := reg.Get("cases")
	mustUpsert(t, cases, caseDoc(1, "phishing", "password request"))
	keywords, _ := reg.Get("keywords")
	mustUpsert(t, keywords, keyword("urgent transfer"))

	results, err := reg.BuildAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if results["cases"].Count != 1 || results["keywords"].Count != 1 || results["guides"].Count != 0 {
		t.Errorf("build results = %+v", results)
	}
	if err := reg.SaveAll(); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}

	reg = openTestRegistry(t, dir)
	defer reg.Close()
	cases, _ = reg.Get("cases")
	if hits := mustSearch(t, cases, "password", SearchOptions{K: 1}); len(hits) != 1 || hits[0].Document.ID != 1 {
		t.Errorf("cases hits = %v", hitIDs(hits))
	}
	keywords, _ = reg.Get("keywords")
	if st := mustStats(t, keywords); st.DurableCount != 1 || st.IndexedCount != 1 {
		t.Errorf("keywords stats after reopen = %+v", st)
	}
}

func TestRegistry_GuideKeysUnique(t *testing.T) {
	reg := openTestRegistry(t, t.TempDir())
	defer reg.Close()
	guides, _ := reg.Get("guides")
	_, err := guides.Upsert(context.Background(), []*models.Document{
		{ID: 1, Category: "loan", Title: "A", Text: "a"},
		{ID: 2, Category: "loan", Title: "B", Text: "b"},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want storage.ErrDuplicateKey", err)
	}
	if st := mustStats(t, guides); st.DurableCount != 0 {
		t.Errorf("durable = %d, want rollback", st.DurableCount)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry(nil)
	s := NewStore("x", KindCases, nil, nil, nil)
	if err := reg.Register(s); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(s); err == nil {
		t.Error("expected duplicate error")
	}
}
