package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/simstore/internal/config"
	"github.com/hyperjump/simstore/internal/embedding"
	"github.com/hyperjump/simstore/internal/retrieval"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "db.sqlite"),
			SnapshotDir:  filepath.Join(dir, "snapshots"),
		},
	}
	config.ApplyDefaults(cfg)
	reg, err := retrieval.Open(context.Background(), cfg, nil, retrieval.WithEmbedderFactory(
		func(string) (embedding.Embedder, error) { return embedding.NewHashingEmbedder(1024), nil },
	))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return NewServer(reg, cfg, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

const casesBody = `[
	{"id": 1, "category": "phishing", "text": "password request", "answer": "never share"},
	{"id": 2, "category": "loan", "text": "fake loan offer", "answer": "verify the lender"},
	{"id": 3, "category": "daily", "text": "lunch plans", "answer": "enjoy"}
]`

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestUpsertAndSearch(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/collections/cases/documents", casesBody)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: %d %s", w.Code, w.Body.String())
	}
	var ingest struct {
		Inserted     int `json:"inserted"`
		Updated      int `json:"updated"`
		DurableCount int `json:"durable_count"`
	}
	decode(t, w, &ingest)
	if ingest.Inserted != 3 || ingest.Updated != 0 || ingest.DurableCount != 3 {
		t.Errorf("ingest = %+v", ingest)
	}

	w = do(t, h, http.MethodPost, "/api/v1/collections/cases/search", `{"query": "password", "k": 3, "min_score": 0.3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		K       int `json:"k"`
		Results []struct {
			Document struct {
				ID     int64  `json:"id"`
				Answer string `json:"answer"`
			} `json:"document"`
			Score float64 `json:"score"`
			Rank  int     `json:"rank"`
		} `json:"results"`
	}
	decode(t, w, &out)
	if len(out.Results) == 0 || out.Results[0].Document.ID != 1 || out.Results[0].Rank != 1 {
		t.Fatalf("results = %+v", out.Results)
	}
	if out.Results[0].Document.Answer != "never share" {
		t.Errorf("answer = %q", out.Results[0].Document.Answer)
	}
	for _, r := range out.Results {
		if r.Document.ID == 3 {
			t.Error("id 3 should be filtered by min_score")
		}
	}
}

func TestSearchDefaultsK(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/v1/collections/cases/documents", casesBody)
	w := do(t, h, http.MethodPost, "/api/v1/collections/cases/search", `{"query": "plans"}`)
	var out struct {
		K int `json:"k"`
	}
	decode(t, w, &out)
	if out.K != 5 {
		t.Errorf("k = %d, want default 5", out.K)
	}
}

func TestErrorStatuses(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown collection", http.MethodGet, "/api/v1/collections/images/stats", "", http.StatusNotFound},
		{"missing answer", http.MethodPost, "/api/v1/collections/cases/documents", `[{"id": 1, "category": "c", "text": "t"}]`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/v1/collections/cases/documents", `[{`, http.StatusBadRequest},
		{"empty query", http.MethodPost, "/api/v1/collections/cases/search", `{"query": " "}`, http.StatusBadRequest},
		{"negative k", http.MethodPost, "/api/v1/collections/cases/search", `{"query": "x", "k": -1}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/v1/collections/cases/documents/abc", "", http.StatusBadRequest},
		{"missing doc", http.MethodGet, "/api/v1/collections/cases/documents/99", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/v1/collections/cases/categories?limit=x", "", http.StatusBadRequest},
		{"blank delete text", http.MethodDelete, "/api/v1/collections/keywords/documents", `{"text": ""}`, http.StatusBadRequest},
		{"duplicate guide key", http.MethodPost, "/api/v1/collections/guides/documents",
			`[{"id": 1, "key": "loan", "title": "A", "content": "a"}, {"id": 2, "key": "loan", "title": "B", "content": "b"}]`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDocumentLifecycle(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/v1/collections/cases/documents", casesBody)

	w := do(t, h, http.MethodGet, "/api/v1/collections/cases/documents/2", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "fake loan offer") {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodDelete, "/api/v1/collections/cases/documents/2", "")
	var del struct {
		Deleted bool `json:"deleted"`
		Removal struct {
			OK bool `json:"ok"`
		} `json:"removal"`
	}
	decode(t, w, &del)
	if !del.Deleted || !del.Removal.OK {
		t.Errorf("delete = %+v", del)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/collections/cases/documents/2", "")
	decode(t, w, &del)
	if w.Code != http.StatusOK || del.Deleted {
		t.Errorf("second delete: %d %+v", w.Code, del)
	}

	w = do(t, h, http.MethodGet, "/api/v1/collections/cases/stats", "")
	var stats struct {
		DurableCount int    `json:"durable_count"`
		Metric       string `json:"metric"`
	}
	decode(t, w, &stats)
	if stats.DurableCount != 2 || stats.Metric == "" {
		t.Errorf("stats = %+v", stats)
	}

	w = do(t, h, http.MethodGet, "/api/v1/collections/cases/categories", "")
	var cats struct {
		Categories []string `json:"categories"`
	}
	decode(t, w, &cats)
	if len(cats.Categories) != 2 || cats.Categories[0] != "daily" || cats.Categories[1] != "phishing" {
		t.Errorf("categories = %v", cats.Categories)
	}
}

func TestKeywordsByText(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/collections/keywords/documents", `{"keywords": ["urgent transfer", "gift card"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodDelete, "/api/v1/collections/keywords/documents?text=gift+card", "")
	var del struct {
		Deleted bool `json:"deleted"`
	}
	decode(t, w, &del)
	if !del.Deleted {
		t.Errorf("delete by text: %s", w.Body.String())
	}
}

func TestBuildReplaceAndList(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/v1/collections/cases/documents", casesBody)

	w := do(t, h, http.MethodPost, "/api/v1/collections/cases/build", "")
	var build struct {
		BuildID string `json:"build_id"`
		Count   int    `json:"count"`
	}
	decode(t, w, &build)
	if build.Count != 3 || build.BuildID == "" {
		t.Errorf("build = %+v", build)
	}

	w = do(t, h, http.MethodPost, "/api/v1/collections/cases/documents?replace=true",
		`[{"id": 9, "category": "c", "text": "only one", "answer": "a"}]`)
	decode(t, w, &build)
	if w.Code != http.StatusOK || build.Count != 1 {
		t.Errorf("replace: %d %+v", w.Code, build)
	}

	w = do(t, h, http.MethodGet, "/api/v1/collections/", "")
	var list struct {
		Collections []struct {
			Collection   string `json:"collection"`
			DurableCount int    `json:"durable_count"`
		} `json:"collections"`
	}
	decode(t, w, &list)
	if len(list.Collections) != 4 {
		t.Fatalf("collections = %+v", list.Collections)
	}
	if list.Collections[0].Collection != "cases" || list.Collections[0].DurableCount != 1 {
		t.Errorf("cases entry = %+v", list.Collections[0])
	}
}
