package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/simstore/internal/models"
)

func TestDB_TableNameValidation(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "sub", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, name := range []string{"", "Cases", "cases; DROP TABLE x", "1abc"} {
		if _, err := db.Table(name, TableOptions{}); err == nil {
			t.Errorf("Table(%q) should fail", name)
		}
	}
}

func TestDB_TablesAreIndependent(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	cases, _ := db.Table("cases", TableOptions{})
	guides, _ := db.Table("guides", TableOptions{UniqueCategory: true})

	_, _, _ = cases.Upsert(ctx, []*models.Document{{ID: 1, Text: "a"}})
	if n, _ := guides.Count(ctx); n != 0 {
		t.Errorf("guides Count = %d, want 0", n)
	}
}

func TestDB_UniqueCategory(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	guides, _ := db.Table("guides", TableOptions{UniqueCategory: true})

	if _, _, err := guides.Upsert(ctx, []*models.Document{{ID: 1, Category: "G1", Title: "t", Text: "a"}}); err != nil {
		t.Fatal(err)
	}
	_, _, err = guides.Upsert(ctx, []*models.Document{
		{ID: 2, Category: "G2", Title: "t", Text: "b"},
		{ID: 3, Category: "G1", Title: "t", Text: "c"},
	})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
	// The failed batch is rolled back as a whole.
	if n, _ := guides.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1 after rollback", n)
	}
}

func TestDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	db, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := db.Table("cases", TableOptions{})
	_, _, _ = s.Upsert(ctx, []*models.Document{{ID: 5, Text: "persisted"}})
	db.Close()

	db, err = OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s, _ = db.Table("cases", TableOptions{})
	got, err := s.Get(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "persisted" {
		t.Errorf("Text = %q", got.Text)
	}
}
