package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/simstore/internal/models"
)

// FileStore keeps records in memory and persists them as a JSON side table at path.
// Mutations are not written until Save; callers order Save after the index snapshot.
type FileStore struct {
	path    string
	records map[int64]*models.Document
	mu      sync.RWMutex
}

type sideTable struct {
	Version int                `json:"version"`
	Records []*models.Document `json:"records"`
}

// NewFileStore opens the side table at path. A missing file starts an empty store.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, records: make(map[int64]*models.Document)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the side table location.
func (s *FileStore) Path() string {
	return s.path
}

// Reload replaces the in-memory records with the file contents. A missing file empties the store.
func (s *FileStore) Reload() error {
	records := make(map[int64]*models.Document)
	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("read side table: %w", err)
	default:
		var table sideTable
		if err := json.Unmarshal(data, &table); err != nil {
			return fmt.Errorf("parse side table %s: %w", s.path, err)
		}
		for _, doc := range table.Records {
			records[doc.ID] = doc
		}
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// Save writes the side table through a temporary file and rename.
func (s *FileStore) Save() error {
	s.mu.RLock()
	table := sideTable{Version: 1, Records: s.sortedLocked()}
	data, err := json.MarshalIndent(table, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal side table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create side table dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write side table: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename side table: %w", err)
	}
	return nil
}

func (s *FileStore) sortedLocked() []*models.Document {
	docs := make([]*models.Document, 0, len(s.records))
	for _, doc := range s.records {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func copyDocument(doc *models.Document) *models.Document {
	c := *doc
	if doc.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(doc.Metadata))
		for k, v := range doc.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (s *FileStore) Get(ctx context.Context, id int64) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (s *FileStore) GetMany(ctx context.Context, ids []int64) (map[int64]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]*models.Document, len(ids))
	for _, id := range ids {
		if doc, ok := s.records[id]; ok {
			out[id] = copyDocument(doc)
		}
	}
	return out, nil
}

func (s *FileStore) Upsert(ctx context.Context, docs []*models.Document) (inserted, updated int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, doc := range docs {
		if prev, ok := s.records[doc.ID]; ok {
			doc.CreatedAt = prev.CreatedAt
			updated++
		} else {
			doc.CreatedAt = now
			inserted++
		}
		doc.UpdatedAt = now
		s.records[doc.ID] = copyDocument(doc)
	}
	return inserted, updated, nil
}

func (s *FileStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *FileStore) All(ctx context.Context) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.sortedLocked()
	for i, doc := range docs {
		docs[i] = copyDocument(doc)
	}
	return docs, nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *FileStore) Categories(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]bool)
	for _, doc := range s.records {
		if doc.Category != "" {
			seen[doc.Category] = true
		}
	}
	s.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileStore) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]*models.Document)
	return nil
}

// Close is a no-op; unsaved mutations are discarded.
func (s *FileStore) Close() error {
	return nil
}
