package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/simstore/internal/storage"
)

// Save writes the index snapshot, then the side table when the record store is file-backed.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.snapshotPath != "" {
		if err := s.index.Save(s.snapshotPath); err != nil {
			return fmt.Errorf("save index snapshot: %w", err)
		}
	}
	if p, ok := s.records.(storage.Persistent); ok {
		if err := p.Save(); err != nil {
			return fmt.Errorf("save side table: %w", err)
		}
	}
	return nil
}

// autoSaveLocked persists after a mutation when the records live only in memory until saved.
func (s *Store) autoSaveLocked() error {
	if _, ok := s.records.(storage.Persistent); !ok {
		return nil
	}
	return s.saveLocked()
}

// Reload replaces the index with the saved snapshot and the records with the saved side table.
// Missing files load as empty. A non-empty snapshot counts as built; otherwise the next search
// rebuilds from the records.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Reset()
	s.built = false
	if s.snapshotPath != "" {
		if err := s.index.Load(s.snapshotPath); err != nil {
			return fmt.Errorf("load index snapshot: %w", err)
		}
	}
	if p, ok := s.records.(storage.Persistent); ok {
		if err := p.Reload(); err != nil {
			return fmt.Errorf("load side table: %w", err)
		}
	}
	n, err := s.records.Count(ctx)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	s.built = s.index.Size() > 0 || n == 0
	s.logger.Info("collection reloaded")
	return nil
}
