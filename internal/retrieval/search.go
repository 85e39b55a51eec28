package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/vector"
)

// SearchOptions filters and bounds a search.
type SearchOptions struct {
	K int
	// Category, when set, keeps only hits whose category matches exactly.
	Category string
	// MinScore, when set, drops hits scoring below it.
	MinScore *float64
}

// Search embeds query and returns up to opts.K hits in index rank order. Filtering never re-sorts.
// If the index has never been built it is built from the record store first.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]*models.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, validationErrorf("query is required")
	}
	if opts.K < 1 {
		return nil, validationErrorf("k must be at least 1, got %d", opts.K)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built {
		if _, err := s.buildLocked(ctx); err != nil {
			return nil, fmt.Errorf("lazy build: %w", err)
		}
	}
	if s.index.Size() == 0 {
		return []*models.Hit{}, nil
	}

	vecs, err := s.embedLocked(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	candidates, err := s.index.Search(vecs[0], s.overfetch(opts.K))
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != vector.SentinelID {
			ids = append(ids, c.ID)
		}
	}
	resolved, err := s.records.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}

	hits := make([]*models.Hit, 0, opts.K)
	seen := make(map[int64]bool, len(ids))
	for _, c := range candidates {
		if c.ID == vector.SentinelID || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		doc, ok := resolved[c.ID]
		if !ok {
			continue // ghost
		}
		if opts.Category != "" && doc.Category != opts.Category {
			continue
		}
		if opts.MinScore != nil && c.Score < *opts.MinScore {
			continue
		}
		hits = append(hits, &models.Hit{Document: doc, Score: c.Score, Rank: len(hits) + 1})
		if len(hits) == opts.K {
			break
		}
	}
	return hits, nil
}

// overfetch is min(max(k*multiplier, k), cap).
func (s *Store) overfetch(k int) int {
	n := k * s.overfetchMultiplier
	if n < k {
		n = k
	}
	if n > s.overfetchCap {
		n = s.overfetchCap
	}
	return n
}
