package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/storage"
	"github.com/hyperjump/simstore/internal/vector"
)

// Stats reports durable and indexed counts. Their difference is the drift signal; a rebuild
// restores it to zero.
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	durable, err := s.records.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	indexed := s.index.Size()
	st := &models.Stats{
		Collection:   s.name,
		DurableCount: durable,
		IndexedCount: indexed,
		Drift:        indexed - durable,
		Dimensions:   s.index.Dimensions(),
		Metric:       vector.Metric,
		Built:        s.built,
		LastBuiltAt:  s.lastBuiltAt,
		LastMutation: s.lastMutation,
		BuildID:      s.buildID,
	}
	if len(s.diskPaths) > 0 {
		n, err := storage.DiskUsageBytes(s.diskPaths...)
		if err != nil {
			return nil, fmt.Errorf("disk usage: %w", err)
		}
		st.DiskBytes = n
	}
	return st, nil
}
