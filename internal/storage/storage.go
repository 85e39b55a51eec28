// Package storage defines the durable record store used by retrieval collections.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/simstore/internal/models"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("storage: record not found")

// ErrDuplicateKey is returned by Upsert when a record would repeat a unique category.
var ErrDuplicateKey = errors.New("storage: duplicate key")

// RecordStore persists documents keyed by int64 id. It is the source of truth for existence.
type RecordStore interface {
	Get(ctx context.Context, id int64) (*models.Document, error)
	// GetMany resolves ids in one query; missing ids are absent from the map.
	GetMany(ctx context.Context, ids []int64) (map[int64]*models.Document, error)
	// Upsert inserts absent ids and overwrites present ones in a single transaction.
	// CreatedAt/UpdatedAt on docs are set to the stored values.
	Upsert(ctx context.Context, docs []*models.Document) (inserted, updated int, err error)
	// Delete reports whether a record existed.
	Delete(ctx context.Context, id int64) (bool, error)
	// All returns every record ordered by id.
	All(ctx context.Context) ([]*models.Document, error)
	Count(ctx context.Context) (int, error)
	// Categories returns distinct non-empty categories in ascending order; limit <= 0 means no limit.
	Categories(ctx context.Context, limit int) ([]string, error)
	Truncate(ctx context.Context) error
	Close() error
}

// Persistent is implemented by stores that keep records in memory and flush them to a file.
type Persistent interface {
	Path() string
	Save() error
	Reload() error
}
