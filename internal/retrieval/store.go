// Package retrieval keeps an in-memory vector index consistent with a durable record store
// and answers similarity searches against it.
package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/simstore/internal/contentid"
	"github.com/hyperjump/simstore/internal/embedding"
	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/storage"
	"github.com/hyperjump/simstore/internal/vector"
)

const (
	defaultOverfetchMultiplier = 10
	defaultOverfetchCap        = 200
)

// Store is one collection: a record store, a vector index, and the embedder that feeds it.
//
// A single mutex is held for the whole duration of every public method, including embedding,
// so no caller observes a partially rebuilt or partially mutated index. Public methods lock
// once and delegate to *Locked helpers.
type Store struct {
	name     string
	kind     Kind
	records  storage.RecordStore
	index    vector.Index
	embedder embedding.Embedder
	logger   *zap.Logger

	overfetchMultiplier int
	overfetchCap        int
	skipUnchanged       bool
	snapshotPath        string
	diskPaths           []string

	built        bool
	buildID      string
	lastBuiltAt  *time.Time
	lastMutation *time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Removal failures log at Warn, builds at Info.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOverfetch sets the candidate multiplier and cap used by Search.
func WithOverfetch(multiplier, limit int) Option {
	return func(s *Store) {
		if multiplier > 0 {
			s.overfetchMultiplier = multiplier
		}
		if limit > 0 {
			s.overfetchCap = limit
		}
	}
}

// WithSkipUnchanged skips re-embedding ids whose embedding text is unchanged and already indexed.
func WithSkipUnchanged(skip bool) Option {
	return func(s *Store) { s.skipUnchanged = skip }
}

// WithSnapshotPath sets where Save writes the index snapshot. When the record store is
// storage.Persistent, every mutation saves the snapshot and then the side table.
func WithSnapshotPath(path string) Option {
	return func(s *Store) { s.snapshotPath = path }
}

// WithDiskPaths lists files or directories whose size Stats reports.
func WithDiskPaths(paths ...string) Option {
	return func(s *Store) { s.diskPaths = append(s.diskPaths, paths...) }
}

// NewStore creates a collection. The index dimension is fixed by the first embedding batch.
func NewStore(name string, kind Kind, records storage.RecordStore, index vector.Index, embedder embedding.Embedder, opts ...Option) *Store {
	s := &Store{
		name:                name,
		kind:                kind,
		records:             records,
		index:               index,
		embedder:            embedder,
		logger:              zap.NewNop(),
		overfetchMultiplier: defaultOverfetchMultiplier,
		overfetchCap:        defaultOverfetchCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("collection", name))
	return s
}

// Name returns the collection name.
func (s *Store) Name() string { return s.name }

// Kind returns the collection kind.
func (s *Store) Kind() Kind { return s.kind }

// BuildResult summarizes a full rebuild.
type BuildResult struct {
	BuildID    string        `json:"build_id"`
	Count      int           `json:"count"`
	Dimensions int           `json:"dimensions"`
	Duration   time.Duration `json:"duration"`
}

// Build re-embeds every durable record and replaces the index wholesale.
// An empty record store resets the index and keeps its dimension.
func (s *Store) Build(ctx context.Context) (*BuildResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildLocked(ctx)
}

func (s *Store) buildLocked(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	docs, err := s.records.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	ids := make([]int64, len(docs))
	texts := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		texts[i] = s.kind.EmbedText(doc)
	}

	var vecs [][]float32
	if len(docs) > 0 {
		vecs, err = s.embedLocked(ctx, texts)
		if err != nil {
			return nil, err
		}
		if err := s.index.Ensure(len(vecs[0])); err != nil {
			return nil, fmt.Errorf("initialize index: %w", err)
		}
	}

	s.index.Reset()
	if len(docs) > 0 {
		if err := s.index.Add(ids, vecs); err != nil {
			return nil, fmt.Errorf("add vectors: %w", err)
		}
	}

	now := time.Now()
	s.built = true
	s.buildID = uuid.New().String()
	s.lastBuiltAt = &now
	res := &BuildResult{
		BuildID:    s.buildID,
		Count:      len(docs),
		Dimensions: s.index.Dimensions(),
		Duration:   time.Since(start),
	}
	s.logger.Info("index built",
		zap.String("build_id", res.BuildID),
		zap.Int("count", res.Count),
		zap.Duration("duration", res.Duration),
	)
	if err := s.autoSaveLocked(); err != nil {
		return res, err
	}
	return res, nil
}

// UpsertResult reports the outcome of Upsert.
type UpsertResult struct {
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Embedded int           `json:"embedded"`
	Skipped  int           `json:"skipped"`
	IDs      []int64       `json:"ids"`
	Removal  RemovalReport `json:"removal"`
}

// Upsert validates the whole batch, writes it to the record store, then re-embeds the submitted
// texts and replaces their index entries. Duplicate ids in one batch resolve to the last occurrence.
// Records committed before an embedding failure stay committed.
func (s *Store) Upsert(ctx context.Context, docs []*models.Document) (*UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(ctx, docs)
}

func (s *Store) prepareBatch(docs []*models.Document) ([]*models.Document, error) {
	out := make([]*models.Document, 0, len(docs))
	pos := make(map[int64]int, len(docs))
	for i, in := range docs {
		if in == nil {
			return nil, validationErrorf("document[%d] is null", i)
		}
		doc := *in
		if err := s.kind.prepare(i, &doc); err != nil {
			return nil, err
		}
		if j, ok := pos[doc.ID]; ok {
			out[j] = &doc
			continue
		}
		pos[doc.ID] = len(out)
		out = append(out, &doc)
	}
	return out, nil
}

func (s *Store) upsertLocked(ctx context.Context, docs []*models.Document) (*UpsertResult, error) {
	batch, err := s.prepareBatch(docs)
	if err != nil {
		return nil, err
	}
	res := &UpsertResult{Removal: RemovalReport{OK: true}}
	if len(batch) == 0 {
		return res, nil
	}
	for _, doc := range batch {
		res.IDs = append(res.IDs, doc.ID)
	}

	var previous map[int64]*models.Document
	if s.skipUnchanged {
		previous, err = s.records.GetMany(ctx, res.IDs)
		if err != nil {
			return nil, fmt.Errorf("load previous records: %w", err)
		}
	}

	res.Inserted, res.Updated, err = s.records.Upsert(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("upsert records: %w", err)
	}
	s.touchLocked()

	var ids []int64
	var texts []string
	for _, doc := range batch {
		text := s.kind.EmbedText(doc)
		if prev, ok := previous[doc.ID]; ok && s.kind.EmbedText(prev) == text && s.index.Contains(doc.ID) {
			res.Skipped++
			continue
		}
		ids = append(ids, doc.ID)
		texts = append(texts, text)
	}
	if len(ids) == 0 {
		return res, s.autoSaveLocked()
	}

	vecs, err := s.embedLocked(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := s.index.Ensure(len(vecs[0])); err != nil {
		return nil, fmt.Errorf("initialize index: %w", err)
	}
	res.Removal = s.removeLocked(ids)
	if err := s.index.Add(ids, vecs); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	res.Embedded = len(ids)
	return res, s.autoSaveLocked()
}

// DeleteResult reports the outcome of Delete.
type DeleteResult struct {
	ID      int64         `json:"id"`
	Deleted bool          `json:"deleted"`
	Removal RemovalReport `json:"removal"`
}

// Delete removes the durable record first; deleting an absent id is a no-op with Deleted=false.
// The vector entry is removed best-effort; a failure leaves a ghost that search skips.
func (s *Store) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, id)
}

// DeleteText deletes the record whose content-addressed id derives from text.
func (s *Store) DeleteText(ctx context.Context, text string) (*DeleteResult, error) {
	if contentid.Normalize(text) == "" {
		return nil, validationErrorf("text is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, contentid.ForText(text))
}

func (s *Store) deleteLocked(ctx context.Context, id int64) (*DeleteResult, error) {
	res := &DeleteResult{ID: id, Removal: RemovalReport{OK: true}}
	ok, err := s.records.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete record %d: %w", id, err)
	}
	if !ok {
		return res, nil
	}
	res.Deleted = true
	s.touchLocked()
	res.Removal = s.removeLocked([]int64{id})
	return res, s.autoSaveLocked()
}

// removeLocked drops index entries for ids. Failure is reported, logged, and never returned.
func (s *Store) removeLocked(ids []int64) RemovalReport {
	report := RemovalReport{Requested: len(ids)}
	n, err := s.index.Remove(ids)
	report.Removed = n
	if err != nil {
		report.Err = err
		s.logger.Warn("vector removal failed; ghost entries may remain until rebuild",
			zap.Int64s("ids", ids),
			zap.Error(err),
		)
		return report
	}
	report.OK = true
	return report
}

// Replace truncates the record store, writes docs, and rebuilds the index.
func (s *Store) Replace(ctx context.Context, docs []*models.Document) (*BuildResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, err := s.prepareBatch(docs)
	if err != nil {
		return nil, err
	}
	if err := s.records.Truncate(ctx); err != nil {
		return nil, fmt.Errorf("truncate records: %w", err)
	}
	if len(batch) > 0 {
		if _, _, err := s.records.Upsert(ctx, batch); err != nil {
			return nil, fmt.Errorf("upsert records: %w", err)
		}
	}
	s.touchLocked()
	return s.buildLocked(ctx)
}

// Get returns a durable record or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Get(ctx, id)
}

// Categories returns distinct categories (guide keys, case names) in ascending order.
func (s *Store) Categories(ctx context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Categories(ctx, limit)
}

// embedLocked embeds texts and checks row count, consistent dimension, and unit length.
func (s *Store) embedLocked(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrEmbedding, len(vecs), len(texts))
	}
	dim := len(vecs[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: provider returned empty vectors", ErrEmbedding)
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if len(v) != dim {
			return nil, &vector.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		row := make([]float32, dim)
		copy(row, v)
		embedding.NormalizeL2Slice(row)
		out[i] = row
	}
	return out, nil
}

func (s *Store) touchLocked() {
	now := time.Now()
	s.lastMutation = &now
}

// Close releases the index. The record store and embedder are owned by the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
