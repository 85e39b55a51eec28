package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/simstore/internal/config"
	"github.com/hyperjump/simstore/internal/embedding"
	"github.com/hyperjump/simstore/internal/storage"
	"github.com/hyperjump/simstore/internal/vector"
)

// Registry owns the named collections of one process and the resources they share.
type Registry struct {
	stores  map[string]*Store
	order   []string
	closers []io.Closer
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{stores: make(map[string]*Store), logger: logger}
}

// Register adds a collection. Names must be unique.
func (r *Registry) Register(s *Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[s.Name()]; ok {
		return fmt.Errorf("collection %q already registered", s.Name())
	}
	r.stores[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

// OnClose registers a shared resource (database, embedder) closed after the collections.
func (r *Registry) OnClose(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, c)
}

// Get returns the named collection or ErrUnknownCollection.
func (r *Registry) Get(name string) (*Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return s, nil
}

// Names returns collection names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// BuildAll rebuilds every collection concurrently. Each collection's own lock still
// serializes its operations.
func (r *Registry) BuildAll(ctx context.Context) (map[string]*BuildResult, error) {
	names := r.Names()
	results := make([]*BuildResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			res, err := s.Build(gctx)
			if err != nil {
				return fmt.Errorf("build %s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]*BuildResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}

// SaveAll persists every collection that has a snapshot path or a file-backed record store.
func (r *Registry) SaveAll() error {
	var errs []error
	for _, name := range r.Names() {
		s, _ := r.Get(name)
		if err := s.Save(); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every collection, then shared resources in reverse registration order.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, name := range r.order {
		if err := r.stores[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.stores = map[string]*Store{}
	r.order = nil
	r.closers = nil
	return errors.Join(errs...)
}

// EmbedderFactory builds the embedder for a provider name.
type EmbedderFactory func(provider string) (embedding.Embedder, error)

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	embedders EmbedderFactory
}

// WithEmbedderFactory replaces the config-driven embedder construction.
func WithEmbedderFactory(f EmbedderFactory) OpenOption {
	return func(c *openConfig) { c.embedders = f }
}

// SnapshotPaths returns the index snapshot and side table locations for a collection.
func SnapshotPaths(dir, name string) (index, sideTable string) {
	return filepath.Join(dir, name+".index"), filepath.Join(dir, name+".json")
}

// Open builds a registry from cfg: one shared SQLite database, one embedder per provider, and
// one Store per declared collection. File-backed collections load their saved snapshot.
// A failing ONNX provider falls back to the hashing embedder with a warning.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...OpenOption) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	oc := openConfig{
		embedders: func(provider string) (embedding.Embedder, error) {
			return embedding.New(provider, cfg.Embedding)
		},
	}
	for _, o := range opts {
		o(&oc)
	}

	reg := NewRegistry(logger)
	fail := func(err error) (*Registry, error) {
		_ = reg.Close()
		return nil, err
	}

	var db *storage.DB
	embedders := make(map[string]embedding.Embedder)
	getEmbedder := func(provider string) (embedding.Embedder, error) {
		if e, ok := embedders[provider]; ok {
			return e, nil
		}
		e, err := oc.embedders(provider)
		if err != nil && provider == embedding.ProviderONNX {
			logger.Warn("ONNX embedder unavailable, falling back to hashing embedder", zap.Error(err))
			e, err = oc.embedders(embedding.ProviderHashing)
		}
		if err != nil {
			return nil, fmt.Errorf("embedder %s: %w", provider, err)
		}
		embedders[provider] = e
		reg.OnClose(e)
		return e, nil
	}

	for _, cc := range cfg.Collections {
		kind, err := ParseKind(cc.Kind)
		if err != nil {
			return fail(fmt.Errorf("collection %s: %w", cc.Name, err))
		}
		emb, err := getEmbedder(cc.Embedder)
		if err != nil {
			return fail(fmt.Errorf("collection %s: %w", cc.Name, err))
		}
		index, err := vector.NewIndex(cc.IndexType, 0)
		if err != nil {
			return fail(fmt.Errorf("collection %s: %w", cc.Name, err))
		}

		storeOpts := []Option{
			WithLogger(logger),
			WithOverfetch(cfg.Retrieval.OverfetchMultiplier, cfg.Retrieval.OverfetchCap),
			WithSkipUnchanged(cfg.Retrieval.SkipUnchanged),
		}
		var records storage.RecordStore
		switch cc.Backend {
		case config.BackendFile:
			indexPath, sidePath := SnapshotPaths(cfg.Storage.SnapshotDir, cc.Name)
			fs, err := storage.NewFileStore(sidePath)
			if err != nil {
				_ = index.Close()
				return fail(fmt.Errorf("collection %s: %w", cc.Name, err))
			}
			records = fs
			storeOpts = append(storeOpts, WithSnapshotPath(indexPath), WithDiskPaths(indexPath, sidePath))
		default:
			if db == nil {
				db, err = storage.OpenDB(cfg.Storage.DatabasePath)
				if err != nil {
					_ = index.Close()
					return fail(err)
				}
				reg.OnClose(db)
			}
			records, err = db.Table(cc.Name, storage.TableOptions{UniqueCategory: kind == KindGuides})
			if err != nil {
				_ = index.Close()
				return fail(fmt.Errorf("collection %s: %w", cc.Name, err))
			}
			storeOpts = append(storeOpts, WithDiskPaths(cfg.Storage.DatabasePath))
		}

		s := NewStore(cc.Name, kind, records, index, emb, storeOpts...)
		if cc.Backend == config.BackendFile {
			if err := s.Reload(ctx); err != nil {
				_ = s.Close()
				return fail(fmt.Errorf("collection %s: %w", cc.Name, err))
			}
		}
		if err := reg.Register(s); err != nil {
			_ = s.Close()
			return fail(err)
		}
	}
	return reg, nil
}
