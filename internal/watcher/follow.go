package watcher

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Reloader reloads a collection from its saved snapshot and side table.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Follower reloads file-backed collections when a leader process rewrites their side tables.
// The leader writes the index snapshot before the side table, so a settled side table write
// means both files are current.
type Follower struct {
	*Watcher
	targets map[string]Reloader
	logger  *zap.Logger
	ctx     context.Context
}

// NewFollower watches dir. targets maps side table file names (for example "keywords.json")
// to the collection to reload.
func NewFollower(ctx context.Context, dir string, targets map[string]Reloader, debounce time.Duration, logger *zap.Logger) *Follower {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Follower{targets: targets, logger: logger, ctx: ctx}
	f.Watcher = NewWatcher([]string{dir}, f.reload,
		WithExtensions(".json"),
		WithDebounce(debounce),
		WithLogger(logger),
	)
	return f
}

// Start begins following.
func (f *Follower) Start() error {
	return f.Watcher.Start(f.ctx)
}

func (f *Follower) reload(path string) {
	name := filepath.Base(path)
	target, ok := f.targets[name]
	if !ok {
		return
	}
	if err := target.Reload(f.ctx); err != nil {
		f.logger.Error("follower reload failed", zap.String("file", name), zap.Error(err))
		return
	}
	f.logger.Info("follower reloaded collection", zap.String("file", name))
}
