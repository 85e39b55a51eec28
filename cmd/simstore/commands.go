package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/simstore/internal/cli"
	"github.com/hyperjump/simstore/internal/config"
	"github.com/hyperjump/simstore/internal/loader"
	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/retrieval"
	"github.com/hyperjump/simstore/internal/server"
	"github.com/hyperjump/simstore/internal/watcher"
)

type commonFlags struct {
	config     *string
	debug      *bool
	collection *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:     fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		collection: fs.String("collection", "cases", "collection name"),
	}
}

func (c commonFlags) open(ctx context.Context) *app {
	a, err := openApp(ctx, *c.config, *c.debug)
	if err != nil {
		fatalf("%v", err)
	}
	return a
}

func (a *app) store(name string) *retrieval.Store {
	st, err := a.registry.Get(name)
	if err != nil {
		a.Close()
		fatalf("%v (configured: %v)", err, a.registry.Names())
	}
	return st
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	follow := fs.Bool("follow", false, "reload file-backed collections when their snapshots change")
	_ = fs.Parse(args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := common.open(ctx)
	defer a.Close()
	logger := a.logger

	if *follow || a.cfg.Follow.Enabled {
		f := newFollower(ctx, a)
		if err := f.Start(); err != nil {
			logger.Fatal("Failed to start follower", zap.Error(err))
		}
		defer f.Stop()
	}

	srv := server.NewServer(a.registry, a.cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if !*follow && !a.cfg.Follow.Enabled {
		if err := a.registry.SaveAll(); err != nil {
			logger.Warn("save on shutdown failed", zap.Error(err))
		}
	}
}

// newFollower maps each file-backed collection's side table to its store.
func newFollower(ctx context.Context, a *app) *watcher.Follower {
	targets := make(map[string]watcher.Reloader)
	for _, cc := range a.cfg.Collections {
		if cc.Backend != config.BackendFile {
			continue
		}
		st, err := a.registry.Get(cc.Name)
		if err != nil {
			continue
		}
		_, side := retrieval.SnapshotPaths(a.cfg.Storage.SnapshotDir, cc.Name)
		targets[filepath.Base(side)] = st
	}
	debounce := time.Duration(a.cfg.Follow.DebounceMs) * time.Millisecond
	return watcher.NewFollower(ctx, a.cfg.Storage.SnapshotDir, targets, debounce, a.logger)
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	common := addCommonFlags(fs)
	all := fs.Bool("all", false, "rebuild every collection")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	a := common.open(ctx)
	defer a.Close()

	results := map[string]*retrieval.BuildResult{}
	if *all {
		results, err = a.registry.BuildAll(ctx)
	} else {
		var res *retrieval.BuildResult
		res, err = a.store(*common.collection).Build(ctx)
		results[*common.collection] = res
	}
	if err != nil {
		a.Close()
		fatalf("Build failed: %v", err)
	}
	if err := a.registry.SaveAll(); err != nil {
		a.logger.Warn("save failed", zap.Error(err))
	}
	if format == cli.OutputJSON {
		_ = cli.WriteJSON(os.Stdout, results)
		return
	}
	for _, name := range a.registry.Names() {
		if res, ok := results[name]; ok {
			fmt.Printf("%-12s %d vectors, dim %d, %s (build %s)\n", name, res.Count, res.Dimensions, res.Duration.Round(time.Millisecond), res.BuildID)
		}
	}
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	common := addCommonFlags(fs)
	replace := fs.Bool("replace", false, "truncate the collection and rebuild it from the input")
	deidentify := fs.Bool("deidentify", false, "mask personal data in transcripts")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		fatalf("Usage: simstore ingest [flags] <file>...")
	}

	ctx := context.Background()
	a := common.open(ctx)
	defer a.Close()
	st := a.store(*common.collection)

	ld := loader.New(loader.WithLogger(a.logger), loader.WithDeidentify(*deidentify))
	var docs []*models.Document
	for _, path := range fs.Args() {
		loaded, err := ld.Load(path)
		if err != nil {
			a.Close()
			fatalf("Load failed: %v", err)
		}
		docs = append(docs, loaded...)
	}

	var result interface{}
	var err error
	if *replace {
		result, err = st.Replace(ctx, docs)
	} else {
		result, err = st.Upsert(ctx, docs)
	}
	if err != nil {
		a.Close()
		fatalf("Ingest failed: %v", err)
	}
	_ = cli.WriteJSON(os.Stdout, result)
}

// parseMinScore returns nil for an empty flag value.
func parseMinScore(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --min-score %q: %w", s, err)
	}
	return &v, nil
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	common := addCommonFlags(fs)
	k := fs.Int("k", 0, "number of results (0 = config default)")
	category := fs.String("category", "", "only return hits in this category")
	minScoreFlag := fs.String("min-score", "", "drop hits scoring below this value")
	serverURL := fs.String("server", "", "server URL (empty = open the store directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}
	minScore, err := parseMinScore(*minScoreFlag)
	if err != nil {
		fatalf("%v", err)
	}
	req := &models.SearchRequest{
		Query:    buildSearchQuery(fs.Args()),
		K:        *k,
		Category: *category,
		MinScore: minScore,
	}
	if req.Query == "" {
		fatalf("Usage: simstore search [flags] <query>")
	}

	var out *cli.SearchOutput
	if *serverURL != "" {
		out, err = searchViaHTTP(*serverURL, *common.collection, req)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
	} else {
		ctx := context.Background()
		a := common.open(ctx)
		defer a.Close()
		if err := req.Validate(a.cfg.Retrieval.DefaultK, a.cfg.Retrieval.MaxK); err != nil {
			a.Close()
			fatalf("%v", err)
		}
		st := a.store(*common.collection)
		hits, err := st.Search(ctx, req.Query, retrieval.SearchOptions{K: req.K, Category: req.Category, MinScore: req.MinScore})
		if err != nil {
			a.Close()
			fatalf("Search failed: %v", err)
		}
		out = &cli.SearchOutput{Collection: st.Name(), Query: req.Query, Results: hits}
	}
	if err := cli.WriteHits(os.Stdout, out, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func searchViaHTTP(serverURL, collection string, req *models.SearchRequest) (*cli.SearchOutput, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	endpoint := serverURL + "/api/v1/collections/" + url.PathEscape(collection) + "/search"
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out cli.SearchOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	common := addCommonFlags(fs)
	text := fs.String("text", "", "delete by content (content-addressed collections)")
	_ = fs.Parse(argsReorder(args))

	var id int64
	if *text == "" {
		if fs.NArg() != 1 {
			fatalf("Usage: simstore delete [flags] <id>")
		}
		var err error
		id, err = strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			fatalf("id must be an integer: %q", fs.Arg(0))
		}
	}

	ctx := context.Background()
	a := common.open(ctx)
	defer a.Close()
	st := a.store(*common.collection)

	var res *retrieval.DeleteResult
	var err error
	if *text != "" {
		res, err = st.DeleteText(ctx, *text)
	} else {
		res, err = st.Delete(ctx, id)
	}
	if err != nil {
		a.Close()
		fatalf("Delete failed: %v", err)
	}
	if !res.Removal.OK {
		a.logger.Warn("vector removal failed; run build to clear ghost entries", zap.String("error", res.Removal.Message()))
	}
	_ = cli.WriteJSON(os.Stdout, res)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	common := addCommonFlags(fs)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	a := common.open(ctx)
	defer a.Close()

	names := a.registry.Names()
	if isFlagSet(fs, "collection") {
		names = []string{*common.collection}
	}
	var stats []*models.Stats
	for _, name := range names {
		st, err := a.store(name).Stats(ctx)
		if err != nil {
			a.Close()
			fatalf("Stats failed: %v", err)
		}
		stats = append(stats, st)
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
