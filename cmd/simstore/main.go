// Package main is the simstore CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/simstore/internal/config"
	"github.com/hyperjump/simstore/internal/retrieval"
	"github.com/hyperjump/simstore/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/simstore/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; when neither exists, built-in defaults are used.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", cfg.Validate()
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// app bundles what every command needs after startup.
type app struct {
	cfg      *config.Config
	registry *retrieval.Registry
	logger   *zap.Logger
}

func openApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	reg, err := retrieval.Open(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open collections: %w", err)
	}
	return &app{cfg: cfg, registry: reg, logger: logger}, nil
}

func (a *app) Close() {
	if err := a.registry.Close(); err != nil {
		a.logger.Warn("close collections", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after positional arguments
// to the front so that flag.Parse() sees them. Go's flag package stops at the first
// non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "serve", "server":
		runServe(args)
	case "build":
		runBuild(args)
	case "ingest":
		runIngest(args)
	case "search":
		runSearch(args)
	case "delete":
		runDelete(args)
	case "stats", "status":
		runStats(args)
	case "version", "--version", "-v":
		fmt.Printf("simstore version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`simstore - vector retrieval store for case, guide, and keyword collections

Usage:
  simstore serve [flags]                          Start the HTTP API
  simstore build [flags]                          Rebuild vector indexes from the record store
  simstore ingest [flags] <file>...               Upsert documents from .json, .xlsx, .pdf, .docx, .odt, .rtf, .txt, .md
  simstore search [flags] <query>                 Search a collection
  simstore delete [flags] <id>                    Delete a document (or --text for keyword collections)
  simstore stats [flags]                          Show durable and indexed counts per collection
  simstore version                                Show version

Common Flags:
  --config string      Config file path (default: /usr/local/etc/simstore/config.yaml, or ./config.yaml)
  --debug              Enable debug logging
  --collection string  Collection name (default: cases)

Serve Flags:
  --follow             Reload file-backed collections when another process rewrites their snapshots

Build Flags:
  --all                Rebuild every collection

Ingest Flags:
  --replace            Truncate the collection and rebuild it from the input
  --deidentify         Mask names, phone numbers, accounts, and URLs in transcripts

Search Flags:
  --k int              Number of results (default from config)
  --category string    Only return hits in this category
  --min-score float    Drop hits scoring below this value
  --server string      Query a running server instead of opening the store directly
  --output string      Output format: text or json (default: text)

Examples:
  simstore serve
  simstore ingest --collection cases cases.json
  simstore ingest --collection case_text --deidentify transcripts.xlsx
  simstore search --collection cases --min-score 0.3 "password request"
  simstore delete --collection keywords --text "gift card"
  simstore stats --output json`)
}
