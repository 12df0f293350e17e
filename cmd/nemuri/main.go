// Package main is the nemuri CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nemuri/internal/catalog"
	"github.com/hyperjump/nemuri/internal/cli"
	"github.com/hyperjump/nemuri/internal/config"
	"github.com/hyperjump/nemuri/internal/export"
	"github.com/hyperjump/nemuri/internal/score"
	"github.com/hyperjump/nemuri/internal/server"
	"github.com/hyperjump/nemuri/internal/staging"
	"github.com/hyperjump/nemuri/internal/stats"
	"github.com/hyperjump/nemuri/internal/watcher"
	"github.com/hyperjump/nemuri/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/nemuri/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "nemuri server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// resolveDocument picks the annotation document to operate on: the -document
// flag wins, then the config's annotations path.
func resolveDocument(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg != nil && cfg.Annotations.Path != "" {
		return cfg.Annotations.Path, nil
	}
	return "", fmt.Errorf("no annotation document: pass -document or set annotations.path in config")
}

// splitStages turns a comma-separated stage list into a store filter. Empty
// input means no filter (all epochs).
func splitStages(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "rater":
		runRater()
	case "epochs":
		runEpochs()
	case "stage":
		runStage()
	case "stats":
		runStats()
	case "export":
		runExport()
	case "import":
		runImport()
	case "catalog":
		runCatalog()
	case "version", "--version", "-v":
		fmt.Printf("nemuri version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := newFlagSet("server")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	document := fs.String("document", "", "annotation document path (overrides config)")
	debug := fs.Bool("debug", false, "enable debug logging (stage changes, reloads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	docPath, err := resolveDocument(*document, cfg)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("document", docPath),
		zap.Bool("debug", debugMode),
	)

	store, err := score.Open(docPath, score.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to open annotation document", zap.Error(err))
	}
	defer store.Close()

	cat, err := catalog.NewSQLiteCatalog(cfg.Catalog.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open catalog", zap.Error(err))
	}
	defer cat.Close()
	if err := cat.Upsert(context.Background(), catalogEntry(store)); err != nil {
		logger.Warn("catalog update failed", zap.Error(err))
	}

	var watch *watcher.Watcher
	if cfg.Watch.EnabledOrDefault() {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		if cfg.Watch.DebounceMS > 0 {
			watchOpts = append(watchOpts, watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond))
		}
		watch = watcher.New(docPath, func(path string) {
			if err := store.Reload(); err != nil {
				logger.Warn("reload after external change failed", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watch.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watch.Stop()
	}

	srv := server.NewServer(store, cat, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// catalogEntry builds the catalog row describing an open store.
func catalogEntry(store *score.Store) *catalog.Entry {
	epochs := store.Epochs(nil)
	seconds := 0
	for _, e := range epochs {
		seconds += e.EndTime - e.StartTime
	}
	return &catalog.Entry{
		Path:          store.Path(),
		Rater:         store.Rater(),
		EpochCount:    len(epochs),
		ScoredSeconds: seconds,
	}
}

// openDocument is the shared plumbing for read-only subcommands: resolve the
// document path from flags and config, then open the store.
func openDocument(configPath, document string) *score.Store {
	cfg, _, err := loadConfig(configPath)
	if err != nil && document == "" {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	docPath, err := resolveDocument(document, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	store, err := score.Open(docPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open annotation document: %v\n", err)
		os.Exit(1)
	}
	return store
}

func parseFormatOrExit(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	return format
}

func runRater() {
	fs := newFlagSet("rater")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	document := fs.String("document", "", "annotation document path (overrides config)")
	_ = fs.Parse(os.Args[2:])

	store := openDocument(*configPath, *document)
	defer store.Close()
	for _, name := range store.Raters() {
		fmt.Println(name)
	}
}

func runEpochs() {
	fs := newFlagSet("epochs")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	document := fs.String("document", "", "annotation document path (overrides config)")
	stagesFlag := fs.String("stages", "", "comma-separated stage filter (empty = all)")
	outputFormat := fs.String("output", "text", "output format: text, table, or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormatOrExit(*outputFormat)
	store := openDocument(*configPath, *document)
	defer store.Close()

	epochs := store.Epochs(splitStages(*stagesFlag))
	if err := cli.WriteEpochs(os.Stdout, store.Rater(), epochs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStage() {
	fs := newFlagSet("stage")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	document := fs.String("document", "", "annotation document path (overrides config)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: nemuri stage [flags] <epoch-id> [new-stage]")
		os.Exit(1)
	}
	store := openDocument(*configPath, *document)
	defer store.Close()

	id := fs.Arg(0)
	if fs.NArg() == 1 {
		stage, err := store.Stage(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Println(stage)
		return
	}
	newStage := fs.Arg(1)
	if err := store.SetStage(id, newStage); err != nil {
		fmt.Fprintf(os.Stderr, "Set stage failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Epoch %s scored as %s\n", id, newStage)
}

func runStats() {
	fs := newFlagSet("stats")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	document := fs.String("document", "", "annotation document path (overrides config)")
	sleepStages := fs.String("sleep-stages", "", "comma-separated stages that count as sleep (default: standard stages)")
	outputFormat := fs.String("output", "text", "output format: text, table, or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormatOrExit(*outputFormat)
	store := openDocument(*configPath, *document)
	defer store.Close()

	sum := stats.Compute(store.Rater(), store.Epochs(nil), splitStages(*sleepStages))
	if err := cli.WriteSummary(os.Stdout, sum, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExport() {
	fs := newFlagSet("export")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	document := fs.String("document", "", "annotation document path (overrides config)")
	stagesFlag := fs.String("stages", "", "comma-separated stage filter (empty = all)")
	exportFormat := fs.String("format", "csv", "export format: csv or xlsx")
	out := fs.String("out", "", "output file (required for xlsx; default stdout for csv)")
	summary := fs.Bool("summary", false, "export the stage summary instead of the epoch list (csv only)")
	_ = fs.Parse(os.Args[2:])

	store := openDocument(*configPath, *document)
	defer store.Close()
	epochs := store.Epochs(splitStages(*stagesFlag))

	switch *exportFormat {
	case "csv":
		w := os.Stdout
		if *out != "" {
			f, err := os.Create(*out)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
			w = f
		}
		var err error
		if *summary {
			err = export.WriteSummaryCSV(w, stats.Compute(store.Rater(), epochs, nil))
		} else {
			err = export.WriteEpochsCSV(w, epochs)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
	case "xlsx":
		if *out == "" {
			fmt.Fprintln(os.Stderr, "xlsx export requires -out <file>")
			os.Exit(1)
		}
		sum := stats.Compute(store.Rater(), epochs, nil)
		if err := export.WriteWorkbookXLSX(*out, epochs, sum); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d epoch(s) to %s\n", len(epochs), *out)
	default:
		fmt.Fprintf(os.Stderr, "Unknown export format %q; use csv or xlsx\n", *exportFormat)
		os.Exit(1)
	}
}

func runImport() {
	fs := newFlagSet("import")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	source := fs.String("source", string(staging.SourcePlain), "input format: plain, remlogic, or domino")
	rater := fs.String("rater", "", "rater name for the new document (required)")
	epochLength := fs.Int("epoch-length", 0, "epoch length in seconds (default from config, or 30)")
	out := fs.String("out", "", "annotation document to create (required)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: nemuri import [flags] <stage-listing-file>")
		os.Exit(1)
	}
	if *rater == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "import requires -rater and -out")
		os.Exit(1)
	}

	length := *epochLength
	if length == 0 {
		if cfg, _, err := loadConfig(*configPath); err == nil {
			length = cfg.Staging.EpochLength
		}
	}
	if length == 0 {
		length = 30
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	doc, err := staging.Import(f, staging.Source(*source), *rater, length)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	store, err := score.Create(*out, doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create annotation document: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	fmt.Printf("Created %s with %d epoch(s) for rater %s\n", *out, len(doc.Raters[0].Epochs), *rater)
}

func runCatalog() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: nemuri catalog <add|list|remove> [path]")
		fmt.Println("  nemuri catalog add <document>     Register an annotation document")
		fmt.Println("  nemuri catalog remove <document>  Remove a document from the catalog")
		fmt.Println("  nemuri catalog list               List cataloged documents")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := newFlagSet("catalog")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text, table, or json")
	_ = fs.Parse(os.Args[3:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cat, err := catalog.NewSQLiteCatalog(cfg.Catalog.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer cat.Close()
	ctx := context.Background()

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: nemuri catalog add <document>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		store, err := score.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open annotation document: %v\n", err)
			os.Exit(1)
		}
		entry := catalogEntry(store)
		store.Close()
		if err := cat.Upsert(ctx, entry); err != nil {
			fmt.Fprintf(os.Stderr, "Catalog add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Cataloged: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: nemuri catalog remove <document>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := cat.Remove(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "Catalog remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		format := parseFormatOrExit(*outputFormat)
		entries, err := cat.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Catalog list failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteCatalog(os.Stdout, entries, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unknown catalog subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`nemuri - sleep stage annotation store

Usage:
  nemuri server [flags]             Start the HTTP server over one document
  nemuri rater [flags]              Show rater name(s) in the document
  nemuri epochs [flags]             List scored epochs
  nemuri stage [flags] <id> [stage] Show or set the stage of one epoch
  nemuri stats [flags]              Show the sleep stage summary
  nemuri export [flags]             Export epochs or summary to CSV/XLSX
  nemuri import [flags] <file>      Create a document from a stage listing
  nemuri catalog <add|list|remove>  Manage the document catalog
  nemuri version                    Show version
  nemuri help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/nemuri/config.yaml)
  --document string  Annotation document path (overrides annotations.path in config)
  --output string    Output format: text, table, or json (default: text)

Server Flags:
  --debug            Enable debug logging (stage changes, reloads, etc.)

Epochs/Export Flags:
  --stages string    Comma-separated stage filter, e.g. NREM2,REM (empty = all)

Export Flags:
  --format string    csv or xlsx (default: csv)
  --out string       Output file (required for xlsx; default stdout for csv)
  --summary          Export the stage summary instead of the epoch list (csv only)

Import Flags:
  --source string        plain, remlogic, or domino (default: plain)
  --rater string         Rater name for the new document (required)
  --epoch-length int     Epoch length in seconds (default from config, or 30)
  --out string           Annotation document to create (required)

Examples:
  nemuri server
  nemuri epochs --document night1.xml --stages NREM2,REM
  nemuri stage --document night1.xml e42 REM
  nemuri stats --document night1.xml --output table
  nemuri export --document night1.xml --format xlsx --out night1.xlsx
  nemuri import --source remlogic --rater Alice --out night1.xml events.txt
  nemuri catalog add night1.xml
  nemuri catalog list`)
}
