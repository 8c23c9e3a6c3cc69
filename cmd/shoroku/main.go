// Package main is the Shoroku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/shoroku/internal/cli"
	"github.com/hyperjump/shoroku/internal/config"
	"github.com/hyperjump/shoroku/internal/embedding"
	"github.com/hyperjump/shoroku/internal/indexer"
	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/records"
	"github.com/hyperjump/shoroku/internal/search"
	"github.com/hyperjump/shoroku/internal/server"
	"github.com/hyperjump/shoroku/internal/storage"
	"github.com/hyperjump/shoroku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shoroku/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence; when neither exists, built-in defaults plus the environment
// (and .env) are used. Returns the config and the path actually loaded, "" for defaults.
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
			cfg := config.Default()
			config.ApplyEnv(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	var err error
	switch args[0] {
	case "load":
		err = runLoad(args[1:], stdout, stderr)
	case "embed":
		err = runEmbed(args[1:], stdout, stderr)
	case "query":
		err = runQuery(args[1:], stdout, stderr)
	case "server":
		err = runServer(args[1:], stderr)
	case "status":
		err = runStatus(args[1:], stdout, stderr)
	case "delete":
		err = runDelete(args[1:], stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "shoroku version %s\n", version)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if indexer.Retriable(err) {
			fmt.Fprintln(stderr, "The embedding provider is unavailable; nothing was stored. Run the command again later.")
		}
		return 1
	}
	return 0
}

// commonFlags registers the flags every data command accepts.
type commonFlags struct {
	configPath *string
	debug      *bool
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs, commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// reorderArgs moves flags that follow positional arguments to the front, so
// "shoroku query heart failure --limit 5" parses like "shoroku query --limit 5 heart failure".
func reorderArgs(args []string) []string {
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

func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Storage  *storage.SQLiteStorage
	Embedder embedding.Embedder
	Engine   *search.Engine
	Indexer  *indexer.Indexer
}

// Close releases the store and the embedding provider.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	_ = c.Logger.Sync()
}

// setup loads config and opens the store. The embedding provider, and with it the
// ingestion pipeline, is only built when withEmbedder is set, so that commands that
// never embed work without provider credentials.
func setup(flags commonFlags, withEmbedder bool, configure func(*config.Config) error) (*Components, error) {
	cfg, resolved, err := loadConfig(*flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if configure != nil {
		if err := configure(cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	debug := cfg.Debug || *flags.debug
	var logger *zap.Logger
	if debug {
		logger, err = utils.NewLogger(true)
	} else {
		logger, err = utils.NewQuietLogger()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return initializeComponents(cfg, logger, withEmbedder)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withEmbedder bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, cfg.Embedding.Dimensions,
		storage.WithDriver(cfg.Storage.Driver), storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Config: cfg, Logger: logger, Storage: store}

	var pipeline *indexer.Pipeline
	if withEmbedder {
		c.Embedder, err = embedding.NewFromConfig(&cfg.Embedding, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
		}
		pipeline, err = indexer.NewPipeline(store, c.Embedder, &cfg.Ingest, indexer.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
		}
	}
	c.Engine = search.NewEngine(store, c.Embedder, search.WithLogger(logger))
	c.Indexer = indexer.NewIndexer(store, pipeline, indexer.WithIndexerLogger(logger))
	return c, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runLoad(args []string, stdout, stderr io.Writer) error {
	fs, flags := newFlagSet("load", stderr)
	embed := fs.Bool("embed", false, "embed the loaded documents right away")
	output := fs.String("output", "text", "output format for the ingestion report: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shoroku load [flags] <file-or-directory>...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("load needs at least one path")
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	c, err := setup(flags, *embed, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	loader := records.NewLoader(records.WithLogger(c.Logger))
	all := &records.Result{}
	for _, path := range fs.Args() {
		res, err := loader.LoadPath(path)
		if err != nil {
			return err
		}
		all.Merge(res)
	}
	for _, s := range all.Skipped {
		fmt.Fprintf(stderr, "skipped (no abstract): %s\n", s)
	}
	if len(all.Documents) == 0 {
		fmt.Fprintln(stdout, "No documents with an abstract found.")
		return nil
	}

	ctx, stop := interruptContext()
	defer stop()
	report, err := c.Indexer.AddDocuments(ctx, all.Documents, *embed)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Loaded %d document(s), skipped %d without abstract\n", len(all.Documents), len(all.Skipped))
	if report != nil {
		return cli.WriteReport(stdout, report, format)
	}
	return nil
}

func runEmbed(args []string, stdout, stderr io.Writer) error {
	fs, flags := newFlagSet("embed", stderr)
	chunkSize := fs.Int("chunk-size", 0, "characters per chunk (default from config)")
	chunkOverlap := fs.Int("chunk-overlap", -1, "overlapping characters between consecutive chunks (default from config)")
	pending := fs.Bool("pending", true, "embed stored documents that have no chunks yet")
	limit := fs.Int("limit", 0, "maximum number of pending documents to embed (0 = all)")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shoroku embed [flags] [document-id...]\n\n")
		fmt.Fprintf(fs.Output(), "Without ids, every pending document is split, embedded and stored as one batch.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 && !*pending {
		fs.Usage()
		return fmt.Errorf("nothing to embed: pass document ids or --pending")
	}

	c, err := setup(flags, true, func(cfg *config.Config) error {
		if *chunkSize > 0 {
			cfg.Ingest.ChunkSize = *chunkSize
		}
		if *chunkOverlap >= 0 {
			cfg.Ingest.SetOverlap(*chunkOverlap)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := interruptContext()
	defer stop()
	var report *indexer.Report
	if fs.NArg() > 0 {
		report, err = c.Indexer.EmbedDocuments(ctx, fs.Args())
	} else {
		report, err = c.Indexer.EmbedPending(ctx, *limit)
	}
	if err != nil {
		if stage := indexer.FailedStage(err); stage != "" {
			c.Logger.Warn("embedding run failed", zap.String("stage", string(stage)), zap.Error(err))
		}
		return err
	}
	return cli.WriteReport(stdout, report, format)
}

func runQuery(args []string, stdout, stderr io.Writer) error {
	fs, flags := newFlagSet("query", stderr)
	limit := fs.Int("limit", 0, "number of results (default from config)")
	output := fs.String("output", "text", "output format: text or json")
	maxText := fs.Int("max-text", 0, "truncate the printed abstract to this many characters (0 = full text)")
	serverURL := fs.String("server", "", "query a running server at this URL instead of the local database")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shoroku query [flags] <text>\n\n")
		fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	text := buildQuery(fs.Args())
	if text == "" {
		fs.Usage()
		return fmt.Errorf("query text is required")
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	q := &models.SearchQuery{Query: text, Limit: *limit}

	if *serverURL != "" {
		resp, err := queryViaHTTP(*serverURL, q)
		if err != nil {
			return err
		}
		return cli.WriteSearchResults(stdout, resp, format, *maxText)
	}

	c, err := setup(flags, true, nil)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := search.ProcessQuery(q, c.Config.Query.DefaultLimit); err != nil {
		return err
	}
	ctx, stop := interruptContext()
	defer stop()
	resp, err := c.Engine.Search(ctx, q)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(stdout, resp, format, *maxText)
}

func queryViaHTTP(serverURL string, q *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runServer(args []string, stderr io.Writer) error {
	fs, flags := newFlagSet("server", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, resolved, err := loadConfig(*flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || *flags.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))

	c, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := server.NewServer(c.Engine, c.Indexer, c.Storage, cfg, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	ctx, stop := interruptContext()
	defer stop()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runStatus(args []string, stdout, stderr io.Writer) error {
	fs, flags := newFlagSet("status", stderr)
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	c, err := setup(flags, false, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	docs, err := c.Storage.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("count documents failed: %w", err)
	}
	recs, err := c.Storage.CountRecords(ctx)
	if err != nil {
		return fmt.Errorf("count records failed: %w", err)
	}
	disk, err := c.Storage.DiskUsage()
	if err != nil {
		c.Logger.Warn("disk usage unavailable", zap.Error(err))
	}
	return cli.WriteStatus(stdout, &cli.Status{
		Documents:      docs,
		Records:        recs,
		Dimensions:     c.Storage.Dimensions(),
		DiskUsageBytes: disk,
		DatabasePath:   c.Storage.Path(),
		Driver:         c.Storage.Driver(),
		Provider:       c.Config.Embedding.Provider,
		Model:          c.Config.Embedding.Model,
	}, format)
}

func runDelete(args []string, stdout, stderr io.Writer) error {
	fs, flags := newFlagSet("delete", stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shoroku delete [flags] <document-id>...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("delete needs a document id")
	}
	c, err := setup(flags, false, nil)
	if err != nil {
		return err
	}
	defer c.Close()
	for _, id := range fs.Args() {
		if err := c.Indexer.DeleteDocument(context.Background(), id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Document deleted: %s\n", id)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `shoroku - semantic search over literature abstracts

Usage:
  shoroku load [flags] <path>...     Load records (.json, .jsonl, .xlsx, .txt, .md, .rst, .pdf, .docx)
  shoroku embed [flags] [id...]      Split, embed and store pending documents as one batch
  shoroku query [flags] <text>       Find the abstract passages closest to text
  shoroku server [flags]             Start the HTTP server
  shoroku status [flags]             Show database and provider status
  shoroku delete [flags] <id>...     Delete documents and their passages
  shoroku version                    Show version
  shoroku help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/shoroku/config.yaml,
                     ./config.yaml when present, built-in defaults otherwise)
  --debug            Enable debug logging

Load Flags:
  --embed            Embed the loaded documents right away
  --output string    Report format: text or json

Embed Flags:
  --chunk-size int      Characters per chunk (default 500)
  --chunk-overlap int   Overlapping characters between chunks (default 100)
  --pending             Embed documents without chunks (default true)
  --limit int           Maximum number of pending documents (0 = all)

Query Flags:
  --limit int        Number of results (default 3)
  --output string    Output format: text or json
  --max-text int     Truncate the printed abstract (0 = full text)
  --server string    Query a running server instead of the local database

Environment:
  GOOGLE_API_KEY / OPENAI_API_KEY   Provider credentials (also read from .env)
  SHOROKU_DATABASE_PATH             Database file (DATABASE_URL=sqlite:///path also works)

Examples:
  shoroku load --embed pubmed_data.jsonl
  shoroku embed --chunk-size 400 --chunk-overlap 50
  shoroku query --limit 5 "cardiac output after surgery"
  shoroku query --output json heart failure
  shoroku delete 38000001`)
}
