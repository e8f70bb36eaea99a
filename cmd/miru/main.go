// Package main is the miru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/miru/internal/cli"
	"github.com/hyperjump/miru/internal/config"
	"github.com/hyperjump/miru/internal/indexer"
	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/search"
	"github.com/hyperjump/miru/internal/server"
	"github.com/hyperjump/miru/internal/storage"
	"github.com/hyperjump/miru/internal/watcher"
	"github.com/hyperjump/miru/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/miru/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and a missing default file means built-in defaults.
// A .env file in the working directory and MIRU_* variables are applied last.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg, ".env"); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func readConfigFile(path string) (*config.Config, string, error) {
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	args := os.Args[2:]
	switch command := os.Args[1]; command {
	case "index":
		os.Exit(runIndex(args, os.Stdout, os.Stderr))
	case "search":
		os.Exit(runSearch(args, os.Stdin, os.Stdout, os.Stderr))
	case "server":
		os.Exit(runServer(args, os.Stderr))
	case "status":
		os.Exit(runStatus(args, os.Stdout, os.Stderr))
	case "init":
		os.Exit(runInit(args, os.Stdout, os.Stderr))
	case "version", "--version", "-v":
		fmt.Printf("miru version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func runIndex(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	appendMode := fs.Bool("append", false, "add to the existing database instead of rebuilding it")
	replace := fs.Bool("replace", false, "replace catalogs whose name already exists")
	recursive := fs.Bool("recursive", false, "also index PDFs in subdirectories")
	workers := fs.Int("workers", 0, "documents processed in parallel (default from config)")
	output := fs.String("output", "text", "report format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		cfg.Paths.KnowledgeBase = fs.Arg(0)
	}
	if *workers > 0 {
		cfg.Ingest.Workers = *workers
	}
	if *replace {
		cfg.Ingest.Replace = true
	}
	if *recursive {
		cfg.Ingest.Recursive = true
	}

	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, indexer.WithAppend(*appendMode))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer components.Close()

	if !components.Rasterizer.Available() {
		fmt.Fprintf(stderr, "pdftoppm not found (%s); install poppler-utils or set ingest.pdftoppm_path\n", cfg.Ingest.PdftoppmPath)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := components.Indexer.Rebuild(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Indexing failed: %v\n", err)
		return 1
	}
	if *output == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "Output failed: %v\n", err)
			return 1
		}
		return 0
	}
	report.WriteText(stdout)
	return 0
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: miru search [flags] <image-path|data-url|base64|-> [top_k]\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The result is a single JSON document on stdout: {"success":true,...} or {"error":"..."}.
Large payloads should be piped with --stdin (or "-") instead of passed as an argument.

Examples:
  miru search photo.jpg
  miru search photo.jpg 10
  base64 -w0 photo.jpg | miru search --stdin --top-k 3
  miru search --stdin 10 < photo.png
  miru search --stdin < photo.png
  miru search --text "red armchair"
`)
}

// searchValueFlags are the search flags that consume the following argument.
var searchValueFlags = map[string]bool{"config": true, "top-k": true, "output": true, "server": true}

// searchArgsReorder puts every flag (with its value) ahead of every positional argument
// so flag.Parse sees them wherever they were typed. A lone "-" means stdin and is
// positional, as is a negative number meant as top_k. Anything after "--" is positional.
func searchArgsReorder(args []string) []string {
	flags := make([]string, 0, len(args))
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' || isInteger(a) {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if !strings.Contains(name, "=") && searchValueFlags[name] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	for _, p := range positional {
		if len(p) > 1 && p[0] == '-' {
			flags = append(flags, "--")
			break
		}
	}
	return append(flags, positional...)
}

func isInteger(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func runSearch(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	fromStdin := fs.Bool("stdin", false, "read the query payload from standard input")
	textMode := fs.Bool("text", false, "treat the query as a text description")
	topKFlag := fs.Int("top-k", 0, "number of results (default from config, 5)")
	output := fs.String("output", "json", "output format: json or text")
	serverURL := fs.String("server", "", "query a running miru server instead of the database file")
	fs.Usage = func() { printSearchUsage(fs) }
	if err := fs.Parse(searchArgsReorder(args)); err != nil {
		return 2
	}
	format := cli.SearchOutputFormat(*output)
	fail := func(err error) int {
		_ = cli.WriteError(stdout, err, format)
		return 1
	}

	// With --stdin the payload comes from standard input, so the first positional is top_k.
	positional := fs.Args()
	if *fromStdin && len(positional) > 0 && positional[0] != "-" {
		positional = append([]string{"-"}, positional...)
	}
	if len(positional) > 2 {
		return fail(fmt.Errorf("%w: unexpected arguments %q", search.ErrInvalidQuery, positional[2:]))
	}
	var input string
	if len(positional) > 0 {
		input = positional[0]
	}
	if input == "" && !*fromStdin {
		printSearchUsage(fs)
		return fail(search.ErrEmptyQuery)
	}
	topK := *topKFlag
	if len(positional) > 1 {
		n, err := strconv.Atoi(positional[1])
		if err != nil {
			return fail(fmt.Errorf("%w: %q", search.ErrInvalidTopK, positional[1]))
		}
		if topK == 0 {
			topK = n
		}
		if n <= 0 {
			return fail(fmt.Errorf("%w: got %d", search.ErrInvalidTopK, n))
		}
	}
	if topK < 0 {
		return fail(fmt.Errorf("%w: got %d", search.ErrInvalidTopK, topK))
	}

	query := &models.SearchQuery{TopK: topK}
	if *textMode {
		text, err := cli.ReadQueryText(input, *fromStdin, stdin)
		if err != nil {
			return fail(err)
		}
		query.Text = text
	} else {
		image, err := cli.ReadQueryImage(input, *fromStdin, stdin)
		if err != nil {
			return fail(err)
		}
		query.Image = base64.StdEncoding.EncodeToString(image)
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		resp, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			return fail(err)
		}
		response = resp
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			return fail(fmt.Errorf("load config: %w", err))
		}
		logger, err := utils.NewQuietLogger(cfg.Debug)
		if err != nil {
			return fail(err)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			return fail(err)
		}
		defer components.Close()
		resp, err := components.Service.Search(context.Background(), query)
		if err != nil {
			return fail(err)
		}
		response = resp
	}

	if err := cli.WriteSearchResults(stdout, response, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e models.ErrorResponse
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runServer(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "rebuild the database when catalog PDFs change")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize components", zap.Error(err))
		return 1
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Watch.Enabled || *watch {
		w := watcher.NewWatcher(cfg.Paths.KnowledgeBase,
			func(ctx context.Context, changed []string) {
				if _, err := components.Indexer.Rebuild(ctx); err != nil {
					logger.Warn("watch rebuild failed", zap.Strings("changed", changed), zap.Error(err))
				}
			},
			watcher.WithDebounce(cfg.Watch.Debounce),
			watcher.WithRecursive(cfg.Ingest.Recursive),
			watcher.WithLogger(logger),
		)
		if err := w.Start(ctx); err != nil {
			logger.Error("Failed to start watcher", zap.Error(err))
			return 1
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Service, components.Indexer, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	return 0
}

// statusResponse mirrors GET /api/v1/status.
type statusResponse struct {
	Database       string `json:"database"`
	Indexed        bool   `json:"indexed"`
	Version        string `json:"version,omitempty"`
	Model          string `json:"model,omitempty"`
	Created        string `json:"created,omitempty"`
	Catalogs       int    `json:"catalogs"`
	Pages          int    `json:"pages"`
	Dimension      int    `json:"dimension"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

func localStatus(cfg *config.Config) (*statusResponse, error) {
	status := &statusResponse{Database: cfg.Paths.Database}
	db, err := storage.Load(cfg.Paths.Database)
	switch {
	case err == nil:
		status.Indexed = true
		status.Version = db.Version
		status.Model = db.Model
		if !db.Created.IsZero() {
			status.Created = db.Created.Format(time.RFC3339Nano)
		}
		status.Catalogs = len(db.Catalogs)
		status.Pages = db.TotalPages()
		status.Dimension = db.Dimension()
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, err
	}
	if n, err := storage.DiskUsageBytes(cfg.Paths.Database, cfg.Paths.OutputDir); err == nil {
		status.DiskUsageBytes = &n
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the database file)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var (
		status *statusResponse
		err    error
	)
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		var cfg *config.Config
		cfg, _, err = loadConfig(*configPath)
		if err == nil {
			status, err = localStatus(cfg)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Status failed: %v\n", err)
		return 1
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(stderr, "Output failed: %v\n", err)
			return 1
		}
	case "text":
		fmt.Fprintf(stdout, "database:           %s\n", status.Database)
		if !status.Indexed {
			fmt.Fprintln(stdout, "indexed:            false   # run `miru index` to build it")
		} else {
			fmt.Fprintf(stdout, "version:            %s\n", status.Version)
			fmt.Fprintf(stdout, "model:              %s\n", status.Model)
			fmt.Fprintf(stdout, "created:            %s\n", status.Created)
			fmt.Fprintf(stdout, "catalogs:           %d\n", status.Catalogs)
			fmt.Fprintf(stdout, "pages:              %d\n", status.Pages)
			fmt.Fprintf(stdout, "dimension:          %d\n", status.Dimension)
		}
		if status.DiskUsageBytes != nil {
			fmt.Fprintf(stdout, "disk_usage_bytes:   %d   # database + page images\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		return 1
	}
	return 0
}

// runInit writes the effective configuration to a file as a starting point.
func runInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Fprintf(stderr, "%s already exists; use --force to overwrite\n", *configPath)
		return 1
	}
	cfg := config.Default()
	if err := config.ApplyEnv(cfg, ".env"); err != nil {
		fmt.Fprintf(stderr, "Failed to read environment: %v\n", err)
		return 1
	}
	if err := config.Save(*configPath, cfg); err != nil {
		fmt.Fprintf(stderr, "Failed to write config: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s\n", *configPath)
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `miru - visual similarity search over catalog pages

Usage:
  miru index [flags] [dir]        Render catalog PDFs and build the embedding database
  miru search [flags] <image>     Find the catalog pages most similar to an image
  miru server [flags]             Start the HTTP server
  miru status [flags]             Show database status
  miru init [flags]               Write a default config file
  miru version                    Show version
  miru help                       Show this help

Index Flags:
  --config string    Config file path (default: /usr/local/etc/miru/config.yaml)
  --append           Add to the existing database instead of rebuilding it
  --replace          Replace catalogs whose name already exists
  --recursive        Also index PDFs in subdirectories
  --workers int      Documents processed in parallel
  --output string    Report format: text or json (default: text)

Search Flags:
  --stdin            Read the image (raw bytes, data URL or base64) from stdin
  --text             Treat the query as a text description
  --top-k int        Number of results (default: 5)
  --output string    json or text (default: json)
  --server string    Query a running server instead of the database file

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging
  --watch            Rebuild the database when catalog PDFs change

Status Flags:
  --server string    Server URL (empty = read the database file)
  --output string    text or json (default: text)

Examples:
  miru index
  miru index --append --replace ./new-catalogs
  miru search photo.jpg 10
  miru search --stdin < photo.png
  miru status --output json`)
}
