package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/bookbinder/internal/binder"
	"github.com/nao1215/bookbinder/internal/config"
	"github.com/nao1215/bookbinder/internal/crawler"
	"github.com/nao1215/bookbinder/internal/database"
	"github.com/nao1215/bookbinder/internal/log"
	"github.com/nao1215/bookbinder/internal/model"
	"github.com/nao1215/bookbinder/internal/pipeline"
	"github.com/nao1215/bookbinder/internal/report"
	"github.com/spf13/cobra"
)

// NewStitchCmd creates the stitch command.
func NewStitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stitch [start-url...]",
		Short: "Follow a chapter chain and bind it into one HTML document",
		Long: `Stitch follows the chain of "next chapter" links starting at each given
URL, fetches the chapter pages concurrently, and binds the collected
chapters into a single HTML document per start URL.

A page that fails to fetch truncates its chain: the chapters collected
before the failure are still bound and the failure is reported.

Examples:
  # Stitch a single book
  bookbinder stitch https://example.com/book/chapter-1

  # Stitch several books into a directory
  bookbinder stitch https://a.example/ch1 https://b.example/ch1 -o books/

  # Custom selectors for a site that marks chapters differently
  bookbinder stitch -c mysites.yaml https://example.com/book/chapter-1

  # Emit a Markdown run report next to the terminal output
  bookbinder stitch --markdown --report run.md https://example.com/book/chapter-1

Configuration file (.bookbinder) example:
  defaults:
    contentSelector: "main"
    nextSelector: "a[title='Next chapter']"
  sites:
    www.royalroad.com:
      contentSelector: "div.chapter-inner"
      nextSelector: "a[rel='next']"
      cookie: "session=abc123"`,
		Args: cobra.ArbitraryArgs,
		RunE: runStitchCmd,
	}

	// Chain walking flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of simultaneous page fetches per book")
	cmd.Flags().IntP("max-chapters", "d", config.DefaultMaxChapters,
		"Maximum chain length before the walk stops")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for each page fetch")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputPath,
		"Output file (single book) or directory (multiple books)")

	// Batch stitching flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of books stitched concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Site configuration file path (default: .bookbinder in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON run report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown run report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write the run report to the specified file instead of stdout")

	// Archive flags
	cmd.Flags().Bool("no-archive", false,
		"Do not save the run to the history database")

	return cmd
}

// runStitchCmd executes the stitch command.
func runStitchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}

	// Set up structured logging. Chapter fragments run to megabytes, so
	// the handler truncates oversized attribute values.
	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runStitch(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.MaxChapters, err = cmd.Flags().GetInt("max-chapters")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.OutputPath, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from the config file.
	// If the user explicitly specified a config file path, error if not
	// found. If no path specified, silently use an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report")
	if err != nil {
		return nil, err
	}

	noArchive, err := cmd.Flags().GetBool("no-archive")
	if err != nil {
		return nil, err
	}
	if !noArchive {
		cfg.SaveToDB = true
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Positional arguments are the chain start URLs
	cfg.StartURLs = args

	return cfg, nil
}

// runStitch executes the stitch run.
func runStitch(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting stitch",
		"startURLs", cfg.StartURLs,
		"concurrency", cfg.Concurrency,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open the run archive if enabled
	var db *database.BookDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck // read-mostly close on exit
		logger.Info("run archive opened", "dir", cfg.DBDir)
	}

	// Multiple books go through the batch processor
	if len(cfg.StartURLs) > 1 {
		return runBatchStitch(ctx, cfg, db, logger)
	}

	return runSingleStitch(ctx, cfg, db, logger)
}

// runSingleStitch stitches one book.
func runSingleStitch(ctx context.Context, cfg *config.Config, db *database.BookDB, logger *slog.Logger) error {
	startURL := cfg.StartURLs[0]
	outPath := deriveOutputPath(cfg.OutputPath, startURL, false)

	fmt.Printf("Stitching %s...\n", startURL)
	startTime := time.Now()

	output, closeOutput, err := reportDestination(cfg)
	if err != nil {
		return err
	}
	defer closeOutput()

	book := model.NewBook(startURL)
	p := createPipelineForBook(cfg, db, logger, startURL, outPath)
	p.AddStep(pipeline.NewReportStep(buildReportWriter(cfg, output)))

	if err := p.Execute(ctx, book); err != nil {
		return fmt.Errorf("stitch %s: %w", startURL, err)
	}

	fmt.Printf("Stitch completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// runBatchStitch stitches multiple books concurrently using BatchProcessor.
func runBatchStitch(ctx context.Context, cfg *config.Config, db *database.BookDB, logger *slog.Logger) error {
	fmt.Printf("Stitching %d books (concurrency: %d)...\n\n",
		len(cfg.StartURLs), cfg.BatchSize)

	startTime := time.Now()

	output, closeOutput, err := reportDestination(cfg)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := buildReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(
		func(startURL string) *pipeline.Pipeline {
			outPath := deriveOutputPath(cfg.OutputPath, startURL, true)
			return createPipelineForBook(cfg, db, logger, startURL, outPath)
		},
		pipeline.WithBatchConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	books, err := bp.ProcessBatch(ctx, cfg.StartURLs)
	if err != nil {
		return err
	}

	fmt.Printf("Batch stitch completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	// Reports are written after the batch so concurrent runs never
	// interleave on the same destination.
	for _, book := range books {
		if book == nil {
			continue
		}
		if _, err := writer.Write(book); err != nil {
			logger.Error("report failed", "startURL", book.StartURL, "error", err)
		}
	}

	return nil
}

// deriveOutputPath resolves the document path for one book. With a
// single book the configured path is the file itself; with multiple
// books it is a directory and the file name comes from the start URL.
func deriveOutputPath(outputPath, startURL string, multi bool) string {
	if !multi {
		return outputPath
	}
	name := "book"
	if u, err := url.Parse(startURL); err == nil && u.Host != "" {
		name = strings.ReplaceAll(u.Host, ":", "_")
	}
	return filepath.Join(outputPath, name+".html")
}

// createPipelineForBook assembles the walk, bind, and archive steps for
// one start URL, applying the site configuration for its host.
func createPipelineForBook(cfg *config.Config, db *database.BookDB, logger *slog.Logger, startURL, outPath string) *pipeline.Pipeline {
	siteCfg := siteConfigFor(cfg, startURL)

	fetcherOpts := []crawler.PageFetcherOption{
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithSelectors(siteCfg.ContentSelector, siteCfg.NextSelector),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetchLogger(logger),
	}
	if siteCfg.Cookie != "" {
		fetcherOpts = append(fetcherOpts, crawler.WithCookie(siteCfg.Cookie))
	}
	if len(siteCfg.Headers) > 0 {
		fetcherOpts = append(fetcherOpts, crawler.WithHeaders(siteCfg.Headers))
	}

	fetcher := crawler.NewPageFetcher(
		&http.Client{Timeout: cfg.Timeout},
		fetcherOpts...,
	)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(pipeline.NewWalkStep(fetcher,
		pipeline.WithWalkConcurrency(cfg.Concurrency),
		pipeline.WithWalkMaxChapters(cfg.MaxChapters),
		pipeline.WithWalkLogger(logger),
	))
	p.AddStep(pipeline.NewBindStep(binder.NewBinder(), outPath))
	if db != nil {
		p.AddStep(pipeline.NewArchiveStep(db, logger))
	}
	return p
}

// siteConfigFor returns the merged site configuration for the host of
// the given start URL.
func siteConfigFor(cfg *config.Config, startURL string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	u, err := url.Parse(startURL)
	if err != nil || u.Host == "" {
		return cfg.SiteConfigs.Defaults
	}
	return cfg.SiteConfigs.GetSiteConfig(u.Host)
}

// reportDestination opens the run report destination. The returned
// close function is a no-op for stdout.
func reportDestination(cfg *config.Config) (*os.File, func(), error) {
	if cfg.ReportFile == "" {
		return os.Stdout, func() {}, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open report file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// buildReportWriter selects the report format requested by the flags.
func buildReportWriter(cfg *config.Config, output *os.File) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
