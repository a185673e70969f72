package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values mirror typical serialized-web-fiction and documentation
// sites, where chapter chains run to a few hundred pages at most.
const (
	// DefaultConcurrency is the maximum number of simultaneous page fetches.
	// This is the sole defense against unbounded resource use: chain length
	// is unknown until the chain is fully discovered, so the in-flight cap
	// is what keeps memory and socket usage bounded.
	DefaultConcurrency = 50

	// DefaultMaxChapters caps how many links deep a single chain may go.
	// A chain this long is almost certainly a selector misconfiguration
	// (e.g. a "next" selector matching a self-link the visited set does not
	// catch because of URL spelling differences).
	DefaultMaxChapters = 10000

	// DefaultTimeout is the per-request timeout. Chapter pages are ordinary
	// HTML documents, so 30 seconds is generous even for slow origins.
	DefaultTimeout = 30 * time.Second

	// DefaultOutputPath is where the assembled book is written when the
	// user does not specify --output.
	DefaultOutputPath = "book.html"

	// DefaultBatchSize is the number of books stitched concurrently when
	// multiple start URLs are given. Each book runs its own chain walker,
	// so total in-flight fetches can reach BatchSize*Concurrency.
	DefaultBatchSize = 4

	// DefaultContentSelector selects the element whose inner HTML becomes
	// the chapter fragment.
	DefaultContentSelector = "main"

	// DefaultNextSelector selects the anchor carrying the link to the next
	// chapter. The href is resolved against the page URL; an href that
	// cannot be resolved is treated as "no next link".
	DefaultNextSelector = `a[title='Next chapter']`

	// DefaultMaxBodySize limits the response body size read per page.
	// 10MB covers even image-heavy chapter pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies bookbinder in HTTP requests.
	// A descriptive User-Agent lets site operators identify the traffic.
	DefaultUserAgent = "bookbinder/1.0 (+https://github.com/nao1215/bookbinder)"

	// AppName is the application name used for XDG directory paths.
	AppName = "bookbinder"
)

// Config holds all configuration options for a stitch run.
// This struct is populated from CLI flags and passed through the
// application via dependency injection rather than global state.
type Config struct {
	// StartURLs are the chain start pages, one per book to stitch.
	// Each must be an absolute http(s) URL.
	StartURLs []string

	// Concurrency is the maximum number of simultaneous page fetches
	// within one chain walk. Must be positive.
	Concurrency int

	// MaxChapters caps chain length. When a chain reaches this many
	// chapters, it is terminated as if the last page had no next link.
	MaxChapters int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// OutputPath is the output file for a single start URL, or the output
	// directory when multiple start URLs are given (file names are then
	// derived from each start URL's host).
	OutputPath string

	// BatchSize is the number of books stitched concurrently when several
	// start URLs are given. Must be positive.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the site configuration file.
	// If empty, the tool searches for .bookbinder in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site selector configuration loaded from the
	// config file. Populated by LoadConfigFile.
	SiteConfigs *File

	// MarkdownReport enables a Markdown run summary instead of the
	// human-readable format.
	MarkdownReport bool

	// JSONReport enables a JSON run summary instead of the
	// human-readable format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// ReportFile is the output file path for the run summary.
	// When empty, the summary is written to stdout.
	ReportFile string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// DBDir is the directory for the SQLite run archive.
	// When empty, runs are not archived.
	DBDir string

	// SaveToDB indicates whether to archive runs to the database.
	// Automatically set to true when DBDir is configured.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
func NewConfig() *Config {
	return &Config{
		Concurrency: DefaultConcurrency,
		MaxChapters: DefaultMaxChapters,
		Timeout:     DefaultTimeout,
		OutputPath:  DefaultOutputPath,
		BatchSize:   DefaultBatchSize,
		MaxBodySize: DefaultMaxBodySize,
		UserAgent:   DefaultUserAgent,
	}
}

// XDGDataDir returns the XDG data directory for bookbinder.
// On Linux: ~/.local/share/bookbinder
// On macOS: ~/Library/Application Support/bookbinder
// On Windows: %LOCALAPPDATA%\bookbinder
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for bookbinder.
// On Linux: ~/.config/bookbinder
// On macOS: ~/Library/Application Support/bookbinder
// On Windows: %APPDATA%\bookbinder
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific sentinel error describing what is invalid.
// Called once after CLI parsing, before any crawling begins, so the tool
// fails fast with a clear message instead of failing mid-run.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return ErrNoStartURL
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxChapters <= 0 {
		return ErrInvalidMaxChapters
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.OutputPath == "" {
		return ErrNoOutputPath
	}

	return nil
}
