package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/bookbinder/internal/model"
)

// BookDB provides SQLite-based storage for stitch run history.
// It manages connection pooling and provides methods for saving and
// querying archived runs.
//
// Design decision: We use a single database file for all start URLs
// rather than one file per book. This keeps history queries across
// books simple and makes backup a single-file operation.
type BookDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures BookDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a BookDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*BookDB, error) {
	dbPath := filepath.Join(dbDir, "bookbinder.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	bdb := &BookDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := bdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return bdb, nil
}

// Close closes the database connection.
func (bdb *BookDB) Close() error {
	return bdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (bdb *BookDB) createTables() error {
	schema := `
	-- Runs store one row per stitch invocation
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_url TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		chapter_count INTEGER NOT NULL,
		bytes_written INTEGER,
		output_path TEXT,
		truncated INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_url ON runs(start_url);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- Chapters store one row per collected chapter for change detection
	CREATE TABLE IF NOT EXISTS chapters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		chain_index INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		content_hash TEXT NOT NULL,
		fetched_at DATETIME,
		UNIQUE(run_id, chain_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chapters_run ON chapters(run_id);
	CREATE INDEX IF NOT EXISTS idx_chapters_url ON chapters(url);
	`

	_, err := bdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun archives a finished run and its chapters. The run row and all
// chapter rows are written in one transaction. Returns the run ID.
func (bdb *BookDB) SaveRun(ctx context.Context, book *model.Book) (int64, error) {
	runJSON, err := json.Marshal(book)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := bdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	truncated := 0
	if book.Truncated() {
		truncated = 1
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (start_url, chapter_count, bytes_written, output_path, truncated, error, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		book.StartURL,
		len(book.Chapters),
		book.BytesWritten,
		book.OutputPath,
		truncated,
		book.Error,
		string(runJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, ch := range book.Chapters {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO chapters (run_id, chain_index, url, title, content_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		`,
			runID,
			ch.Index,
			ch.URL,
			ch.Title,
			ch.Hash,
			ch.FetchedAt.UTC().Format("2006-01-02 15:04:05"),
		); err != nil {
			return 0, fmt.Errorf("failed to insert chapter %d: %w", ch.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetRunByID retrieves an archived run by its database ID.
// Returns nil without error when no run has the ID.
func (bdb *BookDB) GetRunByID(ctx context.Context, id int64) (*model.Book, error) {
	var runJSON string
	err := bdb.db.QueryRowContext(ctx,
		`SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var book model.Book
	if err := json.Unmarshal([]byte(runJSON), &book); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &book, nil
}

// GetLatestRun retrieves the most recent archived run for a start URL.
// Returns nil without error when the URL has never been archived.
func (bdb *BookDB) GetLatestRun(ctx context.Context, startURL string) (*model.Book, error) {
	var runJSON string
	err := bdb.db.QueryRowContext(ctx, `
	SELECT run_json FROM runs
	WHERE start_url = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, startURL).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	var book model.Book
	if err := json.Unmarshal([]byte(runJSON), &book); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &book, nil
}

// ListStartURLs returns every start URL with at least one archived run.
func (bdb *BookDB) ListStartURLs(ctx context.Context) ([]string, error) {
	rows, err := bdb.db.QueryContext(ctx, `
	SELECT DISTINCT start_url FROM runs
	ORDER BY start_url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list start urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan start url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// RunMetadata contains summary information about an archived run.
// This is used for displaying run history without loading full runs.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// StartURL is the URL the chain was followed from.
	StartURL string

	// Timestamp is when the run was archived.
	Timestamp time.Time

	// ChapterCount is the number of chapters collected.
	ChapterCount int

	// BytesWritten is the size of the assembled document.
	BytesWritten int

	// Truncated reports whether the chain stopped at a failed page.
	Truncated bool

	// Error describes the failure for truncated runs.
	Error string
}

// GetRunHistory retrieves run metadata, newest first. An empty startURL
// returns the history of every book.
func (bdb *BookDB) GetRunHistory(ctx context.Context, startURL string) ([]RunMetadata, error) {
	query := `
	SELECT id, start_url, timestamp, chapter_count, bytes_written, truncated, error
	FROM runs
	`
	args := make([]any, 0, 1)
	if startURL != "" {
		query += " WHERE start_url = ?"
		args = append(args, startURL)
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := bdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var truncated int
		var errText sql.NullString

		if err := rows.Scan(&meta.ID, &meta.StartURL, &timestamp,
			&meta.ChapterCount, &meta.BytesWritten, &truncated, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.Truncated = truncated != 0
		meta.Error = errText.String

		results = append(results, meta)
	}
	return results, rows.Err()
}

// ChapterRecord is one archived chapter row.
type ChapterRecord struct {
	// Index is the chapter's position in its chain.
	Index int

	// URL is where the chapter was fetched from.
	URL string

	// Title is the extracted page title.
	Title string

	// Hash is the SHA-256 hash of the chapter content.
	Hash string

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time
}

// GetChapters retrieves the archived chapters of a run in chain order.
// Used for change detection between runs of the same book.
func (bdb *BookDB) GetChapters(ctx context.Context, runID int64) ([]ChapterRecord, error) {
	rows, err := bdb.db.QueryContext(ctx, `
	SELECT chain_index, url, title, content_hash, fetched_at
	FROM chapters
	WHERE run_id = ?
	ORDER BY chain_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chapters: %w", err)
	}
	defer rows.Close()

	var records []ChapterRecord
	for rows.Next() {
		var rec ChapterRecord
		var title sql.NullString
		var fetchedAt sql.NullString

		if err := rows.Scan(&rec.Index, &rec.URL, &title, &rec.Hash, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		rec.Title = title.String
		if fetchedAt.Valid {
			rec.FetchedAt = parseTimestamp(fetchedAt.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
