package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/nao1215/bookbinder/internal/config"
	"github.com/nao1215/bookbinder/internal/database"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// This command inspects archived runs stored in the run database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [start-url]",
		Short: "Inspect archived stitch runs",
		Long: `History lists archived stitch runs and detects chapter changes between
runs of the same book.

Every stitch run is archived by default (disable with --no-archive).
The archive stores per-chapter content hashes, so history can tell which
chapters changed, appeared, or disappeared between two runs.

Examples:
  # List every archived run
  bookbinder history

  # List runs for one book
  bookbinder history https://example.com/book/chapter-1

  # List all archived books
  bookbinder history --list-books

  # Show chapter changes between the latest two runs of a book
  bookbinder history --diff https://example.com/book/chapter-1

  # Output run history as JSON
  bookbinder history --json https://example.com/book/chapter-1`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-books", "L", false,
		"List all archived start URLs")
	cmd.Flags().Bool("diff", false,
		"Compare the chapters of the latest two runs of the given book")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listBooks, err := cmd.Flags().GetBool("list-books")
	if err != nil {
		return err
	}
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no run archive found (stitch a book first): %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only close on exit

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case listBooks:
		return listArchivedBooks(ctx, db, asJSON)
	case diff:
		if len(args) != 1 {
			return errors.New("--diff requires a start URL")
		}
		return diffLatestRuns(ctx, db, args[0], asJSON)
	default:
		startURL := ""
		if len(args) == 1 {
			startURL = args[0]
		}
		return listRunHistory(ctx, db, startURL, asJSON)
	}
}

// listArchivedBooks prints every start URL in the archive.
func listArchivedBooks(ctx context.Context, db *database.BookDB, asJSON bool) error {
	urls, err := db.ListStartURLs(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(urls)
	}

	if len(urls) == 0 {
		fmt.Println("No archived books.")
		return nil
	}
	for _, u := range urls {
		fmt.Println(u)
	}
	return nil
}

// listRunHistory prints archived run metadata, newest first.
func listRunHistory(ctx context.Context, db *database.BookDB, startURL string, asJSON bool) error {
	history, err := db.GetRunHistory(ctx, startURL)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	if len(history) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	fmt.Printf("%-5s %-20s %-9s %-8s %s\n", "ID", "DATE", "CHAPTERS", "STATUS", "START URL")
	for _, meta := range history {
		status := "ok"
		if meta.Truncated {
			status = "partial"
		}
		fmt.Printf("%-5d %-20s %-9d %-8s %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.ChapterCount,
			status,
			meta.StartURL,
		)
	}
	return nil
}

// chapterChange describes one differing chapter between two runs.
type chapterChange struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Change string `json:"change"`
}

// runDiff is the comparison between two archived runs of a book.
type runDiff struct {
	StartURL  string          `json:"start_url"`
	OldRunID  int64           `json:"old_run_id"`
	NewRunID  int64           `json:"new_run_id"`
	OldDate   time.Time       `json:"old_date"`
	NewDate   time.Time       `json:"new_date"`
	Changes   []chapterChange `json:"changes"`
	Unchanged int             `json:"unchanged"`
}

// diffLatestRuns compares the chapter hashes of the latest two runs.
func diffLatestRuns(ctx context.Context, db *database.BookDB, startURL string, asJSON bool) error {
	history, err := db.GetRunHistory(ctx, startURL)
	if err != nil {
		return err
	}
	if len(history) < 2 {
		return fmt.Errorf("need at least two archived runs of %s to diff (found %d)", startURL, len(history))
	}

	// History is newest first.
	newMeta, oldMeta := history[0], history[1]

	newChapters, err := db.GetChapters(ctx, newMeta.ID)
	if err != nil {
		return err
	}
	oldChapters, err := db.GetChapters(ctx, oldMeta.ID)
	if err != nil {
		return err
	}

	diff := buildRunDiff(startURL, oldMeta, newMeta, oldChapters, newChapters)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}

	fmt.Printf("Comparing runs %d (%s) -> %d (%s)\n\n",
		diff.OldRunID, diff.OldDate.Local().Format("2006-01-02 15:04"),
		diff.NewRunID, diff.NewDate.Local().Format("2006-01-02 15:04"),
	)
	if len(diff.Changes) == 0 {
		fmt.Printf("No chapter changes (%d chapters unchanged).\n", diff.Unchanged)
		return nil
	}
	for _, c := range diff.Changes {
		fmt.Printf("  [%3d] %-8s %s\n", c.Index, c.Change, c.URL)
	}
	fmt.Printf("\n%d changed, %d unchanged\n", len(diff.Changes), diff.Unchanged)
	return nil
}

// buildRunDiff computes per-chapter changes keyed by chain index.
func buildRunDiff(startURL string, oldMeta, newMeta database.RunMetadata, oldChapters, newChapters []database.ChapterRecord) runDiff {
	diff := runDiff{
		StartURL: startURL,
		OldRunID: oldMeta.ID,
		NewRunID: newMeta.ID,
		OldDate:  oldMeta.Timestamp,
		NewDate:  newMeta.Timestamp,
	}

	oldByIndex := make(map[int]database.ChapterRecord, len(oldChapters))
	for _, ch := range oldChapters {
		oldByIndex[ch.Index] = ch
	}

	for _, ch := range newChapters {
		old, ok := oldByIndex[ch.Index]
		switch {
		case !ok:
			diff.Changes = append(diff.Changes, chapterChange{Index: ch.Index, URL: ch.URL, Change: "added"})
		case old.Hash != ch.Hash:
			diff.Changes = append(diff.Changes, chapterChange{Index: ch.Index, URL: ch.URL, Change: "modified"})
		default:
			diff.Unchanged++
		}
		delete(oldByIndex, ch.Index)
	}
	for _, ch := range oldByIndex {
		diff.Changes = append(diff.Changes, chapterChange{Index: ch.Index, URL: ch.URL, Change: "removed"})
	}

	sort.Slice(diff.Changes, func(i, j int) bool {
		return diff.Changes[i].Index < diff.Changes[j].Index
	})

	return diff
}
