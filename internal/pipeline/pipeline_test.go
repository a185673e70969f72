package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/bookbinder/internal/binder"
	"github.com/nao1215/bookbinder/internal/crawler"
	"github.com/nao1215/bookbinder/internal/database"
	"github.com/nao1215/bookbinder/internal/model"
	"github.com/nao1215/bookbinder/internal/report"
)

// recordingStep appends its name to a shared log when executed.
type recordingStep struct {
	name string
	log  *[]string
	err  error
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Do(_ context.Context, _ *model.Book) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

// stubFetcher serves a fixed two-page chain for step tests.
type stubFetcher struct {
	failAll bool
}

func (f *stubFetcher) Fetch(_ context.Context, u *url.URL) (*crawler.Page, error) {
	if f.failAll {
		return nil, &crawler.FetchError{Kind: crawler.KindNetwork, URL: u.String(), Err: errors.New("refused")}
	}
	switch u.Path {
	case "/ch/0":
		next, _ := url.Parse("http://chain.test/ch/1")
		return &crawler.Page{Content: "<p>one</p>", Title: "One", Next: next}, nil
	case "/ch/1":
		return &crawler.Page{Content: "<p>two</p>", Title: "Two"}, nil
	default:
		return nil, &crawler.FetchError{Kind: crawler.KindNetwork, URL: u.String(), Err: errors.New("no such page")}
	}
}

func TestPipeline_Execute(t *testing.T) {
	t.Parallel()

	t.Run("steps run in order", func(t *testing.T) {
		t.Parallel()
		var log []string
		p := New()
		p.AddSteps(
			&recordingStep{name: "first", log: &log},
			&recordingStep{name: "second", log: &log},
			&recordingStep{name: "third", log: &log},
		)

		if err := p.Execute(context.Background(), model.NewBook("http://chain.test/ch/0")); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := strings.Join(log, ","); got != "first,second,third" {
			t.Errorf("execution order = %s, want first,second,third", got)
		}
	})

	t.Run("a failing step stops the pipeline", func(t *testing.T) {
		t.Parallel()
		var log []string
		stepErr := errors.New("disk full")
		p := New()
		p.AddSteps(
			&recordingStep{name: "first", log: &log},
			&recordingStep{name: "broken", log: &log, err: stepErr},
			&recordingStep{name: "never", log: &log},
		)

		err := p.Execute(context.Background(), model.NewBook("http://chain.test/ch/0"))
		if !errors.Is(err, stepErr) {
			t.Fatalf("Execute() error = %v, want %v", err, stepErr)
		}
		if strings.Contains(strings.Join(log, ","), "never") {
			t.Error("step after the failure still ran")
		}
	})

	t.Run("cancelled context stops before the next step", func(t *testing.T) {
		t.Parallel()
		var log []string
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := New()
		p.AddStep(&recordingStep{name: "first", log: &log})

		if err := p.Execute(ctx, model.NewBook("http://chain.test/ch/0")); err == nil {
			t.Fatal("Execute() returned nil on a cancelled context")
		}
		if len(log) != 0 {
			t.Errorf("steps ran on a cancelled context: %v", log)
		}
	})
}

func TestWalkStep(t *testing.T) {
	t.Parallel()

	t.Run("fills the book with collected chapters", func(t *testing.T) {
		t.Parallel()
		book := model.NewBook("http://chain.test/ch/0")
		step := NewWalkStep(&stubFetcher{})

		if err := step.Do(context.Background(), book); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(book.Chapters) != 2 {
			t.Fatalf("got %d chapters, want 2", len(book.Chapters))
		}
		if book.FinishedAt.IsZero() {
			t.Error("FinishedAt not set")
		}
		if book.Truncated() {
			t.Errorf("Truncated() = true for a clean run: %s", book.Error)
		}
	})

	t.Run("records a truncated chain in the book", func(t *testing.T) {
		t.Parallel()
		book := model.NewBook("http://chain.test/ch/0")
		step := NewWalkStep(&stubFetcher{failAll: true})

		if err := step.Do(context.Background(), book); err != nil {
			t.Fatalf("Do() error = %v; a failed page is not a step error", err)
		}
		if !book.Truncated() {
			t.Fatal("Truncated() = false, want true")
		}
		if book.FailedIndex != 0 {
			t.Errorf("FailedIndex = %d, want 0", book.FailedIndex)
		}
		if !strings.Contains(book.Error, "network failure") {
			t.Errorf("Error = %q, want the failure kind", book.Error)
		}
	})

	t.Run("rejects an unparsable start url", func(t *testing.T) {
		t.Parallel()
		book := model.NewBook("http://chain.test/%zz")
		if err := NewWalkStep(&stubFetcher{}).Do(context.Background(), book); err == nil {
			t.Fatal("Do() accepted an unparsable start URL")
		}
	})

	t.Run("rejects a relative start url", func(t *testing.T) {
		t.Parallel()
		book := model.NewBook("/ch/0")
		if err := NewWalkStep(&stubFetcher{}).Do(context.Background(), book); err == nil {
			t.Fatal("Do() accepted a relative start URL")
		}
	})
}

func TestBindStep(t *testing.T) {
	t.Parallel()

	book := model.NewBook("http://chain.test/ch/0")
	book.Chapters = []*model.Chapter{
		{Index: 0, URL: "http://chain.test/ch/0", Content: "<p>one</p>"},
	}
	path := filepath.Join(t.TempDir(), "out.html")

	step := NewBindStep(binder.NewBinder(), path)
	if err := step.Do(context.Background(), book); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if book.OutputPath != path {
		t.Errorf("OutputPath = %q, want %q", book.OutputPath, path)
	}
	if book.BytesWritten == 0 {
		t.Error("BytesWritten = 0, want the document size")
	}
}

func TestArchiveStep(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck

	book := model.NewBook("http://chain.test/ch/0")
	step := NewArchiveStep(db, nil)
	if err := step.Do(context.Background(), book); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	history, err := db.GetRunHistory(context.Background(), book.StartURL)
	if err != nil {
		t.Fatalf("GetRunHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("got %d archived runs, want 1", len(history))
	}
}

func TestReportStep(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	step := NewReportStep(report.NewSimpleWriter(&buf))

	if err := step.Do(context.Background(), model.NewBook("http://chain.test/ch/0")); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !strings.Contains(buf.String(), "BOOKBINDER RUN REPORT") {
		t.Error("report output missing")
	}
}

func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("stitches every book and preserves order", func(t *testing.T) {
		t.Parallel()
		factory := func(string) *Pipeline {
			p := New()
			p.AddStep(NewWalkStep(&stubFetcher{}))
			return p
		}
		bp := NewBatchProcessor(factory, WithBatchConcurrency(2))

		urls := []string{
			"http://chain.test/ch/0",
			"http://chain.test/ch/1",
		}
		books, err := bp.ProcessBatch(context.Background(), urls)
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if len(books) != 2 {
			t.Fatalf("got %d books, want 2", len(books))
		}
		for i, book := range books {
			if book == nil {
				t.Fatalf("book %d is nil", i)
			}
			if book.StartURL != urls[i] {
				t.Errorf("book %d: StartURL = %q, want %q (order preserved)", i, book.StartURL, urls[i])
			}
		}
		// The first chain has two pages, the second starts at its last page.
		if len(books[0].Chapters) != 2 {
			t.Errorf("book 0 has %d chapters, want 2", len(books[0].Chapters))
		}
		if len(books[1].Chapters) != 1 {
			t.Errorf("book 1 has %d chapters, want 1", len(books[1].Chapters))
		}
	})

	t.Run("a failed book does not sink the batch", func(t *testing.T) {
		t.Parallel()
		factory := func(startURL string) *Pipeline {
			p := New()
			fetcher := &stubFetcher{failAll: strings.Contains(startURL, "broken")}
			p.AddStep(NewWalkStep(fetcher))
			return p
		}
		bp := NewBatchProcessor(factory)

		books, err := bp.ProcessBatch(context.Background(), []string{
			"http://broken.test/ch/0",
			"http://chain.test/ch/0",
		})
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if !books[0].Truncated() {
			t.Error("broken book not marked truncated")
		}
		if len(books[1].Chapters) != 2 {
			t.Errorf("healthy book has %d chapters, want 2", len(books[1].Chapters))
		}
	})
}

func TestStepNames(t *testing.T) {
	t.Parallel()

	steps := []struct {
		step Step
		want string
	}{
		{NewWalkStep(&stubFetcher{}), "walk_chain"},
		{NewBindStep(binder.NewBinder(), "out.html"), "bind_book"},
		{NewReportStep(report.NewSimpleWriter(&bytes.Buffer{})), "write_report"},
	}
	for _, tt := range steps {
		if got := tt.step.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}
