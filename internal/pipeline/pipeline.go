package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/bookbinder/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the book
// accumulated by previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., retries)
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the book to modify.
	// Returns an error if the step fails critically; non-critical
	// conditions (a truncated chain) should be recorded in the book and
	// return nil.
	Do(ctx context.Context, book *model.Book) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, the process default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// It respects context cancellation and logs each step's execution.
//
// Design decision: We check context.Done() before each step rather
// than during, because steps handle their own cancellation through the
// context they receive. This check only avoids starting a step for a
// run that is already dead.
//
// Returns the first step error encountered; a truncated chain is not a
// step error and does not stop the pipeline.
func (p *Pipeline) Execute(ctx context.Context, book *model.Book) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"start_url", book.StartURL,
		)

		if err := step.Do(ctx, book); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"start_url", book.StartURL,
				"error", err,
			)
			return err
		}
	}

	return nil
}
