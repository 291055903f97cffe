package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/scanvault/scanvault/internal/observability"
)

// Summary tallies the outcomes of one pool run.
type Summary struct {
	Total     int
	Processed int
	Degraded  int
	Skipped   int
	Failed    int
}

// Pool distributes tasks across a fixed number of parallel workers. Each
// worker runs one task through the full state machine before pulling the
// next; completion order across tasks is unspecified.
type Pool struct {
	workers   int
	processor *Processor
	logger    *observability.Logger
	progress  bool
}

// NewPool creates a pool of the given size. Sizes below one are clamped.
func NewPool(workers int, processor *Processor, logger *observability.Logger, progress bool) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers:   workers,
		processor: processor,
		logger:    logger.WithComponent("pool"),
		progress:  progress,
	}
}

// Run processes the whole worklist and returns the tally. Per-file
// failures are logged and counted, never propagated: the pool always runs
// to completion.
func (p *Pool) Run(ctx context.Context, tasks []Task) Summary {
	runID := uuid.New()
	p.logger.Info().
		Str("run_id", runID.String()).
		Int("tasks", len(tasks)).
		Int("workers", p.workers).
		Msg("starting pool run")

	var bar *progressbar.ProgressBar
	if p.progress {
		bar = newProgressBar(len(tasks))
	}

	var (
		mu      sync.Mutex
		summary = Summary{Total: len(tasks)}
	)

	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for _, task := range tasks {
		g.Go(func() error {
			res := p.processor.Process(ctx, task)

			mu.Lock()
			switch res.Status {
			case StatusProcessed:
				summary.Processed++
			case StatusDegraded:
				summary.Processed++
				summary.Degraded++
			case StatusSkipped:
				summary.Skipped++
			case StatusFailed:
				summary.Failed++
			}
			mu.Unlock()

			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}

	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	p.logger.Info().
		Str("run_id", runID.String()).
		Int("processed", summary.Processed).
		Int("degraded", summary.Degraded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("pool run complete")

	return summary
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription("processing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
