package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imgharvest/internal/model"
)

// DefaultConcurrency runs jobs one after another. Each crawl is already
// concurrent internally.
const DefaultConcurrency = 1

// BatchProcessor runs a list of jobs, each through its own pipeline.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each job.
	pipelineFactory func() *Pipeline

	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every job and returns the reports in job order. A
// failed job is recorded in its report and does not stop the others; the
// returned error is only set when ctx is cancelled. Jobs not started
// before cancellation have a nil report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []model.Job) ([]*model.SessionReport, error) {
	reports := make([]*model.SessionReport, len(jobs))
	err := bp.run(ctx, jobs, func(report *model.SessionReport, i int) {
		reports[i] = report
	})
	return reports, err
}

// ProcessBatchWithCallback runs every job and calls callback as each one
// finishes. callback is called from the job's goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []model.Job,
	callback func(report *model.SessionReport, index int),
) error {
	return bp.run(ctx, jobs, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, jobs []model.Job, done func(*model.SessionReport, int)) error {
	bp.logger.Info("starting batch",
		"jobs", len(jobs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bp.logger.Info("starting job",
				"url", job.URL,
				"folder", job.Folder,
				"index", i+1,
				"total", len(jobs),
			)

			report := model.NewSessionReport(job)
			if err := bp.pipelineFactory().Execute(gctx, report); err != nil {
				bp.logger.Warn("job failed", "url", job.URL, "error", err)
			}
			done(report, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	bp.logger.Info("batch complete",
		"jobs", len(jobs),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)
	return err
}
