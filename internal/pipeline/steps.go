package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nao1215/imgharvest/internal/crawler"
	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote"
	"github.com/nao1215/imgharvest/internal/remotesync"
)

// Crawler runs one crawl session. *crawler.Scheduler implements it.
type Crawler interface {
	Run(ctx context.Context, job model.Job, outputDir string) (*model.SessionReport, error)
}

// CrawlStep crawls the job's seed into <outputRoot>/<folder>.
type CrawlStep struct {
	crawler       Crawler
	outputRoot    string
	newOnConflict bool
	logger        *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithNewFolderOnConflict writes into folder_01, folder_02, ... when the
// output folder already exists instead of reusing it.
func WithNewFolderOnConflict(enabled bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.newOnConflict = enabled
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step writing below outputRoot.
func NewCrawlStep(c Crawler, outputRoot string, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler:    c,
		outputRoot: outputRoot,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do prepares the output folder and runs the crawl. The crawl's counters
// replace the report's; earlier errors and steps are kept.
func (s *CrawlStep) Do(ctx context.Context, report *model.SessionReport) error {
	job := report.Job()
	if err := crawler.ValidateFolderName(job.Folder); err != nil {
		return err
	}
	dir, err := crawler.PrepareOutputDir(filepath.Join(s.outputRoot, job.Folder), s.newOnConflict)
	if err != nil {
		return err
	}
	if dir != filepath.Join(s.outputRoot, job.Folder) {
		s.logger.Info("output folder exists, using new folder", "dir", dir)
	}

	result, err := s.crawler.Run(ctx, job, dir)
	if result == nil {
		return err
	}

	errs, steps := report.Errors, report.Steps
	*report = *result
	// Run's errors come back through err and are recorded by the pipeline.
	report.Errors = errs
	report.Steps = steps
	return err
}

// Connector opens the remote store for a sync.
type Connector func(ctx context.Context) (remote.Store, error)

// SyncStep pushes the crawl's output folder to <remoteRoot>/<folder>.
type SyncStep struct {
	connect    Connector
	remoteRoot string
	syncOpts   []remotesync.Option
	logger     *slog.Logger
}

// SyncStepOption configures a SyncStep.
type SyncStepOption func(*SyncStep)

// WithSyncOptions passes options through to the remotesync.Syncer.
func WithSyncOptions(opts ...remotesync.Option) SyncStepOption {
	return func(s *SyncStep) {
		s.syncOpts = append(s.syncOpts, opts...)
	}
}

// WithSyncLogger sets a custom logger for the sync step.
func WithSyncLogger(logger *slog.Logger) SyncStepOption {
	return func(s *SyncStep) {
		s.logger = logger
	}
}

// NewSyncStep creates a sync step. connect is called once per job.
func NewSyncStep(connect Connector, remoteRoot string, opts ...SyncStepOption) *SyncStep {
	s := &SyncStep{
		connect:    connect,
		remoteRoot: remoteRoot,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SyncStep) Name() string {
	return "sync"
}

// Do connects to the remote store and syncs the output folder. A
// connection failure fails the step; per-file failures only show up in
// report.Sync.
func (s *SyncStep) Do(ctx context.Context, report *model.SessionReport) (err error) {
	if report.OutputDir == "" {
		s.logger.Debug("nothing to sync", "url", report.RootURL)
		return nil
	}

	store, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("sync %s: %w", report.Folder, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close remote store: %w", cerr))
		}
	}()

	opts := append([]remotesync.Option{remotesync.WithLogger(s.logger)}, s.syncOpts...)
	sr, err := remotesync.New(store, opts...).Sync(ctx, report.OutputDir, remote.Join(s.remoteRoot, report.Folder))
	report.Sync = sr
	if err != nil {
		return fmt.Errorf("sync %s: %w", report.Folder, err)
	}
	return nil
}

// SessionRecorder stores finished session reports.
// *database.HistoryDB implements it.
type SessionRecorder interface {
	InsertSession(ctx context.Context, report *model.SessionReport) (int64, error)
}

// RecordStep saves the report to the history database.
type RecordStep struct {
	recorder SessionRecorder
}

// NewRecordStep creates a record step.
func NewRecordStep(recorder SessionRecorder) *RecordStep {
	return &RecordStep{recorder: recorder}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do inserts the report and sets report.ID.
func (s *RecordStep) Do(ctx context.Context, report *model.SessionReport) error {
	if _, err := s.recorder.InsertSession(ctx, report); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}
