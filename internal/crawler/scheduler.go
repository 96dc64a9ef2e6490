package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imgharvest/internal/metadata"
	"github.com/nao1215/imgharvest/internal/model"
)

// DefaultMaxWorkers bounds concurrent page fetches and image downloads.
const DefaultMaxWorkers = 8

// State is the lifecycle of a crawl session.
type State int32

const (
	// StateIdle means no session has started.
	StateIdle State = iota
	// StateRunning means a page-fetch wave is in progress.
	StateRunning
	// StateDraining means the wave's images are being downloaded.
	StateDraining
	// StateDone means the frontier is exhausted and the store is saved.
	StateDone
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Scheduler drives one crawl session at a time: it fetches pages in waves
// of at most maxWorkers, then downloads every image found in the wave
// before the next wave starts.
//
// All per-session state (frontier, discovered images, counters) lives in a
// session value created by Run, so sequential sessions never share it.
type Scheduler struct {
	fetcher    *PageFetcher
	downloader *Downloader
	store      *metadata.Store
	maxWorkers int
	sameHost   bool
	ignore     []string
	follow     []string
	logger     *slog.Logger

	state atomic.Int32
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxWorkers bounds in-flight network operations.
func WithMaxWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxWorkers = n
		}
	}
}

// WithSameHostOnly restricts link following to the seed's host.
func WithSameHostOnly(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.sameHost = enabled
	}
}

// WithIgnorePatterns sets path globs that are never crawled.
func WithIgnorePatterns(patterns []string) SchedulerOption {
	return func(s *Scheduler) {
		s.ignore = patterns
	}
}

// WithFollowPatterns sets path globs; when set, only matching paths are crawled.
func WithFollowPatterns(patterns []string) SchedulerOption {
	return func(s *Scheduler) {
		s.follow = patterns
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler returns an idle Scheduler.
func NewScheduler(fetcher *PageFetcher, downloader *Downloader, store *metadata.Store, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		fetcher:    fetcher,
		downloader: downloader,
		store:      store,
		maxWorkers: DefaultMaxWorkers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run crawls from job.URL, writing images into outputDir, until the
// frontier is exhausted or ctx is cancelled. Per-page and per-image
// failures are counted in the report; the returned error is reserved for
// session-level failures such as an invalid seed or an unsaved store.
func (s *Scheduler) Run(ctx context.Context, job model.Job, outputDir string) (*model.SessionReport, error) {
	if err := ValidateRootURL(job.URL); err != nil {
		return nil, err
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) &&
		!s.state.CompareAndSwap(int32(StateDone), int32(StateRunning)) {
		return nil, ErrSchedulerBusy
	}

	report := model.NewSessionReport(job)
	report.OutputDir = outputDir
	report.MaxWorkers = s.maxWorkers

	sess := s.newSession(job)
	sess.frontier.Enqueue(job.URL, 0)

	s.logger.Info("crawl started", "url", job.URL, "depth", job.MaxDepth, "workers", s.maxWorkers, "output", outputDir)

	for sess.frontier.Len() > 0 {
		if ctx.Err() != nil {
			s.logger.Warn("crawl interrupted", "url", job.URL, "error", ctx.Err())
			break
		}

		s.state.Store(int32(StateRunning))
		wave := sess.frontier.TakeWave(s.maxWorkers)
		report.Waves++
		images := s.fetchWave(ctx, sess, wave)

		s.state.Store(int32(StateDraining))
		s.drain(ctx, sess, images, outputDir)

		s.logger.Debug("wave complete",
			"wave", report.Waves,
			"pages", len(wave),
			"images", len(images),
			"pending", sess.frontier.Len(),
		)
	}

	sess.fill(report)
	report.FinishedAt = time.Now()

	var saveErr error
	if err := s.store.Save(); err != nil {
		saveErr = fmt.Errorf("failed to save metadata store: %w", err)
		report.AddError(saveErr)
	}
	s.state.Store(int32(StateDone))

	s.logger.Info("crawl finished",
		"url", job.URL,
		"pages", report.PagesFetched,
		"downloaded", report.ImagesDownloaded,
		"skipped_small", report.ImagesTooSmall,
		"failed", report.ImagesFailed,
		"duration", report.Duration().Round(time.Millisecond),
	)
	return report, saveErr
}

// fetchWave fetches every page of the wave concurrently, feeds new links
// back into the frontier and returns the images found.
func (s *Scheduler) fetchWave(ctx context.Context, sess *session, wave []Entry) []string {
	results := make([]PageResult, len(wave))

	var g errgroup.Group
	g.SetLimit(s.maxWorkers)
	for i, entry := range wave {
		g.Go(func() error {
			results[i] = s.fetcher.Fetch(ctx, entry, sess)
			return nil
		})
	}
	_ = g.Wait()

	var images []string
	for _, r := range results {
		if r.Err != nil {
			sess.pagesFailed.Add(1)
		} else {
			sess.pagesFetched.Add(1)
		}
		for _, link := range r.Links {
			sess.frontier.Enqueue(link.URL, link.Depth)
		}
		images = append(images, r.Images...)
	}
	return images
}

// drain downloads images with at most maxWorkers in flight and returns
// once all of them have finished.
func (s *Scheduler) drain(ctx context.Context, sess *session, images []string, outputDir string) {
	var g errgroup.Group
	g.SetLimit(s.maxWorkers)
	for _, img := range images {
		g.Go(func() error {
			sess.record(s.downloader.Download(ctx, img, outputDir))
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) newSession(job model.Job) *session {
	scope := Scope{SameHost: s.sameHost, Ignore: s.ignore, Follow: s.follow}
	if u, err := url.Parse(job.URL); err == nil {
		scope.Host = u.Host
	}
	return &session{
		frontier:   NewFrontier(job.MaxDepth, scope),
		store:      s.store,
		discovered: make(map[string]struct{}),
	}
}

// session is the mutable state of one Run. It implements Seen.
type session struct {
	frontier *Frontier
	store    *metadata.Store

	mu         sync.Mutex
	discovered map[string]struct{}

	pagesFetched atomic.Int64
	pagesFailed  atomic.Int64
	downloaded   atomic.Int64
	known        atomic.Int64
	tooSmall     atomic.Int64
	duplicate    atomic.Int64
	failed       atomic.Int64
}

// ClaimImage implements Seen. URLs recorded by earlier sessions are never
// claimed again.
func (s *session) ClaimImage(imageURL string) bool {
	if s.store.Has(imageURL) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discovered[imageURL]; ok {
		return false
	}
	s.discovered[imageURL] = struct{}{}
	return true
}

// LinkSeen implements Seen.
func (s *session) LinkSeen(pageURL string) bool {
	return s.frontier.Seen(pageURL)
}

func (s *session) record(r DownloadResult) {
	switch r.Outcome {
	case OutcomeDownloaded:
		s.downloaded.Add(1)
	case OutcomeKnown:
		s.known.Add(1)
	case OutcomeTooSmall:
		s.tooSmall.Add(1)
	case OutcomeDuplicateContent:
		s.duplicate.Add(1)
	case OutcomeFailed:
		s.failed.Add(1)
	}
}

func (s *session) fill(r *model.SessionReport) {
	s.mu.Lock()
	r.ImagesDiscovered = len(s.discovered)
	s.mu.Unlock()
	r.PagesFetched = int(s.pagesFetched.Load())
	r.PagesFailed = int(s.pagesFailed.Load())
	r.ImagesDownloaded = int(s.downloaded.Load())
	r.ImagesKnown = int(s.known.Load())
	r.ImagesTooSmall = int(s.tooSmall.Load())
	r.ImagesDuplicate = int(s.duplicate.Load())
	r.ImagesFailed = int(s.failed.Load())
}
