package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/imgharvest/internal/digest"
	"github.com/nao1215/imgharvest/internal/imagemeta"
	"github.com/nao1215/imgharvest/internal/metadata"
	"github.com/nao1215/imgharvest/internal/retry"
)

const (
	// DefaultMinImageSize skips icons, spacers and thumbnails.
	DefaultMinImageSize = 10000

	// DefaultMaxImageSize caps a single download.
	DefaultMaxImageSize = 64 * 1024 * 1024
)

// Outcome is what happened to one image URL.
type Outcome int

const (
	// OutcomeDownloaded means the bytes were written and recorded.
	OutcomeDownloaded Outcome = iota
	// OutcomeKnown means the URL was already in the metadata store.
	OutcomeKnown
	// OutcomeTooSmall means the image was below the minimum size.
	OutcomeTooSmall
	// OutcomeDuplicateContent means identical bytes were already stored
	// under another URL; the URL was recorded against the existing file.
	OutcomeDuplicateContent
	// OutcomeFailed means the image was skipped after an error.
	OutcomeFailed
)

// String returns a short label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeKnown:
		return "known"
	case OutcomeTooSmall:
		return "too-small"
	case OutcomeDuplicateContent:
		return "duplicate-content"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DownloadResult describes one Download call.
type DownloadResult struct {
	URL      string
	Outcome  Outcome
	Record   metadata.ImageRecord
	Attempts int
	Err      error
}

// Downloader fetches single images into a folder and records them in a
// metadata store.
type Downloader struct {
	getter       getter
	store        *metadata.Store
	hasher       *digest.Hasher
	minSize      int64
	maxSize      int64
	policy       retry.Policy
	readEXIF     bool
	dedupContent bool
	logger       *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithMinImageSize sets the minimum accepted byte length.
func WithMinImageSize(n int64) DownloaderOption {
	return func(d *Downloader) {
		d.minSize = n
	}
}

// WithMaxImageSize sets the maximum accepted byte length.
func WithMaxImageSize(n int64) DownloaderOption {
	return func(d *Downloader) {
		d.maxSize = n
	}
}

// WithHasher selects the digest algorithm.
func WithHasher(h *digest.Hasher) DownloaderOption {
	return func(d *Downloader) {
		d.hasher = h
	}
}

// WithDownloadRetry sets the retry ceiling and backoff.
func WithDownloadRetry(maxAttempts int, backoff retry.BackoffFunc) DownloaderOption {
	return func(d *Downloader) {
		d.policy.MaxAttempts = maxAttempts
		d.policy.Backoff = backoff
	}
}

// WithDownloaderUserAgent sets the User-Agent header.
func WithDownloaderUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) {
		d.getter.userAgent = ua
	}
}

// WithDownloaderLimiter applies per-host rate limiting.
func WithDownloaderLimiter(l *HostLimiter) DownloaderOption {
	return func(d *Downloader) {
		d.getter.limiter = l
	}
}

// WithDownloaderSlots shares an in-flight request bound with other
// downloaders and fetchers holding the same semaphore.
func WithDownloaderSlots(slots *semaphore.Weighted) DownloaderOption {
	return func(d *Downloader) {
		d.getter.slots = slots
	}
}

// WithEXIF enables reading camera metadata into the record.
func WithEXIF(enabled bool) DownloaderOption {
	return func(d *Downloader) {
		d.readEXIF = enabled
	}
}

// WithContentDedup controls whether bytes already stored under another URL
// are written again. Enabled by default.
func WithContentDedup(enabled bool) DownloaderOption {
	return func(d *Downloader) {
		d.dedupContent = enabled
	}
}

// WithDownloaderLogger sets the logger.
func WithDownloaderLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader returns a Downloader that records into store.
func NewDownloader(client *http.Client, store *metadata.Store, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		getter:       getter{client: client, userAgent: DefaultUserAgent},
		store:        store,
		hasher:       digest.Default(),
		minSize:      DefaultMinImageSize,
		maxSize:      DefaultMaxImageSize,
		dedupContent: true,
		policy: retry.Policy{
			MaxAttempts: retry.DefaultMaxAttempts,
			Backoff:     retry.Exponential(time.Second),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.policy.Retryable = retryable
	return d
}

// Download fetches imageURL into destDir. Failures are logged and reported
// in the result; they are never fatal to the caller.
func (d *Downloader) Download(ctx context.Context, imageURL, destDir string) DownloadResult {
	result := DownloadResult{URL: imageURL}
	if rec, ok := d.store.Get(imageURL); ok {
		result.Outcome = OutcomeKnown
		result.Record = rec
		return result
	}

	policy := d.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		d.logger.Debug("retrying image download", "url", imageURL, "attempt", attempt, "delay", delay, "error", err)
	}

	var resp *response
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		result.Attempts = attempt
		var err error
		resp, err = d.getter.get(ctx, imageURL, "image/*,*/*;q=0.8", d.maxSize)
		return err
	})
	if err != nil {
		return d.fail(result, err)
	}

	data := resp.body
	if int64(len(data)) < d.minSize {
		result.Outcome = OutcomeTooSmall
		result.Err = fmt.Errorf("%w: %d bytes", ErrTooSmall, len(data))
		d.logger.Debug("skipping small image", "url", imageURL, "bytes", len(data), "min", d.minSize)
		return result
	}

	rec := metadata.ImageRecord{SourceURL: imageURL, Digest: d.hasher.Sum(data)}

	if d.dedupContent {
		if existing, ok := d.store.LookupDigest(rec.Digest); ok {
			rec.Filename = existing.Filename
			rec.CameraMake, rec.CameraModel, rec.TakenAt = existing.CameraMake, existing.CameraModel, existing.TakenAt
			d.store.PutIfAbsent(imageURL, rec)
			result.Outcome = OutcomeDuplicateContent
			result.Record = rec
			d.logger.Debug("identical image already stored", "url", imageURL, "existing", existing.SourceURL)
			return result
		}
	}

	if d.readEXIF {
		if info, err := imagemeta.Extract(data); err == nil {
			rec.CameraMake = info.Make
			rec.CameraModel = info.Model
			rec.TakenAt = info.TakenAtString()
		} else if !errors.Is(err, imagemeta.ErrNoEXIF) {
			d.logger.Debug("unreadable EXIF", "url", imageURL, "error", err)
		}
	}

	filename, err := writeUnique(destDir, LocalFilename(imageURL), data)
	if err != nil {
		return d.fail(result, err)
	}
	rec.Filename = filename

	if !d.store.PutIfAbsent(imageURL, rec) {
		// Another worker recorded this URL first; keep the file, it is
		// already uniquely named.
		d.logger.Debug("image recorded concurrently", "url", imageURL)
	}
	result.Outcome = OutcomeDownloaded
	result.Record = rec
	d.logger.Debug("image downloaded", "url", imageURL, "file", filename, "bytes", len(data))
	return result
}

func (d *Downloader) fail(result DownloadResult, err error) DownloadResult {
	result.Outcome = OutcomeFailed
	result.Err = err
	d.logger.Warn("image skipped", "url", result.URL, "attempts", result.Attempts, "error", err)
	return result
}
