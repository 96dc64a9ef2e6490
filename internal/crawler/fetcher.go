package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/imgharvest/internal/retry"
)

// DefaultMaxBodySize caps how much of a page is read.
const DefaultMaxBodySize = 10 * 1024 * 1024

// Seen is consulted by PageFetcher to drop resources that were already
// handled. Implementations must make ClaimImage an atomic check-and-insert.
type Seen interface {
	// ClaimImage reports whether url is new and, if so, records it.
	ClaimImage(url string) bool

	// LinkSeen reports whether url was already queued or fetched.
	LinkSeen(url string) bool
}

// PageResult is what one page contributes to the crawl.
type PageResult struct {
	// Entry is the page that was fetched.
	Entry Entry

	// Images are new image URLs claimed for download.
	Images []string

	// Links are new pages, tagged with Entry.Depth+1.
	Links []Entry

	// Err is the failure that made the result empty, if any.
	Err error
}

// PageFetcher retrieves a page and reports the new links and images on it.
type PageFetcher struct {
	getter      getter
	extractor   Extractor
	maxBodySize int64
	policy      retry.Policy
	logger      *slog.Logger
}

// FetcherOption configures a PageFetcher.
type FetcherOption func(*PageFetcher)

// WithExtractor replaces the HTML Parser.
func WithExtractor(e Extractor) FetcherOption {
	return func(f *PageFetcher) {
		f.extractor = e
	}
}

// WithFetcherUserAgent sets the User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *PageFetcher) {
		f.getter.userAgent = ua
	}
}

// WithMaxBodySize limits how many bytes of a page are read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *PageFetcher) {
		f.maxBodySize = size
	}
}

// WithFetcherRetry sets the attempt ceiling and backoff for page fetches.
func WithFetcherRetry(maxAttempts int, backoff retry.BackoffFunc) FetcherOption {
	return func(f *PageFetcher) {
		f.policy.MaxAttempts = maxAttempts
		f.policy.Backoff = backoff
	}
}

// WithFetcherLimiter applies per-host rate limiting.
func WithFetcherLimiter(l *HostLimiter) FetcherOption {
	return func(f *PageFetcher) {
		f.getter.limiter = l
	}
}

// WithFetcherSlots shares an in-flight request bound with other fetchers
// and downloaders holding the same semaphore.
func WithFetcherSlots(slots *semaphore.Weighted) FetcherOption {
	return func(f *PageFetcher) {
		f.getter.slots = slots
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *PageFetcher) {
		f.logger = logger
	}
}

// NewPageFetcher returns a PageFetcher using client.
func NewPageFetcher(client *http.Client, opts ...FetcherOption) *PageFetcher {
	f := &PageFetcher{
		getter:      getter{client: client, userAgent: DefaultUserAgent},
		extractor:   NewParser(),
		maxBodySize: DefaultMaxBodySize,
		policy: retry.Policy{
			MaxAttempts: retry.DefaultMaxAttempts,
			Backoff:     retry.Exponential(time.Second),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.policy.Retryable = retryable
	return f
}

// Fetch retrieves entry and extracts its links and images. Any failure is
// logged and yields an empty result; the page still counts as visited.
func (f *PageFetcher) Fetch(ctx context.Context, entry Entry, seen Seen) PageResult {
	result := PageResult{Entry: entry}

	var resp *response
	err := retry.Do(ctx, f.retryPolicy(entry.URL), func(ctx context.Context, _ int) error {
		var err error
		resp, err = f.getter.get(ctx, entry.URL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", f.maxBodySize)
		return err
	})
	if err != nil {
		f.logger.Warn("page fetch failed", "url", entry.URL, "depth", entry.Depth, "error", err)
		result.Err = err
		return result
	}
	if ct := resp.contentType; ct != "" && !isMarkup(ct) {
		result.Err = fmt.Errorf("%w: %s", ErrNotHTML, ct)
		f.logger.Debug("skipping non-HTML page", "url", entry.URL, "content_type", ct)
		return result
	}

	images, links, err := f.extract(resp.body, entry.URL)
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrPermanent, err)
		f.logger.Warn("page parse failed", "url", entry.URL, "error", err)
		return result
	}

	for _, img := range images {
		img = Canonicalize(img)
		if !HasImageExtension(img) {
			continue
		}
		if seen.ClaimImage(img) {
			result.Images = append(result.Images, img)
		}
	}
	for _, link := range links {
		link = Canonicalize(link)
		if link == entry.URL || seen.LinkSeen(link) {
			continue
		}
		result.Links = append(result.Links, Entry{URL: link, Depth: entry.Depth + 1})
	}

	f.logger.Debug("page fetched",
		"url", entry.URL,
		"depth", entry.Depth,
		"images", len(result.Images),
		"links", len(result.Links),
	)
	return result
}

// extract returns the image sources and links of body. The built-in Parser
// walks the document once for both.
func (f *PageFetcher) extract(body []byte, baseURL string) (images, links []string, err error) {
	if p, ok := f.extractor.(*Parser); ok {
		result, err := p.Parse(bytes.NewReader(body), baseURL)
		if err != nil {
			return nil, nil, err
		}
		return result.Images, result.Links, nil
	}
	if images, err = f.extractor.ExtractImageSources(body, baseURL); err != nil {
		return nil, nil, err
	}
	if links, err = f.extractor.ExtractLinks(body, baseURL); err != nil {
		return nil, nil, err
	}
	return images, links, nil
}

func (f *PageFetcher) retryPolicy(target string) retry.Policy {
	p := f.policy
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		f.logger.Debug("retrying page fetch", "url", target, "attempt", attempt, "delay", delay, "error", err)
	}
	return p
}

func isMarkup(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}
