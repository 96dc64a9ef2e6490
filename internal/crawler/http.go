package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"golang.org/x/sync/semaphore"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// getter performs one classified GET. Both PageFetcher and Downloader use
// it inside retry.Do.
type getter struct {
	client    *http.Client
	userAgent string
	limiter   *HostLimiter
	// slots, when set, is held from sending the request until the body is
	// read. Getters sharing it share one in-flight bound.
	slots     *semaphore.Weighted
}

type response struct {
	body        []byte
	contentType string
}

// get fetches target and reads at most maxBytes of the body. The returned
// error wraps ErrTransient, ErrPermanent or ErrTooLarge.
func (g *getter) get(ctx context.Context, target, accept string, maxBytes int64) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	if err := g.limiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, err
	}
	if g.slots != nil {
		if err := g.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer g.slots.Release(1)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}

	return &response{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

// classify wraps a transport error as transient or permanent. Errors caused
// by the caller's own context are returned unchanged so that retry.Do stops.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func isTransient(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	// An unknown host stays unknown; only DNS timeouts and server
	// failures are worth another attempt.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryable is the Retryable predicate shared by page and image fetches.
func retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
