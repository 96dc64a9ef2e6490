package crawler

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

// testSeen is a Seen backed by two sets.
type testSeen struct {
	mu     sync.Mutex
	images map[string]bool
	links  map[string]bool
}

func newTestSeen(links ...string) *testSeen {
	s := &testSeen{images: make(map[string]bool), links: make(map[string]bool)}
	for _, l := range links {
		s.links[l] = true
	}
	return s
}

func (s *testSeen) ClaimImage(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images[u] {
		return false
	}
	s.images[u] = true
	return true
}

func (s *testSeen) LinkSeen(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[u]
}

// countingExtractor wraps Parser and counts calls per method.
type countingExtractor struct {
	parser *Parser
	images atomic.Int32
	links  atomic.Int32
}

func (c *countingExtractor) ExtractLinks(markup []byte, baseURL string) ([]string, error) {
	c.links.Add(1)
	return c.parser.ExtractLinks(markup, baseURL)
}

func (c *countingExtractor) ExtractImageSources(markup []byte, baseURL string) ([]string, error) {
	c.images.Add(1)
	return c.parser.ExtractImageSources(markup, baseURL)
}

const galleryPage = `<html><body>
	<img src="/a.jpg"><img src="/a.jpg#zoom"><img src="/icon.svg">
	<a href="/next/">next</a><a href="/old">old</a><a href="/">self</a>
</body></html>`

func TestPageFetcherFetch(t *testing.T) {
	t.Parallel()

	srv := newSite(t, func(w http.ResponseWriter, _ *http.Request) {
		serveHTML(w, galleryPage)
	})

	check := func(t *testing.T, f *PageFetcher) {
		t.Helper()
		seen := newTestSeen(srv.URL + "/old")
		result := f.Fetch(context.Background(), Entry{URL: srv.URL, Depth: 1}, seen)
		if result.Err != nil {
			t.Fatal(result.Err)
		}
		if want := []string{srv.URL + "/a.jpg"}; !slices.Equal(result.Images, want) {
			t.Errorf("Images = %v, want %v", result.Images, want)
		}
		if want := []Entry{{URL: srv.URL + "/next", Depth: 2}}; !slices.Equal(result.Links, want) {
			t.Errorf("Links = %v, want %v", result.Links, want)
		}
	}

	t.Run("built-in parser", func(t *testing.T) {
		t.Parallel()
		check(t, NewPageFetcher(srv.Client()))
	})

	t.Run("custom extractor is asked once per kind", func(t *testing.T) {
		t.Parallel()
		ext := &countingExtractor{parser: NewParser()}
		check(t, NewPageFetcher(srv.Client(), WithExtractor(ext)))
		if ext.images.Load() != 1 || ext.links.Load() != 1 {
			t.Errorf("extractor calls: images=%d links=%d, want 1 each", ext.images.Load(), ext.links.Load())
		}
	})
}
