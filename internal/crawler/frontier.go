package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
	"sync"
)

// Entry is one unit of crawl work: a canonical page URL and the link
// distance from the seed.
type Entry struct {
	URL   string
	Depth int
}

// Frontier is the depth-tagged queue of pages awaiting a fetch.
//
// A URL is accepted at most once per session. TakeWave marks URLs visited
// as it hands them out, so a link rediscovered while its page is still in
// flight is rejected instead of being fetched twice.
type Frontier struct {
	maxDepth int
	scope    Scope

	mu      sync.Mutex
	pending []Entry
	queued  map[string]struct{}
	visited map[string]struct{}
}

// Scope limits which discovered links are followed.
type Scope struct {
	// SameHost restricts the crawl to the seed's host.
	SameHost bool

	// Host is the seed host used by SameHost.
	Host string

	// Ignore holds path globs that are never crawled ("/admin/*", "*.pdf").
	Ignore []string

	// Follow holds path globs; when non-empty only matching paths are crawled.
	Follow []string
}

// NewFrontier returns an empty Frontier that rejects entries deeper than maxDepth.
func NewFrontier(maxDepth int, scope Scope) *Frontier {
	return &Frontier{
		maxDepth: maxDepth,
		scope:    scope,
		queued:   make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
}

// Enqueue adds rawURL at depth unless the depth exceeds the maximum, the
// URL is outside the scope, or the canonical URL was already queued or
// visited. It reports whether the entry was added.
func (f *Frontier) Enqueue(rawURL string, depth int) bool {
	if depth < 0 || depth > f.maxDepth {
		return false
	}
	canonical := Canonicalize(rawURL)
	if depth > 0 && !f.scope.allows(canonical) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[canonical]; ok {
		return false
	}
	if _, ok := f.queued[canonical]; ok {
		return false
	}
	f.queued[canonical] = struct{}{}
	f.pending = append(f.pending, Entry{URL: canonical, Depth: depth})
	return true
}

// TakeWave removes up to n pending entries in FIFO order and marks them
// visited.
func (f *Frontier) TakeWave(n int) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || len(f.pending) == 0 {
		return nil
	}
	if n > len(f.pending) {
		n = len(f.pending)
	}
	wave := make([]Entry, n)
	copy(wave, f.pending[:n])
	f.pending = f.pending[n:]
	for _, e := range wave {
		delete(f.queued, e.URL)
		f.visited[e.URL] = struct{}{}
	}
	return wave
}

// Seen reports whether the canonical form of rawURL is queued or visited.
func (f *Frontier) Seen(rawURL string) bool {
	canonical := Canonicalize(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[canonical]; ok {
		return true
	}
	_, ok := f.queued[canonical]
	return ok
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// VisitedCount returns the number of URLs handed out so far.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// MaxDepth returns the configured depth bound.
func (f *Frontier) MaxDepth() int {
	return f.maxDepth
}

func (s Scope) allows(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	if s.SameHost && s.Host != "" && !strings.EqualFold(u.Host, s.Host) {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range s.Ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}
	if len(s.Follow) == 0 {
		return true
	}
	for _, pattern := range s.Follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern matches a URL path against a glob.
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in .pdf
//   - other patterns use filepath.Match, then fall back to the last segment
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}
	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(p, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	if matched, err := filepath.Match(pattern, p); err == nil && matched {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(p)); err == nil && matched {
			return true
		}
	}
	return false
}
