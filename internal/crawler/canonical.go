package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// imageExtensions are the file extensions recognised as images.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".tiff": {},
	".webp": {},
}

// Canonicalize returns the identity used for visited and dedup tracking.
// Scheme and host are lowercased, the fragment is dropped and a single
// trailing path separator is removed, so "https://a.test/x/?p=1" and
// "https://a.test/x?p=1" are the same entity.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSuffix(rawURL, "/")
	}
	return canonicalString(u)
}

func canonicalString(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	c.Path = strings.TrimSuffix(c.Path, "/")
	c.RawPath = strings.TrimSuffix(c.RawPath, "/")
	return c.String()
}

// Resolve resolves ref against base and canonicalizes the result.
// It returns false for references that are not fetchable over http(s),
// such as javascript:, mailto:, tel: and data: links or bare fragments.
func Resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}
	return canonicalString(resolved), true
}

// HasImageExtension reports whether the URL path ends in a recognised
// image extension. Query strings are ignored.
func HasImageExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// ValidateRootURL checks that rawURL can seed a crawl.
func ValidateRootURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRootURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRootURL, rawURL)
	}
	return nil
}
