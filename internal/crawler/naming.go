package crawler

import (
	"crypto/md5" //nolint:gosec // short uniqueness suffix only
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxCollisionPrefix bounds the NN_ prefixes tried for one filename.
const maxCollisionPrefix = 9999

// maxFilenameLength keeps derived names well below common filesystem limits.
const maxFilenameLength = 200

// fallbackFilename is used when a URL has no usable final segment.
const fallbackFilename = "image"

// LocalFilename derives a file name from the final path segment of imageURL.
func LocalFilename(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return fallbackFilename
	}
	name := path.Base(u.Path)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "_" {
		return fallbackFilename
	}
	if len(name) > maxFilenameLength {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		cut := maxFilenameLength - len(ext)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut] + ext
	}
	return name
}

// writeUnique writes data to dir/name. When the name is taken it tries
// 01_name, 02_name and so on. Files are created with O_EXCL so concurrent
// downloads can never overwrite each other.
func writeUnique(dir, name string, data []byte) (string, error) {
	for i := 0; i <= maxCollisionPrefix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%02d_%s", i, name)
		}
		p := filepath.Join(dir, candidate)

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path built from a sanitised name
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrFilesystem, err)
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(p)
			return "", fmt.Errorf("%w: %w", ErrFilesystem, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(p)
			return "", fmt.Errorf("%w: %w", ErrFilesystem, err)
		}
		return p, nil
	}
	return "", fmt.Errorf("%w: no free name for %s in %s", ErrFilesystem, name, dir)
}

// PrepareOutputDir makes sure dir exists and returns the directory to write
// into. When dir already exists and newOnConflict is set, the first free
// sibling dir_01, dir_02, ... is created instead.
func PrepareOutputDir(dir string, newOnConflict bool) (string, error) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("%w: %w", ErrFilesystem, err)
		}
		return dir, nil
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrFilesystem, err)
	case !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrFilesystem, dir)
	case !newOnConflict:
		return dir, nil
	}

	clean := filepath.Clean(dir)
	for i := 1; i <= maxCollisionPrefix; i++ {
		candidate := fmt.Sprintf("%s_%02d", clean, i)
		err := os.Mkdir(candidate, 0o750)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %w", ErrFilesystem, err)
		}
	}
	return "", fmt.Errorf("%w: no free folder name for %s", ErrFilesystem, dir)
}

// folderStopWords carry no information about a gallery.
var folderStopWords = regexp.MustCompile(`\b(pics|pictures|photos|images|gallery|galleries)\b`)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// FolderNameFromURL derives a stable output folder name for a gallery URL:
// host, a slug of the path without generic words, and the first 8 hex
// characters of the URL's MD5. For example
// https://example.test/photos/summer-2023/?page=2 becomes
// example.test-summer-2023-<hash>.
func FolderNameFromURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.TrimRight(trimmed, "/")

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoFolderName, rawURL)
	}

	sum := md5.Sum([]byte(trimmed)) //nolint:gosec
	hash := hex.EncodeToString(sum[:])[:8]
	host := strings.ToLower(u.Hostname())

	slug := foldDiacritics(strings.ToLower(u.Path))
	slug = folderStopWords.ReplaceAllString(slug, "")
	slug = strings.Trim(nonAlnumRun.ReplaceAllString(slug, "-"), "-")

	if slug == "" {
		return host + "-" + hash, nil
	}
	return host + "-" + slug + "-" + hash, nil
}

// foldDiacritics maps "é" to "e" and so on, so accented paths still yield
// readable folder names.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ValidateFolderName rejects names that are blank or would escape the
// output root.
func ValidateFolderName(name string) error {
	n := strings.TrimSpace(name)
	if n == "" || n == "." || n == ".." {
		return fmt.Errorf("invalid folder name %q", name)
	}
	if strings.ContainsAny(n, "/\\\x00") {
		return fmt.Errorf("invalid folder name %q: path separators are not allowed", name)
	}
	return nil
}
