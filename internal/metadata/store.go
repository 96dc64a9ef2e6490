package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ImageRecord describes one downloaded image.
type ImageRecord struct {
	// SourceURL is the canonical URL the image was fetched from.
	// It is the key of the persisted object and is not repeated in the value.
	SourceURL string `json:"-"`

	// Digest is the hex content digest.
	Digest string `json:"hash"`

	// Filename is the path the bytes were written to.
	Filename string `json:"filename"`

	CameraMake  string `json:"camera_make,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
	TakenAt     string `json:"taken_at,omitempty"`
}

// Store is a concurrency-safe URL to ImageRecord mapping with a JSON snapshot.
type Store struct {
	path string

	mu       sync.RWMutex
	records  map[string]ImageRecord
	byDigest map[string]string
}

// NewStore returns an empty Store that is never persisted.
func NewStore() *Store {
	return &Store{
		records:  make(map[string]ImageRecord),
		byDigest: make(map[string]string),
	}
}

// Open loads the snapshot at path. A missing file yields an empty Store
// that will be created on Save.
func Open(path string) (*Store, error) {
	s := NewStore()
	s.path = path
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var raw map[string]ImageRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file %s: %w", path, err)
	}
	s.Merge(raw)
	return s, nil
}

// Path returns the snapshot location, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Has reports whether url has a record.
func (s *Store) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[url]
	return ok
}

// Get returns the record for url.
func (s *Store) Get(url string) (ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[url]
	if ok {
		rec.SourceURL = url
	}
	return rec, ok
}

// LookupDigest returns a record holding the given digest, if any.
func (s *Store) LookupDigest(digest string) (ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.byDigest[digest]
	if !ok {
		return ImageRecord{}, false
	}
	rec := s.records[url]
	rec.SourceURL = url
	return rec, true
}

// Put records rec under url, replacing any previous record.
func (s *Store) Put(url string, rec ImageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(url, rec)
}

// PutIfAbsent records rec under url unless url is already known.
// It reports whether the record was stored.
func (s *Store) PutIfAbsent(url string, rec ImageRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[url]; ok {
		return false
	}
	s.putLocked(url, rec)
	return true
}

func (s *Store) putLocked(url string, rec ImageRecord) {
	rec.SourceURL = ""
	s.records[url] = rec
	if rec.Digest != "" {
		if _, ok := s.byDigest[rec.Digest]; !ok {
			s.byDigest[rec.Digest] = url
		}
	}
}

// Merge adds every record whose URL is not yet known and returns how many
// were added. Existing records win.
func (s *Store) Merge(records map[string]ImageRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for url, rec := range records {
		if _, ok := s.records[url]; ok {
			continue
		}
		s.putLocked(url, rec)
		added++
	}
	return added
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of all records keyed by URL.
func (s *Store) Snapshot() map[string]ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ImageRecord, len(s.records))
	for url, rec := range s.records {
		rec.SourceURL = url
		out[url] = rec
	}
	return out
}

// URLs returns the known URLs in sorted order.
func (s *Store) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, 0, len(s.records))
	for url := range s.records {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Save writes the snapshot to the path given to Open. It is a no-op for
// in-memory stores.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	return s.SaveTo(s.path)
}

// SaveTo writes the snapshot to path. The file is replaced atomically so a
// failed write never truncates an existing snapshot.
func (s *Store) SaveTo(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary metadata file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close metadata file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}
	return nil
}
