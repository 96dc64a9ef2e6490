// Package remotetest provides an in-process remote.Store for tests of the
// packages that consume one.
package remotetest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/imgharvest/internal/remote"
)

var _ remote.Store = (*MemoryStore)(nil)

// MemoryStore is an in-process remote.Store. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]memFile
	dirs  map[string]struct{}

	// FailStore and FailDelete, when set, make the matching calls fail
	// for the given paths.
	FailStore  map[string]error
	FailDelete map[string]error
}

type memFile struct {
	data    []byte
	created time.Time
}

// NewMemoryStore returns an empty store containing only the root directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]memFile),
		dirs:  map[string]struct{}{"/": {}},
	}
}

// Put adds a file with an explicit creation time, creating parents.
func (m *MemoryStore) Put(p string, data []byte, created time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = remote.Clean(p)
	m.mkdirAllLocked(path.Dir(p))
	m.files[p] = memFile{data: append([]byte(nil), data...), created: created}
}

// Has reports whether a file exists at p.
func (m *MemoryStore) Has(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[remote.Clean(p)]
	return ok
}

// HasDir reports whether a directory exists at p.
func (m *MemoryStore) HasDir(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.dirs[remote.Clean(p)]
	return ok
}

// Paths returns every file path in sorted order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// List implements remote.Store.
func (m *MemoryStore) List(_ context.Context, dir string) ([]remote.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = remote.Clean(dir)
	if _, ok := m.dirs[dir]; !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrNotFound, dir)
	}

	var entries []remote.Entry
	for d := range m.dirs {
		if d != "/" && path.Dir(d) == dir {
			entries = append(entries, remote.Entry{Name: path.Base(d), IsDir: true})
		}
	}
	for p, f := range m.files {
		if path.Dir(p) == dir {
			entries = append(entries, remote.Entry{Name: path.Base(p), Size: int64(len(f.data)), Created: f.created})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// CreateDirectory implements remote.Store.
func (m *MemoryStore) CreateDirectory(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(remote.Clean(dir))
	return nil
}

func (m *MemoryStore) mkdirAllLocked(dir string) {
	for d := dir; ; d = path.Dir(d) {
		m.dirs[d] = struct{}{}
		if d == "/" {
			return
		}
	}
}

// Retrieve implements remote.Store.
func (m *MemoryStore) Retrieve(_ context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[remote.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrNotFound, p)
	}
	return append([]byte(nil), f.data...), nil
}

// Store implements remote.Store.
func (m *MemoryStore) Store(_ context.Context, p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = remote.Clean(p)
	if err := m.FailStore[p]; err != nil {
		return err
	}
	if _, ok := m.dirs[path.Dir(p)]; !ok {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, path.Dir(p))
	}
	m.files[p] = memFile{data: append([]byte(nil), data...), created: time.Now()}
	return nil
}

// Delete implements remote.Store.
func (m *MemoryStore) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = remote.Clean(p)
	if err := m.FailDelete[p]; err != nil {
		return err
	}
	if _, ok := m.files[p]; ok {
		delete(m.files, p)
		return nil
	}
	if _, ok := m.dirs[p]; ok && p != "/" {
		for other := range m.files {
			if strings.HasPrefix(other, p+"/") {
				return fmt.Errorf("directory %s is not empty", p)
			}
		}
		delete(m.dirs, p)
		return nil
	}
	return fmt.Errorf("%w: %s", remote.ErrNotFound, p)
}

// Close implements remote.Store.
func (m *MemoryStore) Close() error {
	return nil
}
