package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore serves a directory tree on the local filesystem. Store paths
// are resolved below the base directory and can never escape it.
//
// Creation times are not portable across filesystems, so entries report
// the modification time.
type LocalStore struct {
	base string
}

// NewLocalStore returns a store rooted at base, which must exist.
func NewLocalStore(base string) (*LocalStore, error) {
	return openLocal(Options{BaseDir: base})
}

func openLocal(opts Options) (*LocalStore, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("%w: %w: base directory", ErrConnect, ErrMissingOption)
	}
	abs, err := filepath.Abs(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrConnect, abs)
	}
	return &LocalStore{base: abs}, nil
}

func (s *LocalStore) resolve(p string) string {
	rel := strings.TrimPrefix(Clean(p), "/")
	return filepath.Join(s.base, filepath.FromSlash(rel))
}

// List implements Store.
func (s *LocalStore) List(_ context.Context, dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.resolve(dir))
	if err != nil {
		return nil, mapLocalError(err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := Entry{Name: de.Name(), IsDir: de.IsDir(), Created: info.ModTime()}
		if !e.IsDir {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CreateDirectory implements Store.
func (s *LocalStore) CreateDirectory(_ context.Context, dir string) error {
	return mapLocalError(os.MkdirAll(s.resolve(dir), 0o750))
}

// Retrieve implements Store.
func (s *LocalStore) Retrieve(_ context.Context, p string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(p))
	if err != nil {
		return nil, mapLocalError(err)
	}
	return data, nil
}

// Store implements Store. The file is written to a temporary name and
// renamed so readers never see a partial file.
func (s *LocalStore) Store(_ context.Context, p string, data []byte) error {
	target := s.resolve(p)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return mapLocalError(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, p string) error {
	if Clean(p) == "/" {
		return errors.New("refusing to delete the store root")
	}
	return mapLocalError(os.Remove(s.resolve(p)))
}

// Close implements Store.
func (s *LocalStore) Close() error {
	return nil
}

func mapLocalError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
