package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nao1215/imgharvest/internal/digest"
	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote"
)

// ErrRootUnavailable is returned when the root itself cannot be listed.
var ErrRootUnavailable = errors.New("inventory root cannot be listed")

// Walker builds an inventory of a remote store.
type Walker struct {
	store      remote.Store
	hasher     *digest.Hasher
	skipHidden bool
	logger     *slog.Logger
	progress   func(done int, path string)
}

// Option configures a Walker.
type Option func(*Walker)

// WithHasher selects the digest algorithm.
func WithHasher(h *digest.Hasher) Option {
	return func(w *Walker) {
		w.hasher = h
	}
}

// WithSkipHidden skips entries whose name starts with a dot.
func WithSkipHidden(skip bool) Option {
	return func(w *Walker) {
		w.skipHidden = skip
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// WithProgress registers a callback invoked after each hashed file.
func WithProgress(fn func(done int, path string)) Option {
	return func(w *Walker) {
		w.progress = fn
	}
}

// NewWalker returns a Walker over store.
func NewWalker(store remote.Store, opts ...Option) *Walker {
	w := &Walker{
		store:  store,
		hasher: digest.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk hashes every file below root and returns the records sorted by
// path. Failing to list root is fatal; failures on deeper directories or
// single files are logged and skipped.
func (w *Walker) Walk(ctx context.Context, root string) ([]model.RemoteFileRecord, error) {
	root = remote.Clean(root)

	var records []model.RemoteFileRecord
	stack := []string{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := w.store.List(ctx, dir)
		if err != nil {
			if dir == root {
				return nil, fmt.Errorf("%w: %s: %w", ErrRootUnavailable, root, err)
			}
			w.logger.Warn("cannot list remote directory", "path", dir, "error", err)
			continue
		}

		// Push subdirectories in reverse so they pop in name order.
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		var subdirs []string
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." {
				continue
			}
			if w.skipHidden && strings.HasPrefix(e.Name, ".") {
				continue
			}
			p := remote.Join(dir, e.Name)
			if e.IsDir {
				subdirs = append(subdirs, p)
				continue
			}

			rec, err := w.hashFile(ctx, p, e)
			if err != nil {
				w.logger.Warn("cannot hash remote file", "path", p, "error", err)
				continue
			}
			records = append(records, rec)
			if w.progress != nil {
				w.progress(len(records), p)
			}
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	w.logger.Info("inventory complete", "root", root, "files", len(records))
	return records, nil
}

func (w *Walker) hashFile(ctx context.Context, p string, e remote.Entry) (model.RemoteFileRecord, error) {
	data, err := w.store.Retrieve(ctx, p)
	if err != nil {
		return model.RemoteFileRecord{}, err
	}
	size := e.Size
	if size == 0 {
		size = int64(len(data))
	}
	return model.RemoteFileRecord{
		Path:    p,
		Digest:  w.hasher.Sum(data),
		Created: model.NewTimestamp(e.Created),
		Size:    size,
	}, nil
}
