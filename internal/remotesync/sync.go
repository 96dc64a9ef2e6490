package remotesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote"
)

var (
	// ErrLocalDir is returned when the local folder cannot be read.
	ErrLocalDir = errors.New("cannot read local folder")

	// ErrRemoteDir is returned when the remote folder cannot be listed
	// or created.
	ErrRemoteDir = errors.New("cannot prepare remote folder")
)

// DefaultSmallThreshold is the size below which files are deleted locally
// instead of transferred, when small-file deletion is enabled.
const DefaultSmallThreshold int64 = 10000

// Syncer copies or moves local files into a remote store.
type Syncer struct {
	store          remote.Store
	mode           model.SyncMode
	deleteSmall    bool
	smallThreshold int64
	logger         *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithMove deletes local files after transfer when enabled.
func WithMove(move bool) Option {
	return func(s *Syncer) {
		if move {
			s.mode = model.SyncMove
		} else {
			s.mode = model.SyncCopy
		}
	}
}

// WithDeleteSmall deletes local files smaller than threshold before they
// would be transferred. A non-positive threshold keeps the default.
func WithDeleteSmall(threshold int64) Option {
	return func(s *Syncer) {
		s.deleteSmall = true
		if threshold > 0 {
			s.smallThreshold = threshold
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// New returns a Syncer writing to store. The default mode is copy.
func New(store remote.Store, opts ...Option) *Syncer {
	s := &Syncer{
		store:          store,
		mode:           model.SyncCopy,
		smallThreshold: DefaultSmallThreshold,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync pushes the regular files of localDir into remoteDir.
// Only failures to read localDir or prepare remoteDir are returned as
// errors; per-file problems are counted in the report.
func (s *Syncer) Sync(ctx context.Context, localDir, remoteDir string) (*model.SyncReport, error) {
	remoteDir = remote.Clean(remoteDir)
	report := &model.SyncReport{
		LocalDir:  localDir,
		RemoteDir: remoteDir,
		Mode:      s.mode,
	}

	entries, err := os.ReadDir(localDir)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrLocalDir, err)
	}

	existing, created, err := s.prepareRemote(ctx, remoteDir)
	if err != nil {
		return report, err
	}
	report.CreatedRemoteDir = created

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		s.syncFile(ctx, entry, localDir, remoteDir, existing, report)
	}

	if s.mode == model.SyncMove {
		if err := os.Remove(localDir); err == nil {
			report.LocalDirRemoved = true
		} else {
			s.logger.Debug("local folder kept", "dir", localDir, "error", err)
		}
	}

	s.logger.Info("sync complete",
		"local", localDir,
		"remote", remoteDir,
		"mode", string(s.mode),
		"transferred", report.Transferred,
		"skipped", report.SkippedExisting,
		"deleted_small", report.DeletedSmall,
		"failed", report.Failed,
	)
	return report, nil
}

// prepareRemote lists remoteDir, creating it when absent, and returns the
// names of the files already there.
func (s *Syncer) prepareRemote(ctx context.Context, remoteDir string) (map[string]struct{}, bool, error) {
	existing := make(map[string]struct{})
	list, err := s.store.List(ctx, remoteDir)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		if err := s.store.CreateDirectory(ctx, remoteDir); err != nil {
			return nil, false, fmt.Errorf("%w: create %s: %w", ErrRemoteDir, remoteDir, err)
		}
		s.logger.Info("created remote folder", "dir", remoteDir)
		return existing, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("%w: list %s: %w", ErrRemoteDir, remoteDir, err)
	}
	for _, e := range list {
		if !e.IsDir {
			existing[e.Name] = struct{}{}
		}
	}
	return existing, false, nil
}

func (s *Syncer) syncFile(ctx context.Context, entry os.DirEntry, localDir, remoteDir string, existing map[string]struct{}, report *model.SyncReport) {
	name := entry.Name()
	localPath := filepath.Join(localDir, name)

	if s.deleteSmall {
		info, err := entry.Info()
		if err == nil && info.Size() < s.smallThreshold {
			if err := os.Remove(localPath); err != nil {
				s.logger.Warn("failed to delete small file", "file", localPath, "error", err)
			} else {
				s.logger.Debug("deleted small file", "file", localPath, "size", info.Size())
				report.DeletedSmall++
			}
			return
		}
	}

	if _, ok := existing[name]; ok {
		s.logger.Debug("already on remote", "file", name)
		report.SkippedExisting++
		return
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		s.fail(report, name, "read", err)
		return
	}
	if err := s.store.Store(ctx, remote.Join(remoteDir, name), data); err != nil {
		s.fail(report, name, "transfer", err)
		return
	}
	existing[name] = struct{}{}
	report.Transferred++
	report.BytesTransferred += int64(len(data))

	if s.mode == model.SyncMove {
		if err := os.Remove(localPath); err != nil {
			s.logger.Warn("failed to remove moved file", "file", localPath, "error", err)
		}
	}
}

func (s *Syncer) fail(report *model.SyncReport, name, op string, err error) {
	s.logger.Warn("sync failed", "file", name, "op", op, "error", err)
	report.Failed++
	report.FailedFiles = append(report.FailedFiles, name)
}
