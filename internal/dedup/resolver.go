package dedup

import (
	"context"
	"log/slog"

	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote"
)

// Reason labels why a file was deleted.
type Reason string

const (
	// ReasonDuplicate marks a non-surviving duplicate.
	ReasonDuplicate Reason = "duplicate"
	// ReasonUndersized marks a size purge deletion.
	ReasonUndersized Reason = "undersized"
)

// Recorder receives every successful deletion, for example to keep a
// history.
type Recorder interface {
	RecordDeletion(ctx context.Context, rec model.RemoteFileRecord, reason string) error
}

// Resolver executes ResolutionPlans against a remote store.
type Resolver struct {
	store    remote.Store
	recorder Recorder
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRecorder registers a deletion recorder.
func WithRecorder(r Recorder) ResolverOption {
	return func(res *Resolver) {
		res.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(res *Resolver) {
		res.logger = logger
	}
}

// NewResolver returns a Resolver deleting from store.
func NewResolver(store remote.Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute deletes every file the plan lists. A path is deleted at most
// once even if it is both a duplicate and undersized. Individual failures
// are logged and reported; Execute only returns an error if ctx is done.
func (r *Resolver) Execute(ctx context.Context, plan *model.ResolutionPlan) (*model.ResolutionResult, error) {
	result := &model.ResolutionResult{Deleted: []model.RemoteFileRecord{}}
	done := make(map[string]struct{})

	for _, g := range plan.Groups {
		for _, rec := range g.Delete {
			if err := r.delete(ctx, rec, ReasonDuplicate, done, result); err != nil {
				return result, err
			}
		}
	}
	for _, rec := range plan.Purge {
		if err := r.delete(ctx, rec, ReasonUndersized, done, result); err != nil {
			return result, err
		}
	}

	r.logger.Info("resolution complete",
		"deleted", len(result.Deleted),
		"failed", len(result.Failed),
		"freed_bytes", result.FreedBytes(),
	)
	return result, nil
}

func (r *Resolver) delete(ctx context.Context, rec model.RemoteFileRecord, reason Reason, done map[string]struct{}, result *model.ResolutionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := done[rec.Path]; ok {
		return nil
	}
	done[rec.Path] = struct{}{}

	if err := r.store.Delete(ctx, rec.Path); err != nil {
		r.logger.Warn("delete failed", "path", rec.Path, "reason", string(reason), "error", err)
		result.Failed = append(result.Failed, model.DeletionFailure{Record: rec, Error: err.Error()})
		return nil
	}
	r.logger.Debug("deleted", "path", rec.Path, "reason", string(reason), "size", rec.Size)
	result.Deleted = append(result.Deleted, rec)

	if r.recorder != nil {
		if err := r.recorder.RecordDeletion(ctx, rec, string(reason)); err != nil {
			r.logger.Warn("failed to record deletion", "path", rec.Path, "error", err)
		}
	}
	return nil
}
