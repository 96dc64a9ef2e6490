package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/database"
	"github.com/nao1215/imgharvest/internal/dedup"
	"github.com/nao1215/imgharvest/internal/inventory"
	"github.com/nao1215/imgharvest/internal/model"
)

// addResolutionFlags adds the flags shared by dedup and purge.
func addResolutionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("dry-run", false, "Print the plan without deleting anything")
	f.BoolP("yes", "y", false, "Delete the planned files without asking")
	f.Bool("use-cache", false, "Use the saved inventory instead of walking the remote store")
	f.String("inventory-file", config.DefaultInventoryCacheFile(), "Inventory snapshot file")
	f.String("hash", config.DefaultHashAlgorithm, "Content digest: md5, sha256, sha3-256 or blake2b-256")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Remote connection timeout")
	f.Bool("no-history", false, "Do not record deletions in the history database")
	addRemoteFlags(cmd)
	addReportFlags(cmd)
}

func buildResolutionConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	noHistory := false
	if err := errors.Join(
		setFlag(cmd, "dry-run", &cfg.DryRun, f.GetBool),
		setFlag(cmd, "yes", &cfg.Yes, f.GetBool),
		setFlag(cmd, "use-cache", &cfg.UseCache, f.GetBool),
		setFlag(cmd, "inventory-file", &cfg.InventoryCacheFile, f.GetString),
		setFlag(cmd, "hash", &cfg.HashAlgorithm, f.GetString),
		setFlag(cmd, "timeout", &cfg.Timeout, f.GetDuration),
		setFlag(cmd, "no-history", &noHistory, f.GetBool),
		applyRemoteFlags(cmd, &cfg.Remote),
		applyReportFlags(cmd, cfg),
	); err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	return cfg, nil
}

// runResolution inventories the remote library, prints the plan built by
// opts and, when confirmed with --yes, executes it.
func runResolution(cmd *cobra.Command, cfg *config.Config, opts dedup.PlanOptions) error {
	logger := newLogger(cmd, cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := &lazyStore{connect: connector(cfg)}
	defer stores.Close()

	records, err := loadInventory(ctx, cmd.ErrOrStderr(), cfg, stores, logger)
	if err != nil {
		return err
	}

	output, closeOutput, err := openReport(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // report file errors surface through writes
	writer := newReportWriter(cfg, output)

	plan := dedup.Plan(records, opts)
	if _, err := writer.WritePlan(plan); err != nil {
		return err
	}
	if plan.Empty() {
		return nil
	}
	if cfg.DryRun || !cfg.Yes {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing deleted. Re-run with --yes to delete the files listed above.")
		return nil
	}

	store, err := stores.get(ctx)
	if err != nil {
		return err
	}

	resolverOpts := []dedup.ResolverOption{dedup.WithLogger(logger)}
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		resolverOpts = append(resolverOpts, dedup.WithRecorder(db))
	}

	result, execErr := dedup.NewResolver(store, resolverOpts...).Execute(ctx, plan)
	if result != nil {
		if _, err := writer.WriteResult(result); err != nil {
			execErr = errors.Join(execErr, err)
		}
		pruneSnapshot(cfg, records, result, logger)
	}
	if execErr != nil {
		return execErr
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d deletion(s) failed", len(result.Failed), len(result.Failed)+len(result.Deleted))
	}
	return nil
}

// loadInventory returns the remote library's records, from the snapshot
// with --use-cache or from a fresh walk that then replaces the snapshot.
func loadInventory(ctx context.Context, progress io.Writer, cfg *config.Config, stores *lazyStore, logger *slog.Logger) ([]model.RemoteFileRecord, error) {
	if cfg.UseCache {
		records, err := inventory.LoadSnapshot(cfg.InventoryCacheFile)
		if err == nil {
			logger.Info("using inventory snapshot", "path", cfg.InventoryCacheFile, "files", len(records))
			return records, nil
		}
		if !errors.Is(err, inventory.ErrNoSnapshot) {
			return nil, err
		}
		logger.Warn("no inventory snapshot, walking remote store", "path", cfg.InventoryCacheFile)
	}

	store, err := stores.get(ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := newHasher(cfg)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(progress, "Hashing files below %s...\n", cfg.Remote.Root)
	walker := inventory.NewWalker(store,
		inventory.WithHasher(hasher),
		inventory.WithSkipHidden(true),
		inventory.WithLogger(logger),
		inventory.WithProgress(func(done int, path string) {
			if done%100 == 0 {
				fmt.Fprintf(progress, "  %d files (%s)\n", done, path)
			}
		}),
	)
	records, err := walker.Walk(ctx, cfg.Remote.Root)
	if err != nil {
		return nil, err
	}
	if err := inventory.SaveSnapshot(cfg.InventoryCacheFile, records); err != nil {
		logger.Warn("failed to save inventory snapshot", "path", cfg.InventoryCacheFile, "error", err)
	}
	return records, nil
}

// pruneSnapshot drops deleted files from the saved inventory so that a
// later --use-cache run does not plan them again.
func pruneSnapshot(cfg *config.Config, records []model.RemoteFileRecord, result *model.ResolutionResult, logger *slog.Logger) {
	if len(result.Deleted) == 0 {
		return
	}
	deleted := make(map[string]struct{}, len(result.Deleted))
	for _, rec := range result.Deleted {
		deleted[rec.Path] = struct{}{}
	}
	kept := make([]model.RemoteFileRecord, 0, len(records)-len(deleted))
	for _, rec := range records {
		if _, ok := deleted[rec.Path]; !ok {
			kept = append(kept, rec)
		}
	}
	if err := inventory.SaveSnapshot(cfg.InventoryCacheFile, kept); err != nil {
		logger.Warn("failed to update inventory snapshot", "path", cfg.InventoryCacheFile, "error", err)
	}
}
