package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote"
	"github.com/nao1215/imgharvest/internal/remotesync"
	"github.com/nao1215/imgharvest/internal/report"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <local-dir> [remote-folder]",
		Short: "Copy or move a local folder into the remote library",
		Long: `Sync transfers the files of a local folder to <remote-root>/<remote-folder>.
The remote folder defaults to the local folder's name and is created if
missing.

Files that already exist remotely under the same name are skipped; their
contents are not compared. A failed transfer leaves the local file in
place. With --move, transferred files are deleted locally and the folder
is removed once empty.

Examples:
  # Copy a crawl folder to the NAS
  imgharvest sync images/example.com-summer-1a2b3c4d --remote-host nas.local

  # Move it into a differently named folder, dropping small files
  imgharvest sync images/summer summer-2023 --move --delete-small`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runSyncCmd,
	}

	f := cmd.Flags()
	f.Bool("move", false, "Delete local files after a successful transfer")
	f.Bool("delete-small", false, "Delete local files below --small-size instead of transferring them")
	f.Int64("small-size", config.DefaultSmallFileThresholdBytes, "Size limit for --delete-small")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Remote connection timeout")
	f.BoolP("json", "j", false, "Output the sync report as JSON")
	addRemoteFlags(cmd)

	return cmd
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if err := errors.Join(
		setFlag(cmd, "move", &cfg.Move, f.GetBool),
		setFlag(cmd, "delete-small", &cfg.DeleteSmallBeforeSync, f.GetBool),
		setFlag(cmd, "small-size", &cfg.SmallFileThresholdBytes, f.GetInt64),
		setFlag(cmd, "timeout", &cfg.Timeout, f.GetDuration),
		setFlag(cmd, "json", &cfg.JSONReport, f.GetBool),
		applyRemoteFlags(cmd, &cfg.Remote),
	); err != nil {
		return err
	}
	if err := cfg.ValidateSync(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	localDir := args[0]
	folder := filepath.Base(filepath.Clean(localDir))
	if len(args) == 2 {
		folder = args[1]
	}

	logger := newLogger(cmd, cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := connector(cfg)(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	remoteDir := remote.Join(cfg.Remote.Root, folder)
	rep, err := remotesync.New(store, syncOptions(cfg, logger)...).Sync(ctx, localDir, remoteDir)
	if rep != nil {
		if werr := writeSyncReport(cmd.OutOrStdout(), rep, cfg.JSONReport); werr != nil {
			return errors.Join(err, werr)
		}
	}
	if err != nil {
		return err
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d file(s) failed to transfer", rep.Failed)
	}
	return nil
}

func writeSyncReport(w io.Writer, rep *model.SyncReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	lines := []string{
		fmt.Sprintf("Sync %s -> %s (%s)", rep.LocalDir, rep.RemoteDir, rep.Mode),
		fmt.Sprintf("  transferred:      %d (%s)", rep.Transferred, report.HumanBytes(rep.BytesTransferred)),
		fmt.Sprintf("  already present:  %d", rep.SkippedExisting),
		fmt.Sprintf("  deleted as small: %d", rep.DeletedSmall),
		fmt.Sprintf("  failed:           %d", rep.Failed),
	}
	if rep.CreatedRemoteDir {
		lines = append(lines, "  created remote folder")
	}
	if rep.LocalDirRemoved {
		lines = append(lines, "  removed local folder")
	}
	for _, name := range rep.FailedFiles {
		lines = append(lines, "  ! "+name)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
