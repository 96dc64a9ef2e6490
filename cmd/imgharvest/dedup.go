package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/dedup"
)

// NewDedupCmd creates the dedup command.
func NewDedupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate copies from the remote library",
		Long: `Dedup hashes every file below the remote library root, groups files with
identical content and keeps one file per group.

--policy chooses the survivor by creation time:
  delete-newer  keep the oldest copy (default)
  delete-older  keep the newest copy

The plan is always printed first. Files are only deleted with --yes.
--purge-size additionally deletes files at or below that many bytes.

Examples:
  # Show what would be deleted
  imgharvest dedup --remote-host nas.local

  # Delete, keeping the newest copy, reusing the last inventory
  imgharvest dedup --policy delete-older --use-cache --yes`,
		Args: cobra.NoArgs,
		RunE: runDedupCmd,
	}

	cmd.Flags().StringP("policy", "p", config.DefaultDatePolicy, "Which copies to delete: delete-newer or delete-older")
	cmd.Flags().Int64("purge-size", 0, "Also delete files at or below this many bytes (0 = off)")
	addResolutionFlags(cmd)

	return cmd
}

func runDedupCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildResolutionConfig(cmd)
	if err != nil {
		return err
	}
	cfg.SizePurgeThresholdBytes = 0
	f := cmd.Flags()
	if err := setFlag(cmd, "policy", &cfg.DatePolicy, f.GetString); err != nil {
		return err
	}
	if err := setFlag(cmd, "purge-size", &cfg.SizePurgeThresholdBytes, f.GetInt64); err != nil {
		return err
	}
	if err := cfg.ValidateDedup(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	policy, err := dedup.ParsePolicy(cfg.DatePolicy)
	if err != nil {
		return err
	}
	return runResolution(cmd, cfg, dedup.PlanOptions{
		Duplicates:     true,
		Policy:         policy,
		PurgeThreshold: cfg.SizePurgeThresholdBytes,
	})
}
