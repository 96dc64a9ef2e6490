package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/dedup"
)

// NewPurgeCmd creates the purge command.
func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete undersized files from the remote library",
		Long: `Purge deletes every file below the remote library root whose size is at
or below --size bytes, whether or not it has duplicates.

The plan is always printed first. Files are only deleted with --yes.

Examples:
  # List files of 10000 bytes or less
  imgharvest purge --remote-host nas.local

  # Delete files of 50 KiB or less
  imgharvest purge --size 51200 --yes`,
		Args: cobra.NoArgs,
		RunE: runPurgeCmd,
	}

	cmd.Flags().Int64P("size", "s", config.DefaultSizePurgeThresholdBytes, "Delete files at or below this many bytes")
	addResolutionFlags(cmd)

	return cmd
}

func runPurgeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildResolutionConfig(cmd)
	if err != nil {
		return err
	}
	if err := setFlag(cmd, "size", &cfg.SizePurgeThresholdBytes, cmd.Flags().GetInt64); err != nil {
		return err
	}
	if err := cfg.ValidatePurge(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return runResolution(cmd, cfg, dedup.PlanOptions{PurgeThreshold: cfg.SizePurgeThresholdBytes})
}
