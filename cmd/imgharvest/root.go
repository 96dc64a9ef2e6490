package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for imgharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgharvest",
		Short: "Crawl image galleries and maintain a deduplicated remote photo library",
		Long: `imgharvest crawls web pages breadth-first to a fixed depth, downloads every
image it finds, and skips images it has already seen by URL or by content.

Downloaded folders can be synced to a remote store (SMB share, S3 bucket or
a local directory). The remote library can be inventoried by content hash
to remove duplicate copies and purge undersized files.

Settings are read from .imgharvest (see "imgharvest init"), then the
IMGHARVEST_* environment variables, then flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .imgharvest in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "", "History database directory (default: XDG data directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewDedupCmd())
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
