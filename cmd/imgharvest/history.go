package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/database"
	"github.com/nao1215/imgharvest/internal/report"
)

const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded crawl sessions",
		Long: `History lists the crawl sessions stored in the history database, newest
first. Use "history show <id>" for one session's full report and
"history deletions" for files removed by dedup and purge.`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of sessions to list (0 = all)")
	addReportFlags(cmd)

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeletionsCmd())
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the report of one crawl session",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	addReportFlags(cmd)
	return cmd
}

func newHistoryDeletionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deletions",
		Short: "List files deleted by dedup and purge",
		Args:  cobra.NoArgs,
		RunE:  runHistoryDeletionsCmd,
	}
	cmd.Flags().String("reason", "", "Only list deletions with this reason: duplicate or undersized")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of deletions to list (0 = all)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

// openHistory loads the configuration and opens the history database.
func openHistory(cmd *cobra.Command) (*config.Config, *database.HistoryDB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, db, nil
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := applyReportFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	sessions, err := db.ListSessions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writeReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteHistory(sessions)
		return err
	})
}

func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid session id: %q", args[0])
	}

	cfg, db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := applyReportFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	session, err := db.GetSession(cmd.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("session %d not found", id)
	}
	if err != nil {
		return err
	}
	return writeReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteSession(session)
		return err
	})
}

func runHistoryDeletionsCmd(cmd *cobra.Command, _ []string) error {
	_, db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	f := cmd.Flags()
	reason, err := f.GetString("reason")
	if err != nil {
		return err
	}
	limit, err := f.GetInt("limit")
	if err != nil {
		return err
	}
	asJSON, err := f.GetBool("json")
	if err != nil {
		return err
	}

	deletions, err := db.ListDeletions(cmd.Context(), reason, limit)
	if err != nil {
		return err
	}
	totals, err := db.DeletionTotals(cmd.Context())
	if err != nil {
		return err
	}
	return writeDeletions(cmd.OutOrStdout(), deletions, totals, asJSON)
}

// writeReport opens the configured report destination and writes to it.
func writeReport(cmd *cobra.Command, cfg *config.Config, write func(report.Writer) error) error {
	output, closeOutput, err := openReport(cmd, cfg)
	if err != nil {
		return err
	}
	err = write(newReportWriter(cfg, output))
	return errors.Join(err, closeOutput())
}

type deletionEntry struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Digest    string `json:"digest,omitempty"`
	Size      int64  `json:"size"`
	Reason    string `json:"reason"`
	DeletedAt string `json:"deleted_at"`
}

type deletionListing struct {
	Deletions []deletionEntry  `json:"deletions"`
	Totals    map[string]int64 `json:"totals"`
}

func writeDeletions(w io.Writer, deletions []database.Deletion, totals map[string]int64, asJSON bool) error {
	if asJSON {
		listing := deletionListing{Deletions: make([]deletionEntry, 0, len(deletions)), Totals: totals}
		for _, d := range deletions {
			listing.Deletions = append(listing.Deletions, deletionEntry{
				ID:        d.ID,
				Path:      d.Path,
				Digest:    d.Digest,
				Size:      d.Size,
				Reason:    d.Reason,
				DeletedAt: d.DeletedAt.Format(time.RFC3339),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	if len(deletions) == 0 {
		_, err := fmt.Fprintln(w, "No deletions recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDELETED\tREASON\tSIZE\tPATH")
	for _, d := range deletions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			d.ID, d.DeletedAt.Local().Format("2006-01-02 15:04"), d.Reason, report.HumanBytes(d.Size), d.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	reasons := make([]string, 0, len(totals))
	for r := range totals {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	fmt.Fprintln(w)
	for _, r := range reasons {
		fmt.Fprintf(w, "Total %s: %d\n", r, totals[r])
	}
	return nil
}
