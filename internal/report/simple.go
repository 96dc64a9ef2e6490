package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/imgharvest/internal/database"
	"github.com/nao1215/imgharvest/internal/model"
)

// SimpleWriter outputs plain text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every planned deletion instead of only the groups.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// WriteSession implements Writer.
func (w *SimpleWriter) WriteSession(report *model.SessionReport) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n                          CRAWL SESSION\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Seed URL:   %s\n", report.RootURL)
	fmt.Fprintf(&sb, "Folder:     %s\n", report.Folder)
	if report.OutputDir != "" {
		fmt.Fprintf(&sb, "Output:     %s\n", report.OutputDir)
	}
	fmt.Fprintf(&sb, "Depth:      %d\n", report.MaxDepth)
	fmt.Fprintf(&sb, "Started:    %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Duration:   %s\n", report.Duration().Round(time.Millisecond))
	if report.Failed() {
		fmt.Fprintf(&sb, "Status:     ERROR - %s\n", strings.Join(report.Errors, "; "))
	} else {
		sb.WriteString("Status:     Complete\n")
	}
	sb.WriteString("\n")

	section(&sb, "PAGES")
	fmt.Fprintf(&sb, "  Waves:    %d\n", report.Waves)
	fmt.Fprintf(&sb, "  Fetched:  %d\n", report.PagesFetched)
	fmt.Fprintf(&sb, "  Failed:   %d\n\n", report.PagesFailed)

	section(&sb, "IMAGES")
	fmt.Fprintf(&sb, "  Discovered:        %d\n", report.ImagesDiscovered)
	fmt.Fprintf(&sb, "  Downloaded:        %d\n", report.ImagesDownloaded)
	fmt.Fprintf(&sb, "  Already known:     %d\n", report.ImagesKnown)
	fmt.Fprintf(&sb, "  Too small:         %d\n", report.ImagesTooSmall)
	fmt.Fprintf(&sb, "  Duplicate content: %d\n", report.ImagesDuplicate)
	fmt.Fprintf(&sb, "  Failed:            %d\n\n", report.ImagesFailed)

	if s := report.Sync; s != nil {
		section(&sb, "SYNC")
		fmt.Fprintf(&sb, "  Remote folder: %s (%s)\n", s.RemoteDir, s.Mode)
		fmt.Fprintf(&sb, "  Transferred:   %d (%s)\n", s.Transferred, HumanBytes(s.BytesTransferred))
		fmt.Fprintf(&sb, "  Skipped:       %d already on remote\n", s.SkippedExisting)
		if s.DeletedSmall > 0 {
			fmt.Fprintf(&sb, "  Deleted small: %d\n", s.DeletedSmall)
		}
		fmt.Fprintf(&sb, "  Failed:        %d\n", s.Failed)
		for _, f := range s.FailedFiles {
			fmt.Fprintf(&sb, "    [x] %s\n", f)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// WritePlan implements Writer.
func (w *SimpleWriter) WritePlan(plan *model.ResolutionPlan) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scanned %d remote files.\n\n", plan.Scanned)

	if plan.Policy != "" {
		section(&sb, fmt.Sprintf("DUPLICATE GROUPS (%d, policy %s)", len(plan.Groups), plan.Policy))
		if len(plan.Groups) == 0 {
			sb.WriteString("  No duplicates found\n\n")
		}
		for _, g := range plan.Groups {
			fmt.Fprintf(&sb, "[%s] %d copies\n", truncateString(g.Digest, 16), len(g.Delete)+1)
			fmt.Fprintf(&sb, "  keep    %s  %s\n", g.Keep.Created.Format(timeLayout), g.Keep.Path)
			for _, d := range g.Delete {
				fmt.Fprintf(&sb, "  delete  %s  %s\n", d.Created.Format(timeLayout), d.Path)
			}
			sb.WriteString("\n")
		}
	}

	if plan.PurgeThreshold > 0 {
		section(&sb, fmt.Sprintf("SIZE PURGE (<= %d bytes, %d files)", plan.PurgeThreshold, len(plan.Purge)))
		if len(plan.Purge) == 0 {
			sb.WriteString("  No files at or below the threshold\n")
		}
		limit := len(plan.Purge)
		if !w.verbose && limit > 20 {
			limit = 20
		}
		for _, rec := range plan.Purge[:limit] {
			fmt.Fprintf(&sb, "  delete  %8d  %s\n", rec.Size, rec.Path)
		}
		if limit < len(plan.Purge) {
			fmt.Fprintf(&sb, "  ... and %d more (use --verbose to list all)\n", len(plan.Purge)-limit)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Planned deletions: %d files, %s\n", len(plan.Deletions()), HumanBytes(plan.ReclaimableBytes()))
	return w.output.Write([]byte(sb.String()))
}

// WriteResult implements Writer.
func (w *SimpleWriter) WriteResult(result *model.ResolutionResult) (int, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Deleted %d files, freed %s.\n", len(result.Deleted), HumanBytes(result.FreedBytes()))
	if len(result.Failed) > 0 {
		fmt.Fprintf(&sb, "%d deletions failed:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Fprintf(&sb, "  [x] %s: %s\n", f.Record.Path, f.Error)
		}
	}
	return w.output.Write([]byte(sb.String()))
}

// WriteHistory implements Writer.
func (w *SimpleWriter) WriteHistory(sessions []database.SessionSummary) (int, error) {
	var sb strings.Builder
	if len(sessions) == 0 {
		sb.WriteString("No sessions recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}
	fmt.Fprintf(&sb, "%-5s %-20s %-30s %6s %6s %6s %6s\n", "ID", "STARTED", "FOLDER", "PAGES", "IMAGES", "FAILED", "SYNCED")
	for _, s := range sessions {
		fmt.Fprintf(&sb, "%-5d %-20s %-30s %6d %6d %6d %6d\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			truncateString(s.Folder, 30),
			s.PagesFetched,
			s.ImagesDownloaded,
			s.ImagesFailed,
			s.Synced,
		)
	}
	return w.output.Write([]byte(sb.String()))
}
