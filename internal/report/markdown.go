package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imgharvest/internal/database"
	"github.com/nao1215/imgharvest/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteSession implements Writer.
func (w *MarkdownWriter) WriteSession(report *model.SessionReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Session")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + report.RootURL + "`"},
			{"Folder", "`" + report.Folder + "`"},
			{"Depth", strconv.Itoa(report.MaxDepth)},
			{"Workers", strconv.Itoa(report.MaxWorkers)},
			{"Started", report.StartedAt.Format(timeLayout)},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Status", sessionStatus(report)},
		},
	})
	md.PlainText("")

	md.H2("Pages")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Waves", "Fetched", "Failed"},
		Rows: [][]string{{
			strconv.Itoa(report.Waves),
			strconv.Itoa(report.PagesFetched),
			strconv.Itoa(report.PagesFailed),
		}},
	})
	md.PlainText("")

	md.H2("Images")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(report.ImagesDownloaded)},
			{"Already known", strconv.Itoa(report.ImagesKnown)},
			{"Too small", strconv.Itoa(report.ImagesTooSmall)},
			{"Duplicate content", strconv.Itoa(report.ImagesDuplicate)},
			{"Failed", strconv.Itoa(report.ImagesFailed)},
			{"**Discovered**", "**" + strconv.Itoa(report.ImagesDiscovered) + "**"},
		},
	})
	md.PlainText("")
	if report.ImagesDiscovered > 0 {
		w.writeOutcomeChart(md, report)
	}

	if s := report.Sync; s != nil {
		md.H2("Sync")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Remote folder", "Mode", "Transferred", "Bytes", "Skipped", "Failed"},
			Rows: [][]string{{
				"`" + s.RemoteDir + "`",
				string(s.Mode),
				strconv.Itoa(s.Transferred),
				HumanBytes(s.BytesTransferred),
				strconv.Itoa(s.SkippedExisting),
				strconv.Itoa(s.Failed),
			}},
		})
		md.PlainText("")
		if len(s.FailedFiles) > 0 {
			md.Warningf("%d file(s) could not be transferred and were kept locally.", len(s.FailedFiles))
			md.PlainText("")
			md.BulletList(s.FailedFiles...)
			md.PlainText("")
		}
	}

	if report.Failed() {
		md.H2("Errors")
		md.PlainText("")
		md.BulletList(report.Errors...)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func sessionStatus(report *model.SessionReport) string {
	if report.Failed() {
		return "❌ Error"
	}
	return "✅ Complete"
}

// writeOutcomeChart writes a mermaid pie chart of image outcomes.
func (w *MarkdownWriter) writeOutcomeChart(md *markdown.Markdown, report *model.SessionReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Image Outcomes"),
		piechart.WithShowData(true),
	)
	for _, o := range []struct {
		label string
		n     int
	}{
		{"Downloaded", report.ImagesDownloaded},
		{"Known", report.ImagesKnown},
		{"Too small", report.ImagesTooSmall},
		{"Duplicate", report.ImagesDuplicate},
		{"Failed", report.ImagesFailed},
	} {
		if o.n > 0 {
			chart.LabelAndIntValue(o.label, uint64(o.n)) //nolint:gosec // counts are never negative
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// WritePlan implements Writer.
func (w *MarkdownWriter) WritePlan(plan *model.ResolutionPlan) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Remote Cleanup Plan")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Scanned", "Duplicate groups", "Undersized", "Deletions", "Reclaimable"},
		Rows: [][]string{{
			strconv.Itoa(plan.Scanned),
			strconv.Itoa(len(plan.Groups)),
			strconv.Itoa(len(plan.Purge)),
			strconv.Itoa(len(plan.Deletions())),
			HumanBytes(plan.ReclaimableBytes()),
		}},
	})
	md.PlainText("")

	if plan.Empty() {
		md.Tip("Nothing to delete.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	if len(plan.Groups) > 0 {
		md.H2("Duplicates (policy `" + plan.Policy + "`)")
		md.PlainText("")
		rows := make([][]string, 0, len(plan.Groups)*2)
		for _, g := range plan.Groups {
			digest := truncateString(g.Digest, 16)
			rows = append(rows, []string{digest, "keep", "`" + g.Keep.Path + "`", g.Keep.Created.Format(timeLayout)})
			for _, d := range g.Delete {
				rows = append(rows, []string{digest, "delete", "`" + d.Path + "`", d.Created.Format(timeLayout)})
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Hash", "Action", "Path", "Created"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(plan.Purge) > 0 {
		md.H2("Size purge (at or below " + strconv.FormatInt(plan.PurgeThreshold, 10) + " bytes)")
		md.PlainText("")
		rows := make([][]string, len(plan.Purge))
		for i, rec := range plan.Purge {
			rows[i] = []string{"`" + rec.Path + "`", strconv.FormatInt(rec.Size, 10)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Path", "Size"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	md.Cautionf("Executing this plan permanently deletes %d remote file(s).", len(plan.Deletions()))
	md.PlainText("")
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteResult implements Writer.
func (w *MarkdownWriter) WriteResult(result *model.ResolutionResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Cleanup Result")
	md.PlainText("")
	md.PlainTextf("Deleted **%d** file(s), freed **%s**.", len(result.Deleted), HumanBytes(result.FreedBytes()))
	md.PlainText("")
	if len(result.Failed) > 0 {
		rows := make([][]string, len(result.Failed))
		for i, f := range result.Failed {
			rows[i] = []string{"`" + f.Record.Path + "`", truncateString(f.Error, 80)}
		}
		md.Warningf("%d deletion(s) failed.", len(result.Failed))
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Path", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	return len(md.String()), md.Build()
}

// WriteHistory implements Writer.
func (w *MarkdownWriter) WriteHistory(sessions []database.SessionSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl History")
	md.PlainText("")
	if len(sessions) == 0 {
		md.Note("No sessions recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		rows[i] = []string{
			strconv.FormatInt(s.ID, 10),
			s.StartedAt.Format(timeLayout),
			"`" + s.Folder + "`",
			strings.TrimSpace(truncateString(s.RootURL, 50)),
			strconv.Itoa(s.PagesFetched),
			strconv.Itoa(s.ImagesDownloaded),
			strconv.Itoa(s.ImagesFailed),
			strconv.Itoa(s.Synced),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Folder", "URL", "Pages", "Images", "Failed", "Synced"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [imgharvest](https://github.com/nao1215/imgharvest)*")
}
