package report

import (
	"fmt"
	"io"

	"github.com/nao1215/imgharvest/internal/database"
	"github.com/nao1215/imgharvest/internal/model"
)

// Writer renders imgharvest results. Every method returns the number of
// bytes written.
type Writer interface {
	// WriteSession renders one crawl session and its sync.
	WriteSession(report *model.SessionReport) (int, error)

	// WritePlan renders the deletions a dedup or purge run intends to make.
	WritePlan(plan *model.ResolutionPlan) (int, error)

	// WriteResult renders what executing a plan did.
	WriteResult(result *model.ResolutionResult) (int, error)

	// WriteHistory renders recorded sessions, newest first.
	WriteHistory(sessions []database.SessionSummary) (int, error)
}

// MultiWriter writes to multiple Writers. Our Writer renders reports
// rather than bytes, so io.MultiWriter does not apply.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// each calls fn for every writer and stops on the first error.
func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSession implements Writer.
func (m *MultiWriter) WriteSession(report *model.SessionReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSession(report) })
}

// WritePlan implements Writer.
func (m *MultiWriter) WritePlan(plan *model.ResolutionPlan) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WritePlan(plan) })
}

// WriteResult implements Writer.
func (m *MultiWriter) WriteResult(result *model.ResolutionResult) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteResult(result) })
}

// WriteHistory implements Writer.
func (m *MultiWriter) WriteHistory(sessions []database.SessionSummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHistory(sessions) })
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// HumanBytes formats n with binary units, e.g. "1.5 MiB".
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

const timeLayout = "2006-01-02 15:04:05 MST"
