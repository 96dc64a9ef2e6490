package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/imgharvest/internal/database"
	"github.com/nao1215/imgharvest/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteSession implements Writer.
func (w *JSONWriter) WriteSession(report *model.SessionReport) (int, error) {
	return w.writeJSON(report)
}

// PlanDocument is the JSON shape of a plan, with derived totals.
type PlanDocument struct {
	*model.ResolutionPlan
	Deletions        int   `json:"deletions"`
	ReclaimableBytes int64 `json:"reclaimable_bytes"`
}

// WritePlan implements Writer.
func (w *JSONWriter) WritePlan(plan *model.ResolutionPlan) (int, error) {
	return w.writeJSON(PlanDocument{
		ResolutionPlan:   plan,
		Deletions:        len(plan.Deletions()),
		ReclaimableBytes: plan.ReclaimableBytes(),
	})
}

// WriteResult implements Writer.
func (w *JSONWriter) WriteResult(result *model.ResolutionResult) (int, error) {
	return w.writeJSON(struct {
		*model.ResolutionResult
		FreedBytes int64 `json:"freed_bytes"`
	}{result, result.FreedBytes()})
}

type historyRow struct {
	ID               int64  `json:"id"`
	RootURL          string `json:"root_url"`
	Folder           string `json:"folder"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at,omitempty"`
	PagesFetched     int    `json:"pages_fetched"`
	PagesFailed      int    `json:"pages_failed"`
	ImagesDownloaded int    `json:"images_downloaded"`
	ImagesFailed     int    `json:"images_failed"`
	Synced           int    `json:"synced"`
}

// WriteHistory implements Writer.
func (w *JSONWriter) WriteHistory(sessions []database.SessionSummary) (int, error) {
	rows := make([]historyRow, len(sessions))
	for i, s := range sessions {
		rows[i] = historyRow{
			ID:               s.ID,
			RootURL:          s.RootURL,
			Folder:           s.Folder,
			StartedAt:        s.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			PagesFetched:     s.PagesFetched,
			PagesFailed:      s.PagesFailed,
			ImagesDownloaded: s.ImagesDownloaded,
			ImagesFailed:     s.ImagesFailed,
			Synced:           s.Synced,
		}
		if !s.FinishedAt.IsZero() {
			rows[i].FinishedAt = s.FinishedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	return w.writeJSON(rows)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
