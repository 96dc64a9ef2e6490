package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/imgharvest/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "imgharvest.db"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("history record not found")

// HistoryDB stores crawl sessions and remote deletions.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file. Concurrent CLI runs wait
	// on each other's locks instead of failing with SQLITE_BUSY.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_url TEXT NOT NULL,
		folder TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		pages_fetched INTEGER DEFAULT 0,
		pages_failed INTEGER DEFAULT 0,
		images_downloaded INTEGER DEFAULT 0,
		images_failed INTEGER DEFAULT 0,
		synced INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_folder ON sessions(folder);

	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		hash TEXT,
		size INTEGER DEFAULT 0,
		reason TEXT NOT NULL,
		deleted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_deletions_hash ON deletions(hash);
	CREATE INDEX IF NOT EXISTS idx_deletions_deleted ON deletions(deleted_at);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SessionSummary is one row of the sessions table.
type SessionSummary struct {
	ID               int64
	RootURL          string
	Folder           string
	StartedAt        time.Time
	FinishedAt       time.Time
	PagesFetched     int
	PagesFailed      int
	ImagesDownloaded int
	ImagesFailed     int
	Synced           int
}

// Duration is the session's wall-clock time.
func (s SessionSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// InsertSession stores a finished session report and sets report.ID to
// the new row id.
func (h *HistoryDB) InsertSession(ctx context.Context, report *model.SessionReport) (int64, error) {
	synced := 0
	if report.Sync != nil {
		synced = report.Sync.Transferred
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO sessions (root_url, folder, started_at, finished_at,
		pages_fetched, pages_failed, images_downloaded, images_failed, synced, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '{}')
	`,
		report.RootURL,
		report.Folder,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.PagesFetched,
		report.PagesFailed,
		report.ImagesDownloaded,
		report.ImagesFailed,
		synced,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}

	// The stored JSON carries the row id as well.
	report.ID = id
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize session report: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET report_json = ? WHERE id = ?`, string(reportJSON), id); err != nil {
		return 0, fmt.Errorf("failed to store session report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

// ListSessions returns the most recent sessions first. A non-positive
// limit returns every session.
func (h *HistoryDB) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `
	SELECT id, root_url, folder, started_at, COALESCE(finished_at, ''),
		pages_fetched, pages_failed, images_downloaded, images_failed, synced
	FROM sessions
	ORDER BY started_at DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var started, finished string
		if err := rows.Scan(&s.ID, &s.RootURL, &s.Folder, &started, &finished,
			&s.PagesFetched, &s.PagesFailed, &s.ImagesDownloaded, &s.ImagesFailed, &s.Synced); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		results = append(results, s)
	}
	return results, rows.Err()
}

// GetSession returns the full report stored under id.
func (h *HistoryDB) GetSession(ctx context.Context, id int64) (*model.SessionReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx,
		`SELECT report_json FROM sessions WHERE id = ?`, id,
	).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var report model.SessionReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse session report: %w", err)
	}
	return &report, nil
}

// Deletion is one row of the deletions table.
type Deletion struct {
	ID        int64
	Path      string
	Digest    string
	Size      int64
	Reason    string
	DeletedAt time.Time
}

// RecordDeletion stores a remote file deletion.
func (h *HistoryDB) RecordDeletion(ctx context.Context, rec model.RemoteFileRecord, reason string) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO deletions (path, hash, size, reason) VALUES (?, ?, ?, ?)`,
		rec.Path, rec.Digest, rec.Size, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deletion: %w", err)
	}
	return nil
}

// ListDeletions returns deletions newest first, optionally filtered by
// reason. A non-positive limit returns every row.
func (h *HistoryDB) ListDeletions(ctx context.Context, reason string, limit int) ([]Deletion, error) {
	query := `
	SELECT id, path, COALESCE(hash, ''), size, reason, deleted_at
	FROM deletions
	WHERE 1=1
	`
	args := make([]any, 0, 2)
	if reason != "" {
		query += " AND reason = ?"
		args = append(args, reason)
	}
	query += " ORDER BY deleted_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deletions: %w", err)
	}
	defer rows.Close()

	var results []Deletion
	for rows.Next() {
		var d Deletion
		var deletedAt string
		if err := rows.Scan(&d.ID, &d.Path, &d.Digest, &d.Size, &d.Reason, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deletion: %w", err)
		}
		d.DeletedAt = parseTimestamp(deletedAt)
		results = append(results, d)
	}
	return results, rows.Err()
}

// DeletionTotals sums deletions per reason.
func (h *HistoryDB) DeletionTotals(ctx context.Context) (map[string]int64, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT reason, SUM(size) FROM deletions GROUP BY reason`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum deletions: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var reason string
		var size int64
		if err := rows.Scan(&reason, &size); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals[reason] = size
	}
	return totals, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// storedTimeLayout has a fixed width so stored values sort as text.
const storedTimeLayout = "2006-01-02 15:04:05.000000000"

func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(storedTimeLayout)
}
