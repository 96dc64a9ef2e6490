// Package database provides the SQLite history store for imgharvest.
//
// The history database records:
//   - one row per crawl session, with its counters and the full report
//   - one row per file deleted from the remote store by dedup or purge
//
// SQLite (via modernc.org/sqlite) keeps the history in a single CGO-free
// file under the XDG data directory. The database is opened in WAL mode
// with a single connection.
package database
