// Package metadata persists what the crawler already knows about images.
//
// The Store maps a canonical image URL to an ImageRecord holding the
// content digest and the local path the bytes were written to. It is read
// once when a crawl session starts, mutated in memory while downloads
// complete, and written back as a single JSON object when the session ends.
// A crash in between loses that session's new records; the next run simply
// downloads those images again.
//
// The on-disk format is the plain object
//
//	{"https://example.test/a.jpg": {"hash": "...", "filename": "out/a.jpg"}}
//
// so snapshots written by older tooling load without conversion. Optional
// EXIF fields are omitted when empty.
package metadata
