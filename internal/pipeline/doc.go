// Package pipeline runs crawl jobs through a fixed sequence of steps.
//
// Each job gets a model.SessionReport that every step receives and
// updates: CrawlStep crawls the seed into a local folder, SyncStep pushes
// the folder to the remote store, and RecordStep saves the finished report
// to the history database. A failing step is recorded in the report; with
// WithContinueOnError the remaining steps still run, so a remote outage
// does not lose the crawl or its history row.
//
// BatchProcessor runs many jobs from a seed job list with bounded
// concurrency using errgroup. Every job gets a fresh pipeline from a
// factory, so scheduler state never leaks between sessions.
package pipeline
