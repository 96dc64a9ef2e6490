// Package model defines the data shared by the crawler, the remote
// library tools and the reports: crawl jobs, session reports, sync
// reports, remote file records and duplicate resolution plans.
//
// The types carry JSON tags; they are written to reports, the history
// database and the inventory snapshot.
package model
