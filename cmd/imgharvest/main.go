// Package main provides the entry point for the imgharvest CLI.
//
// imgharvest crawls web galleries, downloads their images with
// content-hash deduplication, and keeps a remote photo library (SMB share,
// S3 bucket or local directory) in order: syncing new folders into it,
// removing duplicate copies and purging undersized files.
//
// Usage:
//
//	imgharvest crawl https://example.com/gallery
//	imgharvest crawl --jobs jobs.csv --sync --move
//	imgharvest dedup --policy delete-newer --yes
//
// See --help for all available options.
package main

func main() {
	Execute()
}
