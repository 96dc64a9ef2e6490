// Package crawler discovers images reachable from a seed page and downloads
// them.
//
// # Components
//
//   - Frontier: depth-tagged queue with a visited set and canonical URLs
//   - Parser: HTML link and image-source extraction (golang.org/x/net/html)
//   - PageFetcher: fetches one page and reports new links and images
//   - Downloader: fetches one image, filters by size, hashes it, writes it
//     under a collision-free name and records it in the metadata store
//   - Scheduler: runs the session in waves
//
// # Waves
//
// The Scheduler takes up to maxWorkers entries from the Frontier, fetches
// them concurrently, enqueues the links they contain at depth+1, and then
// downloads every image the wave discovered, again with at most maxWorkers
// in flight. Only when those downloads have finished does the next wave
// start. Pending downloads therefore never accumulate across waves.
//
// # Failure handling
//
// A page or image that fails is logged and skipped. Connection errors and
// timeouts are retried with exponential backoff up to the retry ceiling;
// HTTP error statuses are not retried. The session itself only fails when
// its seed is invalid or the metadata store cannot be saved.
//
// # Usage
//
//	store, _ := metadata.Open("image_info.json")
//	fetcher := crawler.NewPageFetcher(client)
//	downloader := crawler.NewDownloader(client, store, crawler.WithMinImageSize(10000))
//	sched := crawler.NewScheduler(fetcher, downloader, store, crawler.WithMaxWorkers(8))
//	report, err := sched.Run(ctx, model.Job{URL: "https://example.test/", MaxDepth: 1}, "out")
package crawler
