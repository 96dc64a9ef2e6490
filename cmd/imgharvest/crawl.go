package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/crawler"
	"github.com/nao1215/imgharvest/internal/database"
	"github.com/nao1215/imgharvest/internal/metadata"
	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/pipeline"
	"github.com/nao1215/imgharvest/internal/retry"
	"github.com/nao1215/imgharvest/internal/transport"
)

// retryBackoff is the base of the exponential wait between attempts.
const retryBackoff = time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl pages and download their images",
		Long: `Crawl fetches each seed page, follows links breadth-first up to --depth,
and downloads every image it finds into <output>/<folder>.

Images already recorded in the metadata file (by URL, or by content when
--content-dedup is on) are not downloaded again. Images smaller than
--min-size bytes are discarded.

With --sync, each finished folder is pushed to <remote-root>/<folder> on
the remote store; --move deletes the local copies afterwards.

Examples:
  # Crawl one gallery two links deep
  imgharvest crawl -d 2 https://example.com/gallery

  # Crawl a job list and move the results to the NAS
  imgharvest crawl --jobs jobs.csv --sync --move --remote-host nas.local

  # Crawl through Tor
  imgharvest crawl --tor https://example.com/

Job list format (';' separated, header required):
  url;folder;depth
  https://example.com/gallery;example;2
  https://photos.example.org/;;`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()
	f.StringP("jobs", "l", "", "Read seed jobs from a ';' separated file")
	f.StringP("folder", "f", "", "Output folder name for a single URL (default: derived from the URL)")
	f.IntP("depth", "d", config.DefaultMaxDepth, "Link depth to follow from each seed")
	f.IntP("workers", "w", config.DefaultMaxWorkers, "Requests in flight at once, shared by all jobs")
	f.Int("concurrency", 1, "Jobs crawled at the same time")
	f.StringP("output", "o", config.DefaultOutputFolder, "Local root for output folders")
	f.Bool("new-folder", false, "Use folder_01, folder_02, ... when the output folder exists")
	f.Int64("min-size", config.DefaultMinFileSizeBytes, "Discard images smaller than this many bytes")
	f.Int("retries", config.DefaultRetryCeiling, "Attempts per page or image")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header")
	f.Int64("max-body", config.DefaultMaxBodySize, "Maximum HTML page size in bytes")
	f.Bool("same-host", false, "Only follow links on the seed's host")
	f.StringSlice("ignore", nil, "Path patterns never followed (repeatable)")
	f.StringSlice("follow", nil, "Only follow links matching these path patterns (repeatable)")
	f.Float64("rate", 0, "Requests per second per host (0 = unlimited)")
	f.Bool("exif", true, "Record camera make, model and capture time")
	f.Bool("content-dedup", true, "Skip images whose content was already downloaded")
	f.String("hash", config.DefaultHashAlgorithm, "Content digest: md5, sha256, sha3-256 or blake2b-256")
	f.String("metadata-file", config.DefaultMetadataFile(), "Image metadata file")
	f.String("proxy", "", "SOCKS5 proxy address (host:port)")
	f.Bool("tor", false, "Route requests through an embedded Tor daemon")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")
	f.Bool("sync", false, "Sync each folder to the remote store after crawling")
	f.Bool("move", false, "Delete local files after a successful sync")
	f.Bool("delete-small", false, "Delete local files below --small-size instead of syncing them")
	f.Int64("small-size", config.DefaultSmallFileThresholdBytes, "Size limit for --delete-small")
	f.Bool("no-history", false, "Do not record the sessions in the history database")
	addRemoteFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd, cfg, logger)
}

// buildCrawlConfig applies crawl flags and resolves the job list.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	errs := []error{
		setFlag(cmd, "jobs", &cfg.JobsFile, f.GetString),
		setFlag(cmd, "depth", &cfg.MaxDepth, f.GetInt),
		setFlag(cmd, "workers", &cfg.MaxWorkers, f.GetInt),
		setFlag(cmd, "concurrency", &cfg.Concurrency, f.GetInt),
		setFlag(cmd, "output", &cfg.OutputFolder, f.GetString),
		setFlag(cmd, "new-folder", &cfg.NewFolderOnConflict, f.GetBool),
		setFlag(cmd, "min-size", &cfg.MinFileSizeBytes, f.GetInt64),
		setFlag(cmd, "retries", &cfg.RetryCeiling, f.GetInt),
		setFlag(cmd, "timeout", &cfg.Timeout, f.GetDuration),
		setFlag(cmd, "user-agent", &cfg.UserAgent, f.GetString),
		setFlag(cmd, "max-body", &cfg.MaxBodySize, f.GetInt64),
		setFlag(cmd, "same-host", &cfg.SameHostOnly, f.GetBool),
		setFlag(cmd, "rate", &cfg.RequestsPerSecond, f.GetFloat64),
		setFlag(cmd, "exif", &cfg.ExtractEXIF, f.GetBool),
		setFlag(cmd, "content-dedup", &cfg.ContentDedup, f.GetBool),
		setFlag(cmd, "hash", &cfg.HashAlgorithm, f.GetString),
		setFlag(cmd, "metadata-file", &cfg.MetadataFile, f.GetString),
		setFlag(cmd, "proxy", &cfg.ProxyAddress, f.GetString),
		setFlag(cmd, "tor", &cfg.UseTor, f.GetBool),
		setFlag(cmd, "tor-timeout", &cfg.TorStartupTimeout, f.GetDuration),
		setFlag(cmd, "sync", &cfg.Sync, f.GetBool),
		setFlag(cmd, "move", &cfg.Move, f.GetBool),
		setFlag(cmd, "delete-small", &cfg.DeleteSmallBeforeSync, f.GetBool),
		setFlag(cmd, "small-size", &cfg.SmallFileThresholdBytes, f.GetInt64),
		applyRemoteFlags(cmd, &cfg.Remote),
		applyReportFlags(cmd, cfg),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// Flag patterns add to the config file's.
	ignore, err := f.GetStringSlice("ignore")
	if err != nil {
		return nil, err
	}
	follow, err := f.GetStringSlice("follow")
	if err != nil {
		return nil, err
	}
	cfg.IgnorePatterns = append(cfg.IgnorePatterns, ignore...)
	cfg.FollowPatterns = append(cfg.FollowPatterns, follow...)

	noHistory, err := f.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	if cfg.JobsFile != "" {
		jobs, err := config.LoadJobs(cfg.JobsFile)
		if err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
		cfg.Jobs = append(cfg.Jobs, jobs...)
	}

	folder, err := f.GetString("folder")
	if err != nil {
		return nil, err
	}
	if folder != "" && len(args) != 1 {
		return nil, errors.New("--folder requires exactly one URL argument")
	}
	for _, arg := range args {
		job := cfg.JobFor(arg, folder)
		if f.Changed("depth") {
			job.MaxDepth = cfg.MaxDepth
		}
		cfg.Jobs = append(cfg.Jobs, job)
	}

	if err := cfg.ResolveJobs(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	progress := cmd.ErrOrStderr()

	client, stopProxy, err := newCrawlClient(ctx, progress, cfg, logger)
	if err != nil {
		return err
	}
	defer stopProxy()

	store, err := metadata.Open(cfg.MetadataFile)
	if err != nil {
		return err
	}
	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("history database opened", "path", db.Path())
	}

	limiter := crawler.NewHostLimiter(cfg.RequestsPerSecond, 1)
	// Shared by every job, so --concurrency never raises requests in flight.
	slots := semaphore.NewWeighted(int64(cfg.MaxWorkers))
	sessions := &sessionCrawler{
		cfg:   cfg,
		store: store,
		fetcher: crawler.NewPageFetcher(client,
			crawler.WithFetcherUserAgent(cfg.UserAgent),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
			crawler.WithFetcherRetry(cfg.RetryCeiling, retry.Exponential(retryBackoff)),
			crawler.WithFetcherLimiter(limiter),
			crawler.WithFetcherSlots(slots),
			crawler.WithFetcherLogger(logger),
		),
		downloader: crawler.NewDownloader(client, store,
			crawler.WithMinImageSize(cfg.MinFileSizeBytes),
			crawler.WithHasher(hasher),
			crawler.WithDownloadRetry(cfg.RetryCeiling, retry.Exponential(retryBackoff)),
			crawler.WithDownloaderUserAgent(cfg.UserAgent),
			crawler.WithDownloaderLimiter(limiter),
			crawler.WithDownloaderSlots(slots),
			crawler.WithEXIF(cfg.ExtractEXIF),
			crawler.WithContentDedup(cfg.ContentDedup),
			crawler.WithDownloaderLogger(logger),
		),
		logger: logger,
	}

	factory := func() *pipeline.Pipeline {
		// A failed sync still gets its session recorded.
		p := pipeline.New(pipeline.WithLogger(logger), pipeline.WithContinueOnError(true))
		p.AddStep(pipeline.NewCrawlStep(sessions, cfg.OutputFolder,
			pipeline.WithNewFolderOnConflict(cfg.NewFolderOnConflict),
			pipeline.WithCrawlLogger(logger),
		))
		if cfg.Sync {
			p.AddStep(pipeline.NewSyncStep(connector(cfg), cfg.Remote.Root,
				pipeline.WithSyncOptions(syncOptions(cfg, logger)...),
				pipeline.WithSyncLogger(logger),
			))
		}
		if db != nil {
			p.AddStep(pipeline.NewRecordStep(db))
		}
		return p
	}

	output, closeOutput, err := openReport(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // report file errors surface through writes
	writer := newReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	fmt.Fprintf(progress, "Crawling %d job(s) (workers: %d, concurrency: %d)...\n",
		len(cfg.Jobs), cfg.MaxWorkers, cfg.Concurrency)
	start := time.Now()

	var (
		mu     sync.Mutex
		failed int
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Jobs, func(r *model.SessionReport, i int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(progress, "[%d/%d] %s: %d downloaded, %d failed\n",
			i+1, len(cfg.Jobs), r.RootURL, r.ImagesDownloaded, r.ImagesFailed)
		if _, werr := writer.WriteSession(r); werr != nil {
			logger.Error("report failed", "url", r.RootURL, "error", werr)
		}
		if r.Failed() {
			failed++
		}
	})

	fmt.Fprintf(progress, "Done in %s\n", time.Since(start).Round(time.Millisecond))
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d job(s) reported errors", failed, len(cfg.Jobs))
	}
	return nil
}

// sessionCrawler runs each job with a scheduler carrying that job's site
// patterns. Fetcher, downloader and store are shared by all jobs.
type sessionCrawler struct {
	cfg        *config.Config
	fetcher    *crawler.PageFetcher
	downloader *crawler.Downloader
	store      *metadata.Store
	logger     *slog.Logger
}

// Run implements pipeline.Crawler.
func (c *sessionCrawler) Run(ctx context.Context, job model.Job, outputDir string) (*model.SessionReport, error) {
	ignore, follow := c.cfg.Patterns(job.URL)
	s := crawler.NewScheduler(c.fetcher, c.downloader, c.store,
		crawler.WithMaxWorkers(c.cfg.MaxWorkers),
		crawler.WithSameHostOnly(c.cfg.SameHostOnly),
		crawler.WithIgnorePatterns(ignore),
		crawler.WithFollowPatterns(follow),
		crawler.WithSchedulerLogger(c.logger.With("seed", job.URL)),
	)
	return s.Run(ctx, job, outputDir)
}

// newCrawlClient builds the HTTP client, starting embedded Tor or checking
// the SOCKS5 proxy first when one is configured. The returned func stops
// Tor and is always safe to call.
func newCrawlClient(ctx context.Context, progress io.Writer, cfg *config.Config, logger *slog.Logger) (*http.Client, func(), error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithMaxIdleConnsPerHost(cfg.MaxWorkers),
	}
	stop := func() {}

	proxyAddr := cfg.ProxyAddress
	if cfg.UseTor {
		fmt.Fprintln(progress, "Starting embedded Tor daemon...")
		fmt.Fprintln(progress, "This may take 1-3 minutes while Tor bootstraps.")

		tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := tor.Start(ctx); err != nil {
			return nil, stop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop = func() {
			logger.Info("stopping embedded Tor daemon")
			if err := tor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		proxyAddr = tor.SocksAddr()
		logger.Info("embedded Tor daemon started", "socks", proxyAddr)
	}

	if proxyAddr != "" {
		if status := transport.CheckProxy(ctx, proxyAddr); status != transport.ProxyStatusOK {
			stop()
			return nil, func() {}, fmt.Errorf("proxy check failed for %s: %w", proxyAddr, status.Error())
		}
		opts = append(opts, transport.WithProxy(proxyAddr))
	}

	client, err := transport.NewHTTPClient(opts...)
	if err != nil {
		stop()
		return nil, func() {}, err
	}
	return client, stop, nil
}
