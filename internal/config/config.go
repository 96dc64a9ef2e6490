package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/imgharvest/internal/crawler"
	"github.com/nao1215/imgharvest/internal/dedup"
	"github.com/nao1215/imgharvest/internal/digest"
	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "imgharvest"

	// DefaultMaxDepth follows links one level below the seed page.
	DefaultMaxDepth = 1

	// DefaultMaxWorkers bounds concurrent page fetches and downloads.
	DefaultMaxWorkers = crawler.DefaultMaxWorkers

	// DefaultOutputFolder is the local root under which each job's folder
	// is created.
	DefaultOutputFolder = "images"

	// DefaultMinFileSizeBytes skips icons, spacers and thumbnails.
	DefaultMinFileSizeBytes = crawler.DefaultMinImageSize

	// DefaultRetryCeiling is the number of attempts per image or page.
	DefaultRetryCeiling = 3

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = crawler.DefaultUserAgent

	// DefaultMaxBodySize limits the HTML read per page.
	DefaultMaxBodySize = crawler.DefaultMaxBodySize

	// DefaultHashAlgorithm matches existing image_info.json files.
	DefaultHashAlgorithm = string(digest.DefaultAlgorithm)

	// DefaultDatePolicy keeps the oldest copy of each duplicate.
	DefaultDatePolicy = string(dedup.DefaultPolicy)

	// DefaultSizePurgeThresholdBytes is the purge command's default limit.
	DefaultSizePurgeThresholdBytes int64 = 10000

	// DefaultSmallFileThresholdBytes is the local delete limit before sync.
	DefaultSmallFileThresholdBytes int64 = 10000

	// DefaultRemoteKind is the backend used when none is configured.
	DefaultRemoteKind = string(remote.KindSMB)

	// DefaultRemoteShare is the SMB share holding the photo library.
	DefaultRemoteShare = "home"

	// DefaultRemoteRoot is the photo library folder on the remote store.
	DefaultRemoteRoot = "/Photos/PhotoLibrary"

	// DefaultTorStartupTimeout bounds embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// MetadataFileName is the MetadataStore file name in the data directory.
	MetadataFileName = "image_info.json"

	// InventoryCacheFileName is the inventory snapshot name in the cache
	// directory.
	InventoryCacheFileName = "nas_images.json"
)

// RemoteConfig describes the remote store. It is shared by Config and the
// YAML file.
type RemoteConfig struct {
	// Kind is local, smb or s3.
	Kind string `yaml:"kind,omitempty"`

	// Root is the photo library folder inside the store.
	Root string `yaml:"root,omitempty"`

	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Share    string `yaml:"share,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Domain   string `yaml:"domain,omitempty"`

	// BaseDir is the directory backing the local kind.
	BaseDir string `yaml:"base_dir,omitempty"`

	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// Options converts the configuration for remote.Connect.
func (r RemoteConfig) Options(timeout time.Duration) (remote.Options, error) {
	kind, err := remote.ParseKind(r.Kind)
	if err != nil {
		return remote.Options{}, fmt.Errorf("%w: %w", ErrNoRemote, err)
	}
	return remote.Options{
		Kind:      kind,
		Host:      r.Host,
		Port:      r.Port,
		Share:     r.Share,
		Username:  r.Username,
		Password:  r.Password,
		Domain:    r.Domain,
		BaseDir:   r.BaseDir,
		Bucket:    r.Bucket,
		Region:    r.Region,
		Endpoint:  r.Endpoint,
		PathStyle: r.PathStyle,
		Timeout:   timeout,
	}, nil
}

// Validate checks that the selected backend has what it needs to connect.
func (r RemoteConfig) Validate() error {
	kind, err := remote.ParseKind(r.Kind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoRemote, err)
	}
	switch kind {
	case remote.KindSMB:
		if r.Host == "" {
			return fmt.Errorf("%w: smb requires a host", ErrNoRemote)
		}
	case remote.KindS3:
		if r.Bucket == "" {
			return fmt.Errorf("%w: s3 requires a bucket", ErrNoRemote)
		}
	case remote.KindLocal:
		if r.BaseDir == "" {
			return fmt.Errorf("%w: local requires base_dir", ErrNoRemote)
		}
	}
	return nil
}

// Config holds all configuration options for imgharvest. It is populated
// from the config file, the environment and CLI flags, in that order, and
// passed explicitly to every command.
type Config struct {
	// Jobs are the crawl sessions to run.
	Jobs []model.Job

	// JobsFile is the seed job list the Jobs were read from, if any.
	JobsFile string

	// MaxDepth is the link depth for jobs that do not set their own.
	MaxDepth int

	// MaxWorkers bounds concurrent network operations within a session.
	MaxWorkers int

	// Concurrency is the number of jobs run at once.
	Concurrency int

	// OutputFolder is the local root for job folders.
	OutputFolder string

	// NewFolderOnConflict writes into folder_01, folder_02, ... when the
	// job folder already exists.
	NewFolderOnConflict bool

	// MinFileSizeBytes is the smallest image kept.
	MinFileSizeBytes int64

	// RetryCeiling is the number of attempts per network resource.
	RetryCeiling int

	// Timeout bounds each HTTP request and remote connection attempt.
	Timeout time.Duration

	UserAgent   string
	MaxBodySize int64

	// SameHostOnly restricts link following to the seed's host.
	SameHostOnly bool

	// IgnorePatterns and FollowPatterns filter followed links by path.
	IgnorePatterns []string
	FollowPatterns []string

	// RequestsPerSecond limits requests per host; 0 disables the limit.
	RequestsPerSecond float64

	// ExtractEXIF stores camera make, model and capture time for photos.
	ExtractEXIF bool

	// ContentDedup skips images whose bytes were already downloaded from
	// another URL.
	ContentDedup bool

	// HashAlgorithm names the digest for images and inventory.
	HashAlgorithm string

	// MetadataFile is the MetadataStore snapshot.
	MetadataFile string

	// InventoryCacheFile is the remote inventory snapshot.
	InventoryCacheFile string

	// UseCache loads the inventory snapshot instead of walking the remote.
	UseCache bool

	// DBDir holds the history database. SaveToDB enables recording.
	DBDir    string
	SaveToDB bool

	// ProxyAddress routes HTTP through a SOCKS5 proxy when set.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes HTTP through it.
	UseTor            bool
	TorStartupTimeout time.Duration

	// Remote is the remote store.
	Remote RemoteConfig

	// Sync pushes each crawl's folder to the remote store.
	Sync bool

	// Move deletes local files after a successful sync.
	Move bool

	// DeleteSmallBeforeSync deletes local files smaller than
	// SmallFileThresholdBytes instead of transferring them.
	DeleteSmallBeforeSync   bool
	SmallFileThresholdBytes int64

	// DatePolicy chooses duplicate survivors.
	DatePolicy string

	// SizePurgeThresholdBytes is the purge limit; files at or below it
	// are deleted.
	SizePurgeThresholdBytes int64

	// DryRun prints plans without executing them. Yes executes them
	// without asking.
	DryRun bool
	Yes    bool

	Verbose bool

	// JSONReport and MarkdownReport select the report format; they are
	// mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the report instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit config file path.
	ConfigFilePath string

	// File is the loaded configuration file, if any.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:                DefaultMaxDepth,
		MaxWorkers:              DefaultMaxWorkers,
		Concurrency:             1,
		OutputFolder:            DefaultOutputFolder,
		MinFileSizeBytes:        DefaultMinFileSizeBytes,
		RetryCeiling:            DefaultRetryCeiling,
		Timeout:                 DefaultTimeout,
		UserAgent:               DefaultUserAgent,
		MaxBodySize:             DefaultMaxBodySize,
		ContentDedup:            true,
		ExtractEXIF:             true,
		HashAlgorithm:           DefaultHashAlgorithm,
		MetadataFile:            DefaultMetadataFile(),
		InventoryCacheFile:      DefaultInventoryCacheFile(),
		DBDir:                   XDGDataDir(),
		SaveToDB:                true,
		TorStartupTimeout:       DefaultTorStartupTimeout,
		DatePolicy:              DefaultDatePolicy,
		SizePurgeThresholdBytes: DefaultSizePurgeThresholdBytes,
		SmallFileThresholdBytes: DefaultSmallFileThresholdBytes,
		Remote: RemoteConfig{
			Kind:  DefaultRemoteKind,
			Share: DefaultRemoteShare,
			Root:  DefaultRemoteRoot,
		},
	}
}

// XDGDataDir returns the XDG data directory for imgharvest.
// On Linux: ~/.local/share/imgharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for imgharvest.
// On Linux: ~/.config/imgharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for imgharvest.
// On Linux: ~/.cache/imgharvest
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DefaultMetadataFile is image_info.json in the data directory.
func DefaultMetadataFile() string {
	return filepath.Join(XDGDataDir(), MetadataFileName)
}

// DefaultInventoryCacheFile is nas_images.json in the cache directory.
func DefaultInventoryCacheFile() string {
	return filepath.Join(XDGCacheDir(), InventoryCacheFileName)
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if _, err := digest.ParseAlgorithm(c.HashAlgorithm); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHashAlgorithm, c.HashAlgorithm)
	}
	return nil
}

// ValidateCrawl checks everything a crawl needs, including the remote
// store when Sync is set. It runs before any work begins.
func (c *Config) ValidateCrawl() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Jobs) == 0 {
		return ErrNoJobs
	}
	for i, job := range c.Jobs {
		if err := validateJob(job); err != nil {
			return fmt.Errorf("job %d: %w", i+1, err)
		}
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, c.MaxDepth)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.MaxWorkers)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency %d", ErrInvalidWorkers, c.Concurrency)
	}
	if c.RetryCeiling < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRetryCeiling, c.RetryCeiling)
	}
	if c.MinFileSizeBytes < 0 || c.SmallFileThresholdBytes < 0 {
		return ErrInvalidMinFileSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.Sync {
		return c.Remote.Validate()
	}
	return nil
}

func validateJob(job model.Job) error {
	if err := crawler.ValidateRootURL(job.URL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRootURL, job.URL)
	}
	if job.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, job.MaxDepth)
	}
	if err := crawler.ValidateFolderName(job.Folder); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFolderName, err)
	}
	return nil
}

// ValidateSync checks a standalone sync.
func (c *Config) ValidateSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SmallFileThresholdBytes < 0 {
		return ErrInvalidMinFileSize
	}
	return c.Remote.Validate()
}

// ValidateDedup checks a duplicate resolution run. A non-negative purge
// threshold may be combined with it.
func (c *Config) ValidateDedup() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := dedup.ParsePolicy(c.DatePolicy); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDatePolicy, c.DatePolicy)
	}
	if c.SizePurgeThresholdBytes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPurgeThreshold, c.SizePurgeThresholdBytes)
	}
	return c.validateRemoteRead()
}

// ValidatePurge checks a size purge run.
func (c *Config) ValidatePurge() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SizePurgeThresholdBytes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPurgeThreshold, c.SizePurgeThresholdBytes)
	}
	return c.validateRemoteRead()
}

// validateRemoteRead accepts a cached inventory in place of a reachable
// remote for dry runs.
func (c *Config) validateRemoteRead() error {
	err := c.Remote.Validate()
	if err != nil && c.UseCache && c.DryRun && errors.Is(err, ErrNoRemote) {
		return nil
	}
	return err
}

// JobFor builds an unresolved job for a single URL. ResolveJobs fills in
// the depth and folder.
func (c *Config) JobFor(rawURL, folder string) model.Job {
	return model.Job{URL: rawURL, Folder: folder, MaxDepth: UnsetDepth}
}

// ResolveJobs completes every job. An unset depth takes the site depth
// from the config file, then MaxDepth. An empty folder takes the site
// folder, then a name derived from the URL.
func (c *Config) ResolveJobs() error {
	for i := range c.Jobs {
		job := &c.Jobs[i]
		site := c.File.Site(job.URL)
		if job.MaxDepth == UnsetDepth {
			job.MaxDepth = c.MaxDepth
			if site.Depth > 0 {
				job.MaxDepth = site.Depth
			}
		}
		if job.Folder == "" {
			job.Folder = site.Folder
		}
		if job.Folder == "" {
			name, err := crawler.FolderNameFromURL(job.URL)
			if err != nil {
				return fmt.Errorf("job %d: %w: %w", i+1, ErrInvalidRootURL, err)
			}
			job.Folder = name
		}
	}
	return nil
}

// Patterns returns the ignore and follow patterns for a seed, combining
// the global lists with the seed host's site settings.
func (c *Config) Patterns(rawURL string) (ignore, follow []string) {
	site := c.File.Site(rawURL)
	ignore = append(append(ignore, c.IgnorePatterns...), site.IgnorePatterns...)
	follow = append(append(follow, c.FollowPatterns...), site.FollowPatterns...)
	return ignore, follow
}
