package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".imgharvest"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file. Every field is optional; unset
// fields leave the defaults and flags untouched.
//
// Example:
//
//	max_depth: 2
//	output_folder: ~/Pictures/harvest
//	remote:
//	  kind: smb
//	  host: nas.local
//	  username: photos
//	sites:
//	  example.com:
//	    depth: 3
//	    ignore_patterns:
//	      - /tag/*
type File struct {
	MaxDepth         *int     `yaml:"max_depth,omitempty"`
	MaxWorkers       int      `yaml:"max_workers,omitempty"`
	OutputFolder     string   `yaml:"output_folder,omitempty"`
	MinFileSizeBytes *int64   `yaml:"min_file_size,omitempty"`
	RetryCeiling     int      `yaml:"retry_ceiling,omitempty"`
	UserAgent        string   `yaml:"user_agent,omitempty"`
	HashAlgorithm    string   `yaml:"hash_algorithm,omitempty"`
	DatePolicy       string   `yaml:"date_policy,omitempty"`
	PurgeThreshold   int64    `yaml:"purge_threshold,omitempty"`
	SmallThreshold   int64    `yaml:"small_file_threshold,omitempty"`
	RequestsPerSec   float64  `yaml:"requests_per_second,omitempty"`
	ProxyAddress     string   `yaml:"proxy,omitempty"`
	IgnorePatterns   []string `yaml:"ignore_patterns,omitempty"`
	FollowPatterns   []string `yaml:"follow_patterns,omitempty"`

	// Remote overrides individual remote fields that are set.
	Remote RemoteConfig `yaml:"remote,omitempty"`

	// Sites maps a host name to site-specific crawl settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// SiteConfig contains site-specific crawl settings.
type SiteConfig struct {
	// Depth overrides the job's link depth when positive.
	Depth int `yaml:"depth,omitempty"`

	// Folder is the output folder for seeds on this host when the job
	// does not name one.
	Folder string `yaml:"folder,omitempty"`

	// IgnorePatterns are path patterns never followed on this host.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns restrict followed links on this host.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	// Hosts are matched case-insensitively.
	normalized := make(map[string]SiteConfig, len(cf.Sites))
	for host, site := range cf.Sites {
		normalized[strings.ToLower(host)] = site
	}
	cf.Sites = normalized

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .imgharvest in the current directory
// 3. Look for config.yaml in the XDG config directory
// 4. Look for .imgharvest in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Site returns the settings for the host of rawURL.
// Returns an empty SiteConfig if the host has none.
func (f *File) Site(rawURL string) SiteConfig {
	if f == nil || len(f.Sites) == 0 {
		return SiteConfig{}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return SiteConfig{}
	}
	host := strings.ToLower(u.Hostname())
	if site, ok := f.Sites[host]; ok {
		return site
	}
	if site, ok := f.Sites[strings.TrimPrefix(host, "www.")]; ok {
		return site
	}
	return SiteConfig{}
}

// Apply copies the file's settings into cfg. It runs before flags are
// applied so that explicit flags win.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.MaxDepth != nil {
		cfg.MaxDepth = *f.MaxDepth
	}
	if f.MaxWorkers > 0 {
		cfg.MaxWorkers = f.MaxWorkers
	}
	if f.OutputFolder != "" {
		cfg.OutputFolder = expandHome(f.OutputFolder)
	}
	if f.MinFileSizeBytes != nil {
		cfg.MinFileSizeBytes = *f.MinFileSizeBytes
	}
	if f.RetryCeiling > 0 {
		cfg.RetryCeiling = f.RetryCeiling
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.HashAlgorithm != "" {
		cfg.HashAlgorithm = f.HashAlgorithm
	}
	if f.DatePolicy != "" {
		cfg.DatePolicy = f.DatePolicy
	}
	if f.PurgeThreshold > 0 {
		cfg.SizePurgeThresholdBytes = f.PurgeThreshold
	}
	if f.SmallThreshold > 0 {
		cfg.SmallFileThresholdBytes = f.SmallThreshold
	}
	if f.RequestsPerSec > 0 {
		cfg.RequestsPerSecond = f.RequestsPerSec
	}
	if f.ProxyAddress != "" {
		cfg.ProxyAddress = f.ProxyAddress
	}
	cfg.IgnorePatterns = append(cfg.IgnorePatterns, f.IgnorePatterns...)
	cfg.FollowPatterns = append(cfg.FollowPatterns, f.FollowPatterns...)
	cfg.Remote = mergeRemote(cfg.Remote, f.Remote)
	cfg.File = f
}

func mergeRemote(base, over RemoteConfig) RemoteConfig {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Kind, over.Kind)
	set(&base.Root, over.Root)
	set(&base.Host, over.Host)
	set(&base.Share, over.Share)
	set(&base.Username, over.Username)
	set(&base.Password, over.Password)
	set(&base.Domain, over.Domain)
	set(&base.BaseDir, expandHome(over.BaseDir))
	set(&base.Bucket, over.Bucket)
	set(&base.Region, over.Region)
	set(&base.Endpoint, over.Endpoint)
	if over.Port > 0 {
		base.Port = over.Port
	}
	if over.PathStyle {
		base.PathStyle = true
	}
	return base
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
