package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/imgharvest/internal/model"
	"github.com/nao1215/imgharvest/internal/remote"
)

// TestNewConfig documents the defaults; a failure here means a default
// changed.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default MaxDepth is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != 1 {
			t.Errorf("expected MaxDepth 1, got %d", cfg.MaxDepth)
		}
	})

	t.Run("default MinFileSizeBytes is 10000", func(t *testing.T) {
		t.Parallel()
		if cfg.MinFileSizeBytes != 10000 {
			t.Errorf("expected MinFileSizeBytes 10000, got %d", cfg.MinFileSizeBytes)
		}
	})

	t.Run("default RetryCeiling is 3", func(t *testing.T) {
		t.Parallel()
		if cfg.RetryCeiling != 3 {
			t.Errorf("expected RetryCeiling 3, got %d", cfg.RetryCeiling)
		}
	})

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default DatePolicy is delete-newer", func(t *testing.T) {
		t.Parallel()
		if cfg.DatePolicy != "delete-newer" {
			t.Errorf("expected delete-newer, got %q", cfg.DatePolicy)
		}
	})

	t.Run("default remote is the home share photo library", func(t *testing.T) {
		t.Parallel()
		if cfg.Remote.Kind != "smb" || cfg.Remote.Share != "home" || cfg.Remote.Root != "/Photos/PhotoLibrary" {
			t.Errorf("unexpected remote defaults: %+v", cfg.Remote)
		}
	})

	t.Run("default hash is md5", func(t *testing.T) {
		t.Parallel()
		if cfg.HashAlgorithm != "md5" {
			t.Errorf("expected md5, got %q", cfg.HashAlgorithm)
		}
	})

	t.Run("metadata and inventory files use fixed names", func(t *testing.T) {
		t.Parallel()
		if filepath.Base(cfg.MetadataFile) != "image_info.json" {
			t.Errorf("unexpected metadata file %q", cfg.MetadataFile)
		}
		if filepath.Base(cfg.InventoryCacheFile) != "nas_images.json" {
			t.Errorf("unexpected inventory file %q", cfg.InventoryCacheFile)
		}
	})
}

func TestValidateCrawl(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Jobs = []model.Job{{URL: "https://example.com/gallery", Folder: "gallery", MaxDepth: 1}}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := valid().ValidateCrawl(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no jobs", func(c *Config) { c.Jobs = nil }, ErrNoJobs},
		{"relative url", func(c *Config) { c.Jobs[0].URL = "/gallery" }, ErrInvalidRootURL},
		{"ftp url", func(c *Config) { c.Jobs[0].URL = "ftp://example.com" }, ErrInvalidRootURL},
		{"negative job depth", func(c *Config) { c.Jobs[0].MaxDepth = -2 }, ErrInvalidDepth},
		{"folder with separator", func(c *Config) { c.Jobs[0].Folder = "a/b" }, ErrInvalidFolderName},
		{"empty folder", func(c *Config) { c.Jobs[0].Folder = "" }, ErrInvalidFolderName},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }, ErrInvalidWorkers},
		{"zero retry ceiling", func(c *Config) { c.RetryCeiling = 0 }, ErrInvalidRetryCeiling},
		{"negative min size", func(c *Config) { c.MinFileSizeBytes = -1 }, ErrInvalidMinFileSize},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"unknown hash", func(c *Config) { c.HashAlgorithm = "crc32" }, ErrInvalidHashAlgorithm},
		{"both report formats", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"sync without host", func(c *Config) { c.Sync = true }, ErrNoRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.ValidateCrawl(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("sync with smb host is valid", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Sync = true
		cfg.Remote.Host = "nas.local"
		if err := cfg.ValidateCrawl(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

func TestValidateDedupAndPurge(t *testing.T) {
	t.Parallel()

	valid := func(t *testing.T) *Config {
		t.Helper()
		cfg := NewConfig()
		cfg.Remote = RemoteConfig{Kind: "local", BaseDir: t.TempDir(), Root: "/"}
		return cfg
	}

	t.Run("unknown policy", func(t *testing.T) {
		t.Parallel()
		cfg := valid(t)
		cfg.DatePolicy = "delete-random"
		if err := cfg.ValidateDedup(); !errors.Is(err, ErrInvalidDatePolicy) {
			t.Errorf("expected ErrInvalidDatePolicy, got %v", err)
		}
	})

	t.Run("policy aliases are accepted", func(t *testing.T) {
		t.Parallel()
		for _, p := range []string{"delete-older", "newer", "keep-newest", ""} {
			cfg := valid(t)
			cfg.DatePolicy = p
			if err := cfg.ValidateDedup(); err != nil {
				t.Errorf("policy %q: expected nil, got %v", p, err)
			}
		}
	})

	t.Run("purge requires a positive threshold", func(t *testing.T) {
		t.Parallel()
		cfg := valid(t)
		cfg.SizePurgeThresholdBytes = 0
		if err := cfg.ValidatePurge(); !errors.Is(err, ErrInvalidPurgeThreshold) {
			t.Errorf("expected ErrInvalidPurgeThreshold, got %v", err)
		}
	})

	t.Run("cached dry run needs no remote", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.UseCache, cfg.DryRun = true, true
		if err := cfg.ValidatePurge(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("live run needs a remote", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		if err := cfg.ValidateDedup(); !errors.Is(err, ErrNoRemote) {
			t.Errorf("expected ErrNoRemote, got %v", err)
		}
	})
}

func TestRemoteConfigOptions(t *testing.T) {
	t.Parallel()

	rc := RemoteConfig{Kind: "S3", Bucket: "photos", Region: "eu-west-1", PathStyle: true}
	opts, err := rc.Options(5 * time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Kind != remote.KindS3 || opts.Bucket != "photos" || !opts.PathStyle || opts.Timeout != 5*time.Second {
		t.Errorf("unexpected options: %+v", opts)
	}

	if _, err := (RemoteConfig{Kind: "ftp"}).Options(time.Second); !errors.Is(err, ErrNoRemote) {
		t.Errorf("expected ErrNoRemote, got %v", err)
	}
}

func TestResolveJobs(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.MaxDepth = 2
	cfg.File = &File{Sites: map[string]SiteConfig{
		"deep.example.com": {Depth: 5, Folder: "deep"},
	}}
	cfg.Jobs = []model.Job{
		cfg.JobFor("https://example.com/photos/summer", ""),
		cfg.JobFor("https://deep.example.com/", ""),
		{URL: "https://deep.example.com/a", Folder: "mine", MaxDepth: 0},
	}

	if err := cfg.ResolveJobs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.Jobs[0]; got.MaxDepth != 2 || !strings.HasPrefix(got.Folder, "example.com-summer-") {
		t.Errorf("unexpected first job: %+v", got)
	}
	if got := cfg.Jobs[1]; got.MaxDepth != 5 || got.Folder != "deep" {
		t.Errorf("unexpected site job: %+v", got)
	}
	if got := cfg.Jobs[2]; got.MaxDepth != 0 || got.Folder != "mine" {
		t.Errorf("explicit values should be kept: %+v", got)
	}
}

func TestResolveJobsInvalidURL(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Jobs = []model.Job{cfg.JobFor("not a url", "")}
	if err := cfg.ResolveJobs(); !errors.Is(err, ErrInvalidRootURL) {
		t.Errorf("expected ErrInvalidRootURL, got %v", err)
	}
}

func TestPatterns(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.IgnorePatterns = []string{"/login*"}
	cfg.File = &File{Sites: map[string]SiteConfig{
		"example.com": {IgnorePatterns: []string{"/tag/*"}, FollowPatterns: []string{"/gallery/*"}},
	}}

	ignore, follow := cfg.Patterns("https://www.example.com/")
	if len(ignore) != 2 || ignore[1] != "/tag/*" {
		t.Errorf("unexpected ignore patterns: %v", ignore)
	}
	if len(follow) != 1 || follow[0] != "/gallery/*" {
		t.Errorf("unexpected follow patterns: %v", follow)
	}

	ignore, follow = cfg.Patterns("https://other.example.org/")
	if len(ignore) != 1 || len(follow) != 0 {
		t.Errorf("unexpected patterns for unknown host: %v %v", ignore, follow)
	}
	if len(cfg.IgnorePatterns) != 1 {
		t.Errorf("global patterns should not be modified: %v", cfg.IgnorePatterns)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvRemoteUser:     "photos",
		EnvRemotePassword: "hunter2",
		EnvProxy:          "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewConfig()
	cfg.ProxyAddress = "127.0.0.1:1080"
	applyEnv(cfg, lookup)

	if cfg.Remote.Username != "photos" || cfg.Remote.Password != "hunter2" {
		t.Errorf("credentials not applied: %+v", cfg.Remote)
	}
	if cfg.ProxyAddress != "127.0.0.1:1080" {
		t.Errorf("empty env value should not override, got %q", cfg.ProxyAddress)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("max_depth: [\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("file values are applied", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `max_depth: 0
min_file_size: 500
date_policy: delete-older
remote:
  kind: s3
  bucket: photos
sites:
  Example.COM:
    depth: 3
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		f.Apply(cfg)

		if cfg.MaxDepth != 0 {
			t.Errorf("explicit zero depth should apply, got %d", cfg.MaxDepth)
		}
		if cfg.MinFileSizeBytes != 500 {
			t.Errorf("expected 500, got %d", cfg.MinFileSizeBytes)
		}
		if cfg.DatePolicy != "delete-older" {
			t.Errorf("expected delete-older, got %q", cfg.DatePolicy)
		}
		if cfg.Remote.Kind != "s3" || cfg.Remote.Bucket != "photos" || cfg.Remote.Share != "home" {
			t.Errorf("unexpected remote merge: %+v", cfg.Remote)
		}
		if got := cfg.File.Site("https://example.com/x").Depth; got != 3 {
			t.Errorf("expected site depth 3, got %d", got)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(path); got != path {
		t.Errorf("expected %q, got %q", path, got)
	}
	if got := FindConfigFile(filepath.Join(dir, "missing.yaml")); got != "" {
		t.Errorf("expected empty for missing explicit path, got %q", got)
	}
}
