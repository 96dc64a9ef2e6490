package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgharvest/internal/config"
	"github.com/nao1215/imgharvest/internal/digest"
	"github.com/nao1215/imgharvest/internal/log"
	"github.com/nao1215/imgharvest/internal/pipeline"
	"github.com/nao1215/imgharvest/internal/remote"
	"github.com/nao1215/imgharvest/internal/remotesync"
	"github.com/nao1215/imgharvest/internal/report"
)

// setFlag copies a flag into dst only when the user set it, so values
// from the config file survive unset flags.
func setFlag[T any](cmd *cobra.Command, name string, dst *T, get func(string) (T, error)) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// globalBool reads a persistent root flag. It falls back to the root's
// flag set when cmd runs without its parent, as in tests.
func globalBool(cmd *cobra.Command, name string) bool {
	if v, err := cmd.Flags().GetBool(name); err == nil {
		return v
	}
	v, err := cmd.Root().PersistentFlags().GetBool(name)
	return err == nil && v
}

func globalString(cmd *cobra.Command, name string) string {
	if v, err := cmd.Flags().GetString(name); err == nil {
		return v
	}
	v, _ := cmd.Root().PersistentFlags().GetString(name) //nolint:errcheck // missing flag reads as ""
	return v
}

// loadConfig builds the configuration shared by every command: defaults,
// then the config file, then the environment. Command flags are applied
// by the caller.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.ConfigFilePath = globalString(cmd, "config")

	// An explicitly named config file must exist; the default locations
	// are optional.
	path := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case path != "":
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		f.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	config.ApplyEnv(cfg)
	if dir := globalString(cmd, "db-dir"); dir != "" {
		cfg.DBDir = dir
	}
	cfg.Verbose = globalBool(cmd, "verbose")
	return cfg, nil
}

// newLogger creates the command's logger and makes it the slog default.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := log.New(cmd.ErrOrStderr(),
		log.WithVerbose(cfg.Verbose),
		log.WithJSON(globalBool(cmd, "log-json")),
	)
	slog.SetDefault(logger)
	return logger
}

func newHasher(cfg *config.Config) (*digest.Hasher, error) {
	algo, err := digest.ParseAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	return digest.New(algo)
}

func addRemoteFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("remote", config.DefaultRemoteKind, "Remote store kind: smb, s3 or local")
	f.String("remote-root", config.DefaultRemoteRoot, "Library folder inside the remote store")
	f.String("remote-host", "", "SMB server host (or IMGHARVEST_REMOTE_HOST)")
	f.Int("remote-port", 0, "SMB server port (default 445)")
	f.String("remote-share", config.DefaultRemoteShare, "SMB share name")
	f.String("remote-user", "", "SMB user name (or IMGHARVEST_REMOTE_USER)")
	f.String("remote-domain", "", "SMB domain")
	f.String("remote-dir", "", "Base directory for the local remote kind")
	f.String("bucket", "", "S3 bucket")
	f.String("region", "", "S3 region")
	f.String("endpoint", "", "S3-compatible endpoint URL")
	f.Bool("path-style", false, "Use path-style S3 addressing")
}

func applyRemoteFlags(cmd *cobra.Command, rc *config.RemoteConfig) error {
	f := cmd.Flags()
	for _, s := range []struct {
		name string
		dst  *string
	}{
		{"remote", &rc.Kind},
		{"remote-root", &rc.Root},
		{"remote-host", &rc.Host},
		{"remote-share", &rc.Share},
		{"remote-user", &rc.Username},
		{"remote-domain", &rc.Domain},
		{"remote-dir", &rc.BaseDir},
		{"bucket", &rc.Bucket},
		{"region", &rc.Region},
		{"endpoint", &rc.Endpoint},
	} {
		if err := setFlag(cmd, s.name, s.dst, f.GetString); err != nil {
			return err
		}
	}
	if err := setFlag(cmd, "remote-port", &rc.Port, f.GetInt); err != nil {
		return err
	}
	return setFlag(cmd, "path-style", &rc.PathStyle, f.GetBool)
}

// connector opens the configured remote store.
func connector(cfg *config.Config) pipeline.Connector {
	return func(ctx context.Context) (remote.Store, error) {
		opts, err := cfg.Remote.Options(cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return remote.Connect(ctx, opts)
	}
}

// lazyStore connects on first use so that plans built from a cached
// inventory need no connection.
type lazyStore struct {
	connect pipeline.Connector
	store   remote.Store
}

func (l *lazyStore) get(ctx context.Context) (remote.Store, error) {
	if l.store != nil {
		return l.store, nil
	}
	store, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}
	l.store = store
	return store, nil
}

func (l *lazyStore) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func syncOptions(cfg *config.Config, logger *slog.Logger) []remotesync.Option {
	opts := []remotesync.Option{
		remotesync.WithMove(cfg.Move),
		remotesync.WithLogger(logger),
	}
	if cfg.DeleteSmallBeforeSync {
		opts = append(opts, remotesync.WithDeleteSmall(cfg.SmallFileThresholdBytes))
	}
	return opts
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write report to specified file path (creates directories if needed)")
}

func applyReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if err := setFlag(cmd, "json", &cfg.JSONReport, f.GetBool); err != nil {
		return err
	}
	if err := setFlag(cmd, "markdown", &cfg.MarkdownReport, f.GetBool); err != nil {
		return err
	}
	return setFlag(cmd, "report", &cfg.ReportFile, f.GetString)
}

// openReport returns the report destination: cfg.ReportFile when set,
// otherwise the command's stdout.
func openReport(cmd *cobra.Command, cfg *config.Config) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Reports list remote paths; keep them owner-readable only.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}
