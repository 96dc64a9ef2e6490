package config

import "os"

// Environment variables read by ApplyEnv. Remote credentials have no flags.
const (
	EnvRemoteUser     = "IMGHARVEST_REMOTE_USER"
	EnvRemotePassword = "IMGHARVEST_REMOTE_PASSWORD"
	EnvRemoteHost     = "IMGHARVEST_REMOTE_HOST"
	EnvProxy          = "IMGHARVEST_PROXY"
)

// ApplyEnv overrides cfg with any set environment variables.
func ApplyEnv(cfg *Config) {
	applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvRemoteUser); ok && v != "" {
		cfg.Remote.Username = v
	}
	if v, ok := lookup(EnvRemotePassword); ok && v != "" {
		cfg.Remote.Password = v
	}
	if v, ok := lookup(EnvRemoteHost); ok && v != "" {
		cfg.Remote.Host = v
	}
	if v, ok := lookup(EnvProxy); ok && v != "" {
		cfg.ProxyAddress = v
	}
}
