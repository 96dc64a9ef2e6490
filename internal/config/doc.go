// Package config provides configuration structures and utilities for
// imgharvest: crawl and sync settings, remote store access, dedup policy,
// the optional .imgharvest YAML file and the seed job list.
package config
