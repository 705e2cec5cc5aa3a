// Package config loads the daemon and CLI's Options from, in increasing
// precedence: built-in defaults, a YAML config file, MEMORY_* environment
// variables, and CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/RamXX/memory-mcp/internal/errs"
)

// PolicyOptions is the tool execution policy's configurable knobs.
type PolicyOptions struct {
	TimeoutMs  int `yaml:"timeout_ms"`
	MaxRetries int `yaml:"max_retries"`
}

// PARAOptions configures the PARA organizer.
type PARAOptions struct {
	ArchiveThresholdDays int               `yaml:"archive_threshold_days"`
	AutoMove             bool              `yaml:"auto_move"`
	CategoryDirNames     map[string]string `yaml:"category_dir_names"`
}

// WatcherOptions configures the vault watcher.
type WatcherOptions struct {
	DebounceDelayMs int `yaml:"debounce_delay_ms"`
}

// BacklinkOptions configures the backlink synchronizer.
type BacklinkOptions struct {
	BatchSize       int `yaml:"batch_size"`
	Concurrency     int `yaml:"concurrency"`
	DebounceDelayMs int `yaml:"debounce_delay_ms"`
}

// Options is the fully merged configuration for memoryd and memoryctl.
type Options struct {
	VaultPath       string `yaml:"vault_path"`
	IndexPath       string `yaml:"index_path"`
	IndexPathSuffix string `yaml:"-"`
	Mode            string `yaml:"mode"`
	LogLevel        string `yaml:"log_level"`
	SessionCap      int    `yaml:"session_cap"`

	Policy   PolicyOptions   `yaml:"policy"`
	PARA     PARAOptions     `yaml:"para"`
	Watcher  WatcherOptions  `yaml:"watcher"`
	Backlink BacklinkOptions `yaml:"backlink"`
}

// ResolvedIndexPath returns IndexPath if set, else VaultPath joined with
// the default index filename.
func (o Options) ResolvedIndexPath() string {
	if o.IndexPath != "" {
		return o.IndexPath
	}
	return filepath.Join(o.VaultPath, o.IndexPathSuffix)
}

// Load merges Defaults, an optional YAML file, MEMORY_* environment
// variables, and flags already parsed into fs (a cobra/pflag FlagSet),
// returning the fully resolved Options. configPath, when non-empty,
// must exist; when it is empty no file is read.
func Load(fs *pflag.FlagSet, configPath string) (Options, error) {
	const op = "config.Load"

	opts := Defaults

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Options{}, errs.Wrap(errs.ParseError, op, err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return Options{}, errs.Wrap(errs.ParseError, op, err)
		}
	}

	applyEnv(&opts)

	if fs != nil {
		applyFlags(&opts, fs)
	}

	if opts.VaultPath == "" {
		return Options{}, errs.New(errs.InvalidRequest, op, "vault_path is required")
	}
	if opts.Mode != "dev" && opts.Mode != "prod" {
		return Options{}, errs.New(errs.InvalidRequest, op, fmt.Sprintf("unknown mode: %s", opts.Mode))
	}
	return opts, nil
}

func applyEnv(o *Options) {
	if v := os.Getenv("MEMORY_VAULT_PATH"); v != "" {
		o.VaultPath = v
	}
	if v := os.Getenv("MEMORY_INDEX_PATH"); v != "" {
		o.IndexPath = v
	}
	if v := os.Getenv("MEMORY_MODE"); v != "" {
		o.Mode = v
	}
	if v := os.Getenv("MEMORY_LOG_LEVEL"); v != "" {
		o.LogLevel = v
	}
	if v := os.Getenv("MEMORY_POLICY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.Policy.TimeoutMs = n
		}
	}
	if v := os.Getenv("MEMORY_POLICY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.Policy.MaxRetries = n
		}
	}
}

// RegisterFlags adds every Options flag to fs, defaulting each to
// whatever Options already holds (so a caller can seed fs from Defaults
// before parsing argv).
func RegisterFlags(fs *pflag.FlagSet, o Options) {
	fs.String("vault-path", o.VaultPath, "path to the vault root (required)")
	fs.String("index-path", o.IndexPath, "path to the SQLite index database")
	fs.String("mode", o.Mode, "dev or prod")
	fs.String("log-level", o.LogLevel, "debug, info, warn, or error")
	fs.Int("policy-timeout-ms", o.Policy.TimeoutMs, "default tool call timeout in milliseconds")
	fs.Int("policy-max-retries", o.Policy.MaxRetries, "default tool call retry count")
}

func applyFlags(o *Options, fs *pflag.FlagSet) {
	if fs.Changed("vault-path") {
		o.VaultPath, _ = fs.GetString("vault-path")
	}
	if fs.Changed("index-path") {
		o.IndexPath, _ = fs.GetString("index-path")
	}
	if fs.Changed("mode") {
		o.Mode, _ = fs.GetString("mode")
	}
	if fs.Changed("log-level") {
		o.LogLevel, _ = fs.GetString("log-level")
	}
	if fs.Changed("policy-timeout-ms") {
		o.Policy.TimeoutMs, _ = fs.GetInt("policy-timeout-ms")
	}
	if fs.Changed("policy-max-retries") {
		o.Policy.MaxRetries, _ = fs.GetInt("policy-max-retries")
	}
}
