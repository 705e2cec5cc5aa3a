package config

import "time"

// Defaults holds the built-in configuration values consulted when no
// flag, environment variable, or file value overrides them.
var Defaults = Options{
	IndexPathSuffix: ".memory-index.db",
	Mode:            "prod",
	LogLevel:        "info",
	Policy: PolicyOptions{
		TimeoutMs:  5000,
		MaxRetries: 2,
	},
	PARA: PARAOptions{
		ArchiveThresholdDays: 180,
		AutoMove:             true,
		CategoryDirNames: map[string]string{
			"Projects":  "Projects",
			"Areas":     "Areas",
			"Resources": "Resources",
			"Archives":  "Archives",
		},
	},
	Watcher: WatcherOptions{
		DebounceDelayMs: 500,
	},
	Backlink: BacklinkOptions{
		BatchSize:       10,
		Concurrency:     5,
		DebounceDelayMs: 1000,
	},
	SessionCap: 50,
}

func (p PolicyOptions) timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}
