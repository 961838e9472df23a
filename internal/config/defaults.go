package config

import "log/slog"

// Defaults is the zero-config Config value: the registry-level
// settings spec.md §6 requires even when the YAML file supplies none
// of them.
//
//nolint:gochecknoglobals
var Defaults = Config{
	ConfigFile: defaultConfigPath,
	Global: Global{
		TTL:    30,
		Prefix: "scraper",
	},
	SSH: SSH{
		ConnectTimeout: 30,
	},
	Log: Log{
		Format: "console",
		Level:  slog.LevelInfo,
	},
	Web: Web{
		ListenAddress: ":9310",
	},
}

const defaultConfigPath = "/etc/scrapeconfig.yml"
