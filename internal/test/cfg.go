// Package test holds shared fixtures for table-driven tests across
// packages, mirroring the teacher's internal/test/cfg.go.
package test

import (
	"io"
	"sync"

	"github.com/metrics-ops/ssh-log-exporter/internal/config"
)

// DefaultConfig returns the zero-flags, zero-file Config, computed
// once and reused across tests that only need Defaults plus a valid
// flag.FlagSet wiring (not a loaded YAML document).
var DefaultConfig = sync.OnceValue(func() config.Config {
	conf, _ := config.New([]string{"scraper-exporter", "--config", ""}, io.Discard)

	return conf
})
