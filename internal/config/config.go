package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// ErrVersion is returned by New when -version was passed; callers print
// the version string and exit 0, the same control-flow shape the
// teacher's cmd entrypoint uses for -help/-version.
var ErrVersion = errors.New("version requested")

// ErrConfig wraps every ConfigError raised while loading or validating
// the YAML document (spec.md §7).
var ErrConfig = errors.New("config error")

// New parses args against the flag set, loads the YAML file named by
// -config (or $SCRAPECONFIG, or the built-in default), and returns the
// merged Config. It does not call Validate; callers run that
// separately so -verify-config can report validation errors without
// starting the service.
func New(args []string, stdout io.Writer) (Config, error) {
	conf := Defaults
	if path, ok := os.LookupEnv("SCRAPECONFIG"); ok && path != "" {
		conf.ConfigFile = path
	}

	flagSet := flag.NewFlagSet("", flag.ContinueOnError)
	flagSet.SetOutput(stdout)

	conf.flagSet(flagSet)

	var parseArgs []string
	if len(args) > 1 {
		parseArgs = args[1:]
	}

	if err := flagSet.Parse(parseArgs); err != nil {
		return Config{}, err //nolint:wrapcheck
	}

	if v, err := strconvLookup(flagSet, "version"); err == nil && v {
		return Config{}, ErrVersion
	}

	if conf.ConfigFile != "" {
		if err := loadFile(conf.ConfigFile, &conf); err != nil {
			return Config{}, err
		}
	}

	return conf, nil
}

// strconvLookup reads a bool flag's resolved value out of a FlagSet
// after Parse, without needing a pointer threaded through flagSet().
func strconvLookup(flagSet *flag.FlagSet, name string) (bool, error) {
	f := flagSet.Lookup(name)
	if f == nil {
		return false, fmt.Errorf("%w: no such flag %q", ErrConfig, name)
	}

	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return false, fmt.Errorf("%w: flag %q is not a Getter", ErrConfig, name)
	}

	v, ok := getter.Get().(bool)
	if !ok {
		return false, fmt.Errorf("%w: flag %q is not a bool", ErrConfig, name)
	}

	return v, nil
}

// loadFile reads path and decodes it over conf in place. A missing
// file is ignored and conf is left unchanged; an empty file is
// ErrEmptyConfigFile.
func loadFile(path string, conf *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
	}

	if len(data) == 0 {
		return ErrEmptyConfigFile
	}

	if err := yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("%w: parsing %s: %w", ErrConfig, path, err)
	}

	return nil
}
