package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

//goland:noinspection GoMixedReceiverTypes
func (c *Config) flagSet(flagSet *flag.FlagSet) {
	flagSet.StringVar(
		&c.ConfigFile,
		"config",
		c.ConfigFile,
		"path to the scraper YAML config file (defaults to $SCRAPECONFIG, or /etc/scrapeconfig.yml)",
	)

	flagSet.Bool(
		"version",
		false,
		"show version",
	)

	flagSet.BoolVar(
		&c.VerifyConfig,
		"verify-config",
		c.VerifyConfig,
		"load and validate the config file, then exit",
	)

	flagSet.StringVar(
		&c.Log.Format,
		"log.format",
		lookupEnvOrDefault("log_format", c.Log.Format),
		"log output format, one of: console, json",
	)

	c.flagSetWeb(flagSet)
	c.flagSetDebug(flagSet)
}

//goland:noinspection GoMixedReceiverTypes
func (c *Config) flagSetWeb(flagSet *flag.FlagSet) {
	flagSet.StringVar(
		&c.Web.ListenAddress,
		"web.listen-address",
		lookupEnvOrDefault("web_listen_address", c.Web.ListenAddress),
		"address on which to expose /metrics",
	)
	flagSet.StringVar(
		&c.Web.ConfigFile,
		"web.config",
		lookupEnvOrDefault("web_config", c.Web.ConfigFile),
		"path to a web-config file enabling TLS or basic auth on the /metrics listener, per exporter-toolkit",
	)
}

//goland:noinspection GoMixedReceiverTypes
func (c *Config) flagSetDebug(flagSet *flag.FlagSet) {
	flagSet.BoolVar(
		&c.Debug.Enable,
		"debug.pprof",
		lookupEnvOrDefault("debug_pprof", c.Debug.Enable),
		"mount the net/http/pprof tree alongside /metrics; never expose this publicly",
	)
}

// lookupEnvOrDefault resolves flag defaults against CONFIG_<key>
// environment variables (uppercased), falling back to defaultValue
// when unset or unparsable. The set of supported default types is
// fixed; any other T panics when its CONFIG_<key> variable is set (an
// unset variable returns defaultValue without a type check).
func lookupEnvOrDefault[T any](key string, defaultValue T) T {
	raw, ok := os.LookupEnv("CONFIG_" + strings.ToUpper(key))
	if !ok {
		return defaultValue
	}

	switch v := any(defaultValue).(type) {
	case string:
		return any(raw).(T) //nolint:forcetypeassert

	case bool:
		_ = v

		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return defaultValue
		}

		return any(parsed).(T) //nolint:forcetypeassert

	case int:
		_ = v

		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return defaultValue
		}

		return any(parsed).(T) //nolint:forcetypeassert

	case uint:
		_ = v

		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return defaultValue
		}

		return any(uint(parsed)).(T) //nolint:forcetypeassert

	case float64:
		_ = v

		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return defaultValue
		}

		return any(parsed).(T) //nolint:forcetypeassert

	default:
		panic(fmt.Sprintf("lookupEnvOrDefault: unsupported type %T", defaultValue))
	}
}
