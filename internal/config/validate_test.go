package config_test

import (
	"testing"

	cfgtypes "github.com/metrics-ops/ssh-log-exporter/internal/config/types"
	"github.com/metrics-ops/ssh-log-exporter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() config.Config {
	return config.Config{
		Global: config.Global{
			TTL:    30,
			Prefix: "scraper",
			Format: []config.RawFormatEntry{
				{"ip": "label"},
				{"bytes": "number"},
			},
		},
		SSH: config.SSH{
			File: "/var/log/nginx/access.log",
			Environments: map[string]config.Environment{
				"prod": {Hosts: cfgtypes.StringSlice{"h1", "h2"}},
			},
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.Validate(validConfig()))
}

// S6: a format entry declaring `environment: label` is a ConfigError.
func TestValidateScenarioS6ReservedLabelName(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.Global.Format = append(conf.Global.Format, config.RawFormatEntry{"environment": "label"})

	err := config.Validate(conf)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfig)
	assert.Contains(t, err.Error(), "reserved")
}

func TestValidateRejectsReservedMetricName(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.Global.Format = append(conf.Global.Format, config.RawFormatEntry{"connected": "number"})

	err := config.Validate(conf)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfig)
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.Global.Format = append(conf.Global.Format, config.RawFormatEntry{"x": "not_a_kind"})

	err := config.Validate(conf)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfig)
}

func TestValidateRejectsUnknownHistogramReference(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.Global.Format = append(conf.Global.Format, config.RawFormatEntry{"rt": "number+nosuchbucket"})

	err := config.Validate(conf)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfig)
	assert.Contains(t, err.Error(), "unknown histogram")
}

// S5: "default" always resolves, even when not declared under
// global.histograms.
func TestValidateAcceptsDefaultHistogramSentinel(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.Global.Format = append(conf.Global.Format, config.RawFormatEntry{"rt": "number+default"})

	require.NoError(t, config.Validate(conf))
}

func TestValidateRejectsLabelWithHistogram(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.Global.Format = append(conf.Global.Format, config.RawFormatEntry{"x": "label+default"})

	err := config.Validate(conf)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfig)
}

func TestValidateRejectsNoEnvironments(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.SSH.Environments = nil

	err := config.Validate(conf)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfig)
}

func TestValidateRejectsEmptyHostList(t *testing.T) {
	t.Parallel()

	conf := validConfig()
	conf.SSH.Environments["prod"] = config.Environment{}

	err := config.Validate(conf)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfig)
}
