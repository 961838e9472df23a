package parser_test

import (
	"strings"
	"testing"
	"time"

	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
	"github.com/stretchr/testify/require"
)

type stringsBuilder = strings.Builder

func newTestRegistry(t *testing.T) *metric.Registry {
	t.Helper()

	return metric.NewRegistry("", time.Minute)
}

func registerFamily(t *testing.T, reg *metric.Registry, name string, typ metric.Type) {
	t.Helper()

	_, err := reg.GetOrCreateFamily(name, "", typ, nil, false)
	require.NoError(t, err)
}
