package types_test

import (
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/metrics-ops/ssh-log-exporter/internal/config/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSliceUnmarshalText(t *testing.T) {
	t.Parallel()

	slice := types.StringSlice{}

	require.NoError(t, slice.UnmarshalText([]byte("a,b,c,d")))

	assert.Equal(t, types.StringSlice{"a", "b", "c", "d"}, slice)
}

func TestStringSliceMarshalText(t *testing.T) {
	t.Parallel()

	slice, err := types.StringSlice{"a", "b", "c", "d"}.MarshalText()

	require.NoError(t, err)

	assert.Equal(t, []byte("a,b,c,d"), slice)
}

func TestStringSliceUnmarshalYAML(t *testing.T) {
	t.Parallel()

	slice := types.StringSlice{}

	require.NoError(t, yaml.NewDecoder(strings.NewReader("- a\n- b\n- c\n- d\n")).Decode(&slice))

	assert.Equal(t, types.StringSlice{"a", "b", "c", "d"}, slice)
}

func TestFloat64SliceUnmarshalText(t *testing.T) {
	t.Parallel()

	slice := types.Float64Slice{}

	require.NoError(t, slice.UnmarshalText([]byte("0.5,0.6,0.7,0.8")))

	assert.Equal(t, types.Float64Slice{0.5, 0.6, 0.7, 0.8}, slice)
}

func TestFloat64SliceMarshalText(t *testing.T) {
	t.Parallel()

	slice, err := types.Float64Slice{0.5, 0.6, 0.7, 0.8}.MarshalText()

	require.NoError(t, err)

	assert.Equal(t, []byte("0.5,0.6,0.7,0.8"), slice)
}

func TestFloat64SliceUnmarshalYAML(t *testing.T) {
	t.Parallel()

	var slice types.Float64Slice

	require.NoError(t, yaml.NewDecoder(strings.NewReader("- 0.5\n- 0.6\n- 0.7\n- 0.8\n")).Decode(&slice))

	assert.Equal(t, types.Float64Slice{0.5, 0.6, 0.7, 0.8}, slice)
}
