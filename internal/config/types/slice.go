// Package types holds small custom scalar types shared by the config
// schema: a comma-joinable host list and a float bucket-boundary list,
// both round-tripping through text and YAML the way the teacher's
// StringSlice/Float64Slice do.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// StringSlice is a YAML sequence of strings (the `hosts` list) that
// also knows how to render itself as a comma-joined flag value.
type StringSlice []string

//goland:noinspection GoMixedReceiverTypes
func (s StringSlice) String() string {
	return strings.Join(s, ",")
}

//goland:noinspection GoMixedReceiverTypes
func (s StringSlice) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

//goland:noinspection GoMixedReceiverTypes
func (s *StringSlice) UnmarshalText(text []byte) error {
	*s = strings.Split(string(text), ",")

	return nil
}

// UnmarshalYAML implements goccy/go-yaml's BytesUnmarshaler so a
// StringSlice decodes from a native YAML sequence, not just a scalar.
//
//goland:noinspection GoMixedReceiverTypes
func (s *StringSlice) UnmarshalYAML(data []byte) error {
	var slice []string
	if err := yaml.Unmarshal(data, &slice); err != nil {
		return err //nolint:wrapcheck
	}

	*s = slice

	return nil
}

// Float64Slice is a YAML sequence of histogram bucket upper bounds.
type Float64Slice []float64

//goland:noinspection GoMixedReceiverTypes
func (s Float64Slice) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}

	return strings.Join(parts, ",")
}

//goland:noinspection GoMixedReceiverTypes
func (s Float64Slice) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

//goland:noinspection GoMixedReceiverTypes
func (s *Float64Slice) UnmarshalText(text []byte) error {
	parts := strings.Split(string(text), ",")
	out := make(Float64Slice, len(parts))

	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("failed to parse float64 from %q: %w", p, err)
		}

		out[i] = v
	}

	*s = out

	return nil
}

// UnmarshalYAML implements goccy/go-yaml's BytesUnmarshaler.
//
//goland:noinspection GoMixedReceiverTypes
func (s *Float64Slice) UnmarshalYAML(data []byte) error {
	var slice []float64
	if err := yaml.Unmarshal(data, &slice); err != nil {
		return err //nolint:wrapcheck
	}

	*s = slice

	return nil
}
