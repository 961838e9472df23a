package config

import (
	"fmt"
	"strings"

	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
	"github.com/metrics-ops/ssh-log-exporter/internal/parser"
)

// reservedLabelName is rejected on any `label` column, per spec.md §3:
// "the label name environment is reserved and rejected at config load."
const reservedLabelName = "environment"

var reservedMetricNames = map[string]bool{ //nolint:gochecknoglobals
	metric.NameParserErrors: true,
	metric.NameLinesParsed:  true,
	metric.NameConnected:    true,
}

// defaultHistogramName is a sentinel `type_expr` histogram reference
// that always resolves to metric.DefBuckets, without needing a
// matching entry under global.histograms (spec.md §8 scenario S5).
const defaultHistogramName = "default"

// Validate checks conf against every ConfigError case in spec.md §7:
// unknown kind, reserved-name misuse, unknown histogram reference, and
// malformed schema entries. It does not mutate conf.
func Validate(conf Config) error {
	if len(conf.SSH.Environments) == 0 {
		return fmt.Errorf("%w: no ssh environments configured", ErrConfig)
	}

	if _, err := BuildReaders(conf.Global); err != nil {
		return err
	}

	for name, env := range conf.SSH.Environments {
		if len(env.Hosts) == 0 {
			return fmt.Errorf("%w: environment %q declares no hosts", ErrConfig, name)
		}
	}

	return nil
}

// BuildReaders compiles global.format into an ordered ColumnReader
// list (nulls included as a zero-value ColumnReader with Kind ==
// parser.Null), validating every entry along the way. Each
// Number/CLFNumber reader carries the metric family name (and histogram
// reference) it contributes to; callers pass the list to
// RegisterFamilies before any worker starts submitting lines.
func BuildReaders(global Global) ([]parser.ColumnReader, error) {
	readers := make([]parser.ColumnReader, 0, len(global.Format))

	for i, raw := range global.Format {
		entry, err := raw.toFormatEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: format[%d]: %w", ErrConfig, i, err)
		}

		if entry.Skip {
			readers = append(readers, parser.ColumnReader{Kind: parser.Null})

			continue
		}

		reader, err := buildReader(global, entry)
		if err != nil {
			return nil, fmt.Errorf("%w: format[%d] (%q): %w", ErrConfig, i, entry.Name, err)
		}

		readers = append(readers, reader)
	}

	return readers, nil
}

// toFormatEntry validates a RawFormatEntry and converts it into a
// FormatEntry: a nil map (YAML null) skips the column, a single-key
// map names the column and its type expression, anything else is a
// ConfigError.
func (raw RawFormatEntry) toFormatEntry() (FormatEntry, error) {
	if raw == nil {
		return FormatEntry{Skip: true}, nil
	}

	if len(raw) != 1 {
		return FormatEntry{}, fmt.Errorf("%w: entry has %d keys, want exactly 1", ErrConfig, len(raw))
	}

	for name, typeExpr := range raw {
		return FormatEntry{Name: name, TypeExpr: typeExpr}, nil
	}

	panic("unreachable")
}

func buildReader(global Global, entry FormatEntry) (parser.ColumnReader, error) {
	kindStr, histName, _ := strings.Cut(entry.TypeExpr, "+")

	kind, err := parser.ParseKind(kindStr)
	if err != nil {
		return parser.ColumnReader{}, err
	}

	if kind == parser.Label {
		if entry.Name == reservedLabelName {
			return parser.ColumnReader{}, fmt.Errorf("%w: label name %q is reserved", ErrConfig, reservedLabelName)
		}

		if histName != "" {
			return parser.ColumnReader{}, fmt.Errorf("%w: label column %q cannot be combined with a histogram", ErrConfig, entry.Name)
		}

		return parser.ColumnReader{Kind: parser.Label, Name: entry.Name}, nil
	}

	if kind == parser.Number || kind == parser.CLFNumber {
		if reservedMetricNames[entry.Name] {
			return parser.ColumnReader{}, fmt.Errorf("%w: metric name %q is reserved", ErrConfig, entry.Name)
		}

		if histName != "" {
			if _, ok := global.Histograms[histName]; !ok && histName != defaultHistogramName {
				return parser.ColumnReader{}, fmt.Errorf("%w: unknown histogram reference %q", ErrConfig, histName)
			}
		}

		return parser.ColumnReader{Kind: kind, Name: entry.Name, Histogram: histName}, nil
	}

	// CLFDate, RequestHeader, Request carry no Name/Histogram.
	return parser.ColumnReader{Kind: kind}, nil
}

// RegisterFamilies walks the compiled reader list and declares every
// Number/CLFNumber column's metric family on reg: Histogram when the
// column carries a histogram reference, Counter otherwise. Safe to
// call once per registry; re-declaring the same family with the same
// type across multiple workers sharing one registry is a no-op.
func RegisterFamilies(reg *metric.Registry, global Global, readers []parser.ColumnReader) error {
	for _, r := range readers {
		if r.Kind != parser.Number && r.Kind != parser.CLFNumber {
			continue
		}

		if r.Histogram == "" {
			if _, err := reg.GetOrCreateFamily(r.Name, "", metric.Counter, nil, false); err != nil {
				return fmt.Errorf("%w: registering %q: %w", ErrConfig, r.Name, err)
			}

			continue
		}

		buckets := global.Histograms[r.Histogram]
		if _, err := reg.GetOrCreateFamily(r.Name, "", metric.Histogram, []float64(buckets), false); err != nil {
			return fmt.Errorf("%w: registering %q: %w", ErrConfig, r.Name, err)
		}
	}

	return nil
}
