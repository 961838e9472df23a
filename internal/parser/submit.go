package parser

import (
	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
)

// Submit parses line and applies the outcome to reg: on success, one
// Add per (metric name, value) plus lines_parsed+1; on failure,
// parser_errors+1. A value rejected by the registry itself (e.g. a
// negative contribution to a Counter) downgrades the whole line to a
// parser_errors increment, consistent with spec.md's rule that negative
// values are a parse-level failure.
//
// Every value is checked against its family with Registry.Validate
// before any Add runs, so a line with two or more numeric columns never
// partially updates the registry when a later column turns out invalid
// — spec.md §4.1 requires the whole line be rejected atomically.
func (p *LineParser) Submit(reg *metric.Registry, line string) error {
	result, err := p.Parse(line)
	if err != nil {
		_ = reg.Add(metric.NameParserErrors, p.baseLabels, 1)

		return err
	}

	for _, v := range result.Values {
		if err := reg.Validate(v.Name, v.Value); err != nil {
			_ = reg.Add(metric.NameParserErrors, p.baseLabels, 1)

			return err
		}
	}

	for _, v := range result.Values {
		_ = reg.Add(v.Name, result.Labels, v.Value)
	}

	_ = reg.Add(metric.NameLinesParsed, p.baseLabels, 1)

	return nil
}
