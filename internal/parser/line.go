package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
)

// ErrParse is wrapped by every parse failure returned from Parse.
var ErrParse = errors.New("parser: line rejected")

var clfDatePattern = regexp.MustCompile(`^\[\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}\]$`)

// Value is one (metric name, numeric contribution) pair produced by a
// successful parse. Which family a name maps to (Counter or Histogram)
// is fixed at config load, not by Parse.
type Value struct {
	Name  string
	Value float64
}

// Result is the outcome of parsing one line: the assembled label map
// and the ordered metric contributions.
type Result struct {
	Labels metric.Labels
	Values []Value
}

// LineParser drives an ordered ColumnReader list across the
// whitespace-delimited tokens of one log line.
type LineParser struct {
	readers    []ColumnReader
	baseLabels metric.Labels
}

// New constructs a LineParser from an ordered reader list and a fixed
// set of base labels, which must contain at least "environment".
func New(readers []ColumnReader, baseLabels metric.Labels) (*LineParser, error) {
	if _, ok := baseLabels["environment"]; !ok {
		return nil, errors.New("parser: base labels must include \"environment\"")
	}

	return &LineParser{
		readers:    readers,
		baseLabels: baseLabels.Clone(),
	}, nil
}

// Parse tokenizes line and applies the reader list in order. Parse
// failures are atomic: no partial Result is ever returned alongside an
// error.
func (p *LineParser) Parse(line string) (Result, error) {
	tokens := tokenize(line)

	labels := p.baseLabels.Clone()
	values := make([]Value, 0, len(p.readers))

	ti := 0

	for _, r := range p.readers {
		if ti >= len(tokens) {
			return Result{}, fmt.Errorf("%w: too few tokens, want at least %d, have %d", ErrParse, len(p.readers), len(tokens))
		}

		var err error

		ti, err = applyReader(r, tokens, ti, labels, &values)
		if err != nil {
			return Result{}, err
		}
	}

	// Base labels always win over anything the schema might have set.
	for k, v := range p.baseLabels {
		labels[k] = v
	}

	return Result{Labels: labels, Values: values}, nil
}

func applyReader(r ColumnReader, tokens []string, ti int, labels metric.Labels, values *[]Value) (int, error) {
	switch r.Kind {
	case Null:
		return ti + 1, nil

	case Number:
		v, err := strconv.ParseFloat(tokens[ti], 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: column %q: invalid number %q", ErrParse, r.Name, tokens[ti])
		}

		*values = append(*values, Value{Name: r.Name, Value: v})

		return ti + 1, nil

	case CLFNumber:
		tok := tokens[ti]
		if tok == "-" {
			*values = append(*values, Value{Name: r.Name, Value: 0})

			return ti + 1, nil
		}

		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: column %q: invalid clf number %q", ErrParse, r.Name, tok)
		}

		*values = append(*values, Value{Name: r.Name, Value: v})

		return ti + 1, nil

	case Label:
		labels[r.Name] = tokens[ti]

		return ti + 1, nil

	case RequestHeader, Request:
		parts := splitFields(tokens[ti])
		if len(parts) != 3 {
			return 0, fmt.Errorf("%w: request column: expected \"METHOD PATH PROTO\", got %q", ErrParse, tokens[ti])
		}

		labels["request_method"] = parts[0]
		labels["request_path"] = parts[1]
		labels["request_protocol"] = parts[2]

		return ti + 1, nil

	case CLFDate:
		return applyCLFDate(tokens, ti)

	default:
		return 0, fmt.Errorf("%w: unknown column kind %v", ErrParse, r.Kind)
	}
}

func applyCLFDate(tokens []string, ti int) (int, error) {
	tok := tokens[ti]
	next := ti + 1

	if !strings.HasSuffix(tok, "]") {
		if next >= len(tokens) {
			return 0, fmt.Errorf("%w: clf_date: incomplete date group %q", ErrParse, tok)
		}

		tok = tok + " " + tokens[next]
		next++
	}

	if !clfDatePattern.MatchString(tok) {
		return 0, fmt.Errorf("%w: clf_date: malformed date group %q", ErrParse, tok)
	}

	return next, nil
}
