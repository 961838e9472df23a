// Package metric implements the labeled time series registry: family
// registration, per-label-set children with TTL-based expiry, and a
// Prometheus text-format exposition.
package metric

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Type is the kind of a metric family.
type Type int

const (
	Counter Type = iota
	Gauge
	Histogram
)

func (t Type) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Reserved family names. Every registry carries these three from
// construction; no caller-declared schema entry may use them.
const (
	NameParserErrors = "parser_errors"
	NameLinesParsed  = "lines_parsed"
	NameConnected    = "connected"
)

var (
	// ErrTypeMismatch is returned by GetOrCreateFamily when a family is
	// re-registered under a different type than it was created with.
	ErrTypeMismatch = errors.New("metric: family re-registered with a different type")
	// ErrUnknownFamily is returned by Add when no family of that name exists.
	ErrUnknownFamily = errors.New("metric: unknown family")
	// ErrNegativeCounter is returned by Add when a Counter would decrease.
	ErrNegativeCounter = errors.New("metric: counter value cannot be negative")
)

// DefBuckets are the standard Prometheus histogram bucket boundaries,
// used whenever a histogram family is declared without explicit buckets.
var DefBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10}

// Labels is a canonical label-value map. Identity of a child is the
// full set of (name, value) pairs in Labels. Its underlying shape
// matches client_golang's prometheus.Labels: both are map[string]string,
// so a Labels value converts to one with a plain type conversion.
type Labels map[string]string

// AsPrometheusLabels converts l to client_golang's prometheus.Labels
// with a plain type conversion, for code that hands a label set to a
// prometheus.Collector.
func (l Labels) AsPrometheusLabels() prometheus.Labels {
	return prometheus.Labels(l)
}

// Clone returns a shallow copy so callers can mutate the result without
// affecting the original map.
func (l Labels) Clone() Labels {
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}

	return out
}

const defaultTTL = 30 * time.Second
