package metric

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is the process-wide set of metric families. It is the only
// shared mutable state between scraper workers and the scrape handler.
type Registry struct {
	prefix string
	ttl    time.Duration

	mu       sync.RWMutex
	families map[string]*family
	order    []string // declaration order, for deterministic exposition fallback
}

// NewRegistry creates a registry with the given metric-name prefix and
// default child TTL. The three reserved families (parser_errors,
// lines_parsed, connected) are pre-registered so they are always present.
func NewRegistry(prefix string, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	r := &Registry{
		prefix:   prefix,
		ttl:      ttl,
		families: make(map[string]*family),
	}

	// Errors are impossible here: these are fresh, internally consistent
	// registrations of a brand-new registry.
	_, _ = r.GetOrCreateFamily(NameParserErrors, "Total number of log lines that failed to parse.", Counter, nil, false)
	_, _ = r.GetOrCreateFamily(NameLinesParsed, "Total number of log lines successfully parsed.", Counter, nil, false)
	_, _ = r.GetOrCreateFamily(NameConnected, "Whether the worker currently holds a live tail connection.", Gauge, nil, true)

	return r
}

// GetOrCreateFamily registers a metric family if it does not yet exist,
// or returns the existing one. Re-registering an existing family under
// a different type is an error.
func (r *Registry) GetOrCreateFamily(name, help string, typ Type, buckets []float64, ttlExempt bool) (*Family, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.families[name]; ok {
		if f.typ != typ {
			return nil, fmt.Errorf("%w: family %q is %s, requested %s", ErrTypeMismatch, name, f.typ, typ)
		}

		return &Family{f: f}, nil
	}

	if typ == Histogram && len(buckets) == 0 {
		buckets = append([]float64(nil), DefBuckets...)
	}

	f := &family{
		name:      name,
		help:      help,
		typ:       typ,
		buckets:   buckets,
		ttlExempt: ttlExempt,
		children:  make(map[string]*child),
	}

	r.families[name] = f
	r.order = append(r.order, name)

	return &Family{f: f}, nil
}

// Add updates the child identified by labels on the named family. For a
// Counter, value is added (and must be non-negative); for a Gauge, value
// replaces the current value; for a Histogram, value is observed.
func (r *Registry) Add(name string, labels Labels, value float64) error {
	r.mu.RLock()
	f, ok := r.families[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}

	return f.add(labels, value)
}

// Validate reports whether value would be accepted by the named
// family's Add, without mutating any registry state. Callers that must
// apply several values atomically (submitting every metric contribution
// from one log line, for instance) validate all of them up front and
// only then call Add for each, so one bad value never leaves the
// registry partially updated.
func (r *Registry) Validate(name string, value float64) error {
	r.mu.RLock()
	f, ok := r.families[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}

	return f.validate(value)
}

// Sweep removes every child whose last update is older than now minus the
// registry TTL, except in families flagged TTL-exempt.
func (r *Registry) Sweep(now time.Time) {
	r.mu.RLock()
	families := make([]*family, 0, len(r.families))
	for _, f := range r.families {
		families = append(families, f)
	}
	r.mu.RUnlock()

	cutoff := now.Add(-r.ttl)

	for _, f := range families {
		if f.ttlExempt {
			continue
		}

		f.sweep(cutoff)
	}
}

// Family is a handle to a registered metric family, returned by
// GetOrCreateFamily so callers can add values without a second
// name-based lookup.
type Family struct {
	f *family
}

// Add updates the child identified by labels on this family.
func (fh *Family) Add(labels Labels, value float64) error {
	return fh.f.add(labels, value)
}

// Name returns the family's registered name.
func (fh *Family) Name() string {
	return fh.f.name
}

type family struct {
	name      string
	help      string
	typ       Type
	buckets   []float64 // ascending, histogram only
	ttlExempt bool

	mu       sync.Mutex
	children map[string]*child
}

type child struct {
	labels     Labels
	lastUpdate time.Time

	mu       sync.Mutex
	value    float64 // counter/gauge
	sum      float64 // histogram
	counts   []uint64
	overflow uint64
	count    uint64
}

func (f *family) validate(value float64) error {
	if f.typ == Counter && value < 0 {
		return fmt.Errorf("%w: family %q, value %g", ErrNegativeCounter, f.name, value)
	}

	return nil
}

func (f *family) add(labels Labels, value float64) error {
	if err := f.validate(value); err != nil {
		return err
	}

	key := canonicalKey(labels)

	f.mu.Lock()
	c, ok := f.children[key]
	if !ok {
		c = &child{
			labels: labels.Clone(),
		}
		if f.typ == Histogram {
			c.counts = make([]uint64, len(f.buckets))
		}

		f.children[key] = c
	}
	f.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastUpdate = time.Now()

	switch f.typ {
	case Counter:
		c.value += value
	case Gauge:
		c.value = value
	case Histogram:
		c.sum += value
		c.count++

		idx := firstBucketAtLeast(f.buckets, value)
		if idx < len(f.buckets) {
			c.counts[idx]++
		} else {
			c.overflow++
		}
	}

	return nil
}

func firstBucketAtLeast(buckets []float64, value float64) int {
	for i, ub := range buckets {
		if value <= ub {
			return i
		}
	}

	return len(buckets)
}

func (f *family) sweep(cutoff time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, c := range f.children {
		c.mu.Lock()
		stale := c.lastUpdate.Before(cutoff)
		c.mu.Unlock()

		if stale {
			delete(f.children, key)
		}
	}
}

// canonicalKey builds a stable identity string for a label-value map,
// independent of insertion order.
func canonicalKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
		sb.WriteByte('\x00')
	}

	return sb.String()
}
