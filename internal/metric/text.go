package metric

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// SnapshotText writes a complete Prometheus text-format exposition of
// every family and child currently in the registry. Children are
// emitted in a deterministic, lexicographically sorted order so that
// repeated snapshots of an unchanged registry are byte-identical.
func (r *Registry) SnapshotText(w io.Writer) error {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	families := make(map[string]*family, len(r.families))
	for k, v := range r.families {
		families[k] = v
	}
	r.mu.RUnlock()

	sort.Strings(names)

	bw := bufio.NewWriter(w)

	for _, name := range names {
		f := families[name]
		if err := f.writeText(bw, r.prefix); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func (f *family) writeText(w *bufio.Writer, prefix string) error {
	fullName := prefix + "_" + f.name

	f.mu.Lock()
	children := make([]*child, 0, len(f.children))
	for _, c := range f.children {
		children = append(children, c)
	}
	f.mu.Unlock()

	sort.Slice(children, func(i, j int) bool {
		return canonicalKey(children[i].labels) < canonicalKey(children[j].labels)
	})

	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", fullName, f.help, fullName, f.typ); err != nil {
		return err
	}

	for _, c := range children {
		c.mu.Lock()

		switch f.typ {
		case Counter, Gauge:
			_, err := fmt.Fprintf(w, "%s%s %s\n", fullName, formatLabels(c.labels, nil), formatFloat(c.value))
			if err != nil {
				c.mu.Unlock()

				return err
			}
		case Histogram:
			if err := writeHistogramChild(w, fullName, c, f.buckets); err != nil {
				c.mu.Unlock()

				return err
			}
		}

		c.mu.Unlock()
	}

	return nil
}

func writeHistogramChild(w *bufio.Writer, fullName string, c *child, buckets []float64) error {
	var cumulative uint64

	for i, ub := range buckets {
		cumulative += c.counts[i]

		le := map[string]string{"le": formatFloat(ub)}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", fullName, formatLabels(c.labels, le), cumulative); err != nil {
			return err
		}
	}

	le := map[string]string{"le": "+Inf"}
	if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", fullName, formatLabels(c.labels, le), c.count); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s_sum%s %s\n", fullName, formatLabels(c.labels, nil), formatFloat(c.sum)); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s_count%s %d\n", fullName, formatLabels(c.labels, nil), c.count)

	return err
}

// formatLabels renders a label set as "{a="1",b="2"}" in lexicographic
// key order, with extra appended last (used for the histogram "le" label).
func formatLabels(labels Labels, extra map[string]string) string {
	if len(labels) == 0 && len(extra) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	sb.WriteByte('{')

	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}

		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(escapeLabelValue(labels[k]))
		sb.WriteByte('"')
	}

	for k, v := range extra {
		if len(keys) > 0 {
			sb.WriteByte(',')
		}

		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(escapeLabelValue(v))
		sb.WriteByte('"')
	}

	sb.WriteByte('}')

	return sb.String()
}

func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, `"`, `\"`)

	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
