// Package web implements the /metrics exposition endpoint contracted
// in spec.md §4.5: sweep the registry, then stream its text exposition.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const contentType = "text/plain; version=0.0.4"

// MetricsHandler returns an http.Handler serving GET /metrics: one
// Registry.Sweep(now) followed by a streamed SnapshotText, with the
// process/Go/build-info families from promGatherer appended in the
// same exposition using expfmt (a nil promGatherer skips that part —
// tests exercising only the application metrics pass nil).
func MetricsHandler(reg *metric.Registry, promGatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.Sweep(time.Now())

		w.Header().Set("Content-Type", contentType)

		if err := reg.SnapshotText(w); err != nil {
			logger.ErrorContext(r.Context(), "writing metrics snapshot", slog.Any("error", err))
		}

		if promGatherer == nil {
			return
		}

		families, err := promGatherer.Gather()
		if err != nil {
			logger.ErrorContext(r.Context(), "gathering process metrics", slog.Any("error", err))

			return
		}

		enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))

		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				logger.ErrorContext(r.Context(), "encoding process metrics", slog.Any("error", err))

				return
			}
		}
	})
}
