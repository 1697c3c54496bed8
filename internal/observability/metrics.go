package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bailey_dashboard",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Vendor sync invocations labeled by outcome (success, failure, dry_run).",
	}, []string{"outcome"})

	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bailey_dashboard",
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful vendor sync.",
	})

	vendorRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bailey_dashboard",
		Subsystem: "vendor",
		Name:      "request_duration_seconds",
		Help:      "Latency of outbound vendor calls labeled by operation and result.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"operation", "result"})

	extractorHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bailey_dashboard",
		Subsystem: "vendor",
		Name:      "session_extractions_total",
		Help:      "Session credentials extracted, labeled by the strategy that produced them.",
	}, []string{"strategy"})

	recordsPersisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bailey_dashboard",
		Subsystem: "persistence",
		Name:      "records_upserted_total",
		Help:      "Rows written by vendor syncs labeled by table.",
	}, []string{"table"})
)

func init() {
	prometheus.MustRegister(syncRunsCounter, lastSyncGauge, vendorRequestDuration, extractorHits, recordsPersisted)
}

// RecordSyncRun increments the sync outcome counter and, on success, the watermark gauge.
func RecordSyncRun(outcome string, ts time.Time) {
	syncRunsCounter.WithLabelValues(outcome).Inc()
	if outcome == "success" && !ts.IsZero() {
		lastSyncGauge.Set(float64(ts.Unix()))
	}
}

// ObserveVendorRequest records the latency of one vendor call.
func ObserveVendorRequest(operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	vendorRequestDuration.WithLabelValues(operation, result).Observe(time.Since(started).Seconds())
}

// RecordExtraction counts which extractor produced the session credential.
func RecordExtraction(strategy string) {
	extractorHits.WithLabelValues(strategy).Inc()
}

// RecordPersisted counts rows upserted into a table.
func RecordPersisted(table string, n int) {
	if n <= 0 {
		return
	}
	recordsPersisted.WithLabelValues(table).Add(float64(n))
}
