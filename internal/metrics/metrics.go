package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan counters exported by the daemon's /metrics endpoint.
var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scmscan",
		Name:      "scans_total",
		Help:      "Repository scans by platform and outcome.",
	}, []string{"platform", "result"})

	RateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scmscan",
		Name:      "rate_limit_waits_total",
		Help:      "Rate-limit cooldowns waited out, by platform.",
	}, []string{"platform"})

	CommitsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scmscan",
		Name:      "commits_ingested_total",
		Help:      "Commits persisted across all scans.",
	})

	MergeRequestsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scmscan",
		Name:      "merge_requests_ingested_total",
		Help:      "Merge requests persisted across all scans.",
	})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scmscan",
		Name:      "scan_duration_seconds",
		Help:      "Wall-clock duration of one repository scan.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"platform"})
)
