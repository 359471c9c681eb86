package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch results used as the "result" label of FetchesTotal.
const (
	ResultOK         = "ok"
	ResultError      = "error"
	ResultParseError = "parse_error"
)

var (
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dubbing_sync_fetches_total",
		Help: "Total number of task snapshot fetches by result",
	}, []string{"result"})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dubbing_sync_fetch_duration_seconds",
		Help:    "Task snapshot fetch duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	RefreshesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubbing_sync_refreshes_coalesced_total",
		Help: "Manual refreshes that joined an in-flight fetch",
	})

	TicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubbing_sync_ticks_dropped_total",
		Help: "Scheduled refreshes dropped because a fetch was outstanding",
	})

	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubbing_sync_stale_responses_total",
		Help: "Fetch results discarded because a newer fetch was already applied",
	})

	DiscardedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubbing_sync_discarded_responses_total",
		Help: "Fetch results discarded because no observers remained",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dubbing_sync_active_subscriptions",
		Help: "Number of live observer handles",
	})

	GrantsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubbing_sync_grants_issued_total",
		Help: "Total number of download grants resolved",
	})

	GrantsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubbing_sync_grants_failed_total",
		Help: "Total number of failed download grant requests",
	})

	ArtifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubbing_sync_artifact_bytes_total",
		Help: "Total artifact bytes saved locally",
	})
)
