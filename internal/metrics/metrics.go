package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_events_processed",
	Help: "Number of ingested events, by entry point",
}, []string{"type"})

var EventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_event_errors",
	Help: "Number of events which failed processing (including recovered panics)",
}, []string{"type"})

var EventDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_event_duplicates",
	Help: "Number of duplicate event deliveries dropped",
}, []string{"type"})

var EventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "modguard_event_duration_sec",
	Help:    "Time spent evaluating an event, excluding countermeasure execution",
	Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
}, []string{"type"})

var Detections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_detections",
	Help: "Number of breaches detected, by detector and trigger",
}, []string{"detector", "trigger"})

var Countermeasures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_countermeasures",
	Help: "Number of countermeasures executed, by detector, action and result",
}, []string{"detector", "action", "result"})

var CountermeasureDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "modguard_countermeasure_duration_sec",
	Help: "Total duration of countermeasure execution",
}, []string{"detector"})

var Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_notifications",
	Help: "Best-effort side effects, by kind and result",
}, []string{"kind", "result"})

var DispatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modguard_dispatch_inflight",
	Help: "Countermeasures submitted but not yet finished",
})

var WindowsEvicted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modguard_windows_evicted",
	Help: "Idle window buckets removed by the sweeper",
})

var LocksExpired = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modguard_subject_locks_expired",
	Help: "Advisory subject locks removed by the sweeper after their ttl",
})

var ComponentHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "modguard_component_healthy",
	Help: "1 if the component heartbeat is recent, 0 if it stalled",
}, []string{"component"})
