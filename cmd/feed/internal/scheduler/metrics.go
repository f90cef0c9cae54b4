package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Ticks         *prometheus.CounterVec
	Coalesced     prometheus.Counter
	StatsSkipped  prometheus.Counter
	FetchErrors   *prometheus.CounterVec
	PublishErrors prometheus.Counter
	Alerts        *prometheus.CounterVec
	ModeSwitches  prometheus.Counter
	ActiveAlerts  prometheus.Gauge
	StatsLatency  prometheus.Histogram
}

// NewMetrics registers the scheduler collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_ticks_total",
			Help: "Snapshots handled by the scheduler",
		}, []string{"mode"}),
		Coalesced: f.NewCounter(prometheus.CounterOpts{
			Name: "feed_ticks_coalesced_total",
			Help: "Snapshots replaced before the scheduler read them",
		}),
		StatsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "feed_stats_skipped_total",
			Help: "Ticks not sent to the stats worker because it was busy",
		}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Engine ticks that returned an error",
		}, []string{"mode"}),
		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "feed_publish_errors_total",
			Help: "Ticks the sink failed to publish",
		}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_alerts_raised_total",
			Help: "Rising alert edges",
		}, []string{"asset"}),
		ModeSwitches: f.NewCounter(prometheus.CounterOpts{
			Name: "feed_mode_switches_total",
			Help: "Completed mode switches",
		}),
		ActiveAlerts: f.NewGauge(prometheus.GaugeOpts{
			Name: "feed_active_alerts",
			Help: "Assets currently below their threshold",
		}),
		StatsLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed_stats_round_trip_seconds",
			Help:    "Time from stats submission to merged result",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}

func defaultMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
