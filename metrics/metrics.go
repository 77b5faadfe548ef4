// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Queries       *prometheus.CounterVec // outcome label: ok|no_route|invalid|timeout|error
	QueryDuration prometheus.Histogram

	FeedEvents  *prometheus.CounterVec // source, kind
	FeedDropped *prometheus.CounterVec // source
	PollOutcome *prometheus.CounterVec // source, outcome: ok|failure

	SnapshotsPublished prometheus.Counter
	SnapshotVersion    prometheus.Gauge
	SourcesUnavailable prometheus.Gauge
	GraphStops         prometheus.Gauge
	GraphTrips         prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_queries_total",
			Help: "Journey queries served, by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_query_duration_seconds",
			Help:    "Duration of journey planning.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_feed_events_total",
			Help: "Canonical feed events ingested, by source and kind.",
		}, []string{"source", "kind"}),
		FeedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_feed_events_dropped_total",
			Help: "Feed events rejected at the normalization boundary.",
		}, []string{"source"}),
		PollOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_feed_polls_total",
			Help: "Feed poll attempts, by source and outcome.",
		}, []string{"source", "outcome"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_snapshots_published_total",
			Help: "Total snapshots published.",
		}),
		SnapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_snapshot_version",
			Help: "Version of the currently published snapshot.",
		}),
		SourcesUnavailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_feed_sources_unavailable",
			Help: "Feed sources currently classified live-unavailable.",
		}),
		GraphStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_graph_stops",
			Help: "Stops in the current graph version.",
		}),
		GraphTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_graph_trips",
			Help: "Trips in the current graph version.",
		}),
	}

	reg.MustRegister(
		c.Queries, c.QueryDuration,
		c.FeedEvents, c.FeedDropped, c.PollOutcome,
		c.SnapshotsPublished, c.SnapshotVersion, c.SourcesUnavailable,
		c.GraphStops, c.GraphTrips,
	)
	return c
}

// ObserveQuery records one served journey query.
func (c *Collector) ObserveQuery(outcome string, elapsed time.Duration) {
	c.Queries.WithLabelValues(outcome).Inc()
	c.QueryDuration.Observe(elapsed.Seconds())
}

// RecordEvent implements feed.EventMonitor for events the normalizer
// accepted into the canonical stream.
func (c *Collector) RecordEvent(source, kind string) {
	c.FeedEvents.WithLabelValues(source, kind).Inc()
}

// RecordDrop implements feed.EventMonitor for events rejected at the
// normalization boundary.
func (c *Collector) RecordDrop(source string) {
	c.FeedDropped.WithLabelValues(source).Inc()
}

// RecordPoll implements feed.SourceMonitor so poll outcomes can be
// fanned out to both the tracking store and the metrics.
func (c *Collector) RecordPoll(source string, ok bool, _ time.Time) {
	outcome := "ok"
	if !ok {
		outcome = "failure"
	}
	c.PollOutcome.WithLabelValues(source, outcome).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }
