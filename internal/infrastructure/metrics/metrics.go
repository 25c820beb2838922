package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feedqueue"

const (
	ReasonMalformed = "malformed"
	ReasonDuplicate = "duplicate"
)

// Metrics is safe to use through a nil pointer; every method is a no-op then.
type Metrics struct {
	entriesFetched   prometheus.Counter
	entriesNew       prometheus.Counter
	entriesSkipped   *prometheus.CounterVec
	published        prometheus.Counter
	publishFailures  prometheus.Counter
	fetchErrors      prometheus.Counter
	historySaves     *prometheus.CounterVec
	passDuration     prometheus.Histogram
	lastPassUnixTime prometheus.Gauge
	feedsConfigured  prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		entriesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_fetched_total",
			Help:      "Total number of entries returned by feed fetches",
		}),
		entriesNew: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_new_total",
			Help:      "Total number of entries not seen before",
		}),
		entriesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_skipped_total",
			Help:      "Total number of entries dropped by the deduplicator",
		}, []string{"reason"}),
		published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of messages put on the queue",
		}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Total number of messages the queue rejected",
		}),
		fetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed feed fetches",
		}),
		historySaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "saves_total",
			Help:      "Total number of history saves by result",
		}, []string{"result"}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of a pass over all feeds in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		lastPassUnixTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time of the last completed pass",
		}),
		feedsConfigured: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feeds_configured",
			Help:      "Number of feed locators in the current configuration",
		}),
	}
}

func (m *Metrics) EntriesFetched(n int) {
	if m == nil {
		return
	}
	m.entriesFetched.Add(float64(n))
}

func (m *Metrics) EntriesNew(n int) {
	if m == nil {
		return
	}
	m.entriesNew.Add(float64(n))
}

func (m *Metrics) EntrySkipped(reason string) {
	if m == nil {
		return
	}
	m.entriesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.fetchErrors.Inc()
}

func (m *Metrics) HistorySaved(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.historySaves.WithLabelValues(result).Inc()
}

func (m *Metrics) PassCompleted(start, end time.Time) {
	if m == nil {
		return
	}
	m.passDuration.Observe(end.Sub(start).Seconds())
	m.lastPassUnixTime.Set(float64(end.Unix()))
}

func (m *Metrics) FeedsConfigured(n int) {
	if m == nil {
		return
	}
	m.feedsConfigured.Set(float64(n))
}
