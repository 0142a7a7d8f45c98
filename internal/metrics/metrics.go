// Package metrics exposes extraction and cache counters to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the loader's collectors. A nil *Metrics records nothing.
type Metrics struct {
	jobs        *prometheus.CounterVec
	jobDur      *prometheus.HistogramVec
	lookups     *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	pagesStored prometheus.Counter
	fetched     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comicloader_jobs_total",
			Help: "Extraction jobs finished, partitioned by kind and result",
		}, []string{"kind", "result"}),
		jobDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "comicloader_job_duration_seconds",
			Help:    "Time spent running one extraction job",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"kind"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comicloader_cache_lookups_total",
			Help: "Cache existence checks, partitioned by slot kind and outcome",
		}, []string{"slot", "outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "comicloader_cover_queue_depth",
			Help: "Cover jobs waiting for the worker",
		}),
		pagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comicloader_cache_writes_total",
			Help: "Files written to the cache",
		}),
		fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comicloader_fetched_bytes_total",
			Help: "Bytes of remote archives spooled, partitioned by source kind",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.jobDur, m.lookups, m.queueDepth, m.pagesStored, m.fetched)
	}
	return m
}

// JobFinished records one completed job.
func (m *Metrics) JobFinished(kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, result).Inc()
	m.jobDur.WithLabelValues(kind).Observe(d.Seconds())
}

// CacheLookup records a hit or miss for a cover or page slot.
func (m *Metrics) CacheLookup(slot string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.lookups.WithLabelValues(slot, outcome).Inc()
}

func (m *Metrics) CacheWrite() {
	if m == nil {
		return
	}
	m.pagesStored.Inc()
}

// SetQueueDepth publishes the current cover queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Fetched accounts for n bytes downloaded from a remote source.
func (m *Metrics) Fetched(source string, n int64) {
	if m == nil {
		return
	}
	m.fetched.WithLabelValues(source).Add(float64(n))
}
