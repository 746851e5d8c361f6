// Package prom exports rediscache hook events as Prometheus metrics.
package prom

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/rediscache"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Hooks struct {
	connects         prometheus.Counter
	connectFailures  prometheus.Counter
	connectDuration  prometheus.Histogram
	decodeFailures   prometheus.Counter
	queueFull        prometheus.Counter
	detachedFailures *prometheus.CounterVec
	sweeps           *prometheus.CounterVec
	sweptKeys        prometheus.Counter
	flushes          *prometheus.CounterVec
}

var _ rediscache.Hooks = (*Hooks)(nil)

// New registers the collectors with reg under prefix (e.g. "rediscache_").
// It panics if a collector with the same name is already registered.
func New(prefix string, reg prometheus.Registerer) *Hooks {
	f := promauto.With(reg)
	return &Hooks{
		connects: f.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%sconnects_total", prefix),
			Help: "Total number of connections established to the store.",
		}),
		connectFailures: f.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%sconnect_failures_total", prefix),
			Help: "Total number of failed connection attempts.",
		}),
		connectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%sconnect_duration_seconds", prefix),
			Help:    "Time spent establishing a connection to the store.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		decodeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%sdecode_failures_total", prefix),
			Help: "Total number of stored values that could not be decoded.",
		}),
		queueFull: f.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%swrite_queue_full_total", prefix),
			Help: "Total number of detached writes refused because the queue was full.",
		}),
		detachedFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%sdetached_write_failures_total", prefix),
			Help: "Total number of detached writes that failed, partitioned by operation.",
		}, []string{"op"}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%ssweeps_total", prefix),
			Help: "Total number of pattern removals and clears partitioned by success or failure.",
		}, []string{"status"}),
		sweptKeys: f.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%sswept_keys_total", prefix),
			Help: "Total number of keys removed by pattern removals and clears.",
		}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%sendpoint_flushes_total", prefix),
			Help: "Total number of per-endpoint database flushes partitioned by success or failure.",
		}, []string{"status"}),
	}
}

func status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

func (h *Hooks) Reconnected(_ uint64, took time.Duration) {
	h.connects.Inc()
	h.connectDuration.Observe(took.Seconds())
}

func (h *Hooks) ReconnectFailed(error)      { h.connectFailures.Inc() }
func (h *Hooks) DecodeFailed(string, error) { h.decodeFailures.Inc() }
func (h *Hooks) WriteQueueFull(string)      { h.queueFull.Inc() }

func (h *Hooks) DetachedWriteFailed(op, _ string, _ error) {
	h.detachedFailures.WithLabelValues(op).Inc()
}

// Swept counts removed keys even when the sweep failed part-way.
func (h *Hooks) Swept(_ string, removed int, err error) {
	h.sweeps.WithLabelValues(status(err)).Inc()
	h.sweptKeys.Add(float64(removed))
}

func (h *Hooks) EndpointFlushed(_ string, _ int, err error) {
	h.flushes.WithLabelValues(status(err)).Inc()
}
