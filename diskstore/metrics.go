package diskstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the store's Prometheus instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	Saves         prometheus.Counter
	Loads         prometheus.Counter
	Flushes       prometheus.Counter
	BytesWritten  prometheus.Counter
	BytesRead     prometheus.Counter
	QueuedBytes   prometheus.Gauge
	FlushDuration prometheus.Histogram
}

// NewMetrics creates the instruments and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Saves: f.NewCounter(prometheus.CounterOpts{
			Name: "boxtree_store_saves_total",
			Help: "Record blocks submitted for writing",
		}),
		Loads: f.NewCounter(prometheus.CounterOpts{
			Name: "boxtree_store_loads_total",
			Help: "Record blocks read",
		}),
		Flushes: f.NewCounter(prometheus.CounterOpts{
			Name: "boxtree_store_flushes_total",
			Help: "Write-behind queue flushes",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "boxtree_store_written_bytes_total",
			Help: "Record bytes written to the backing file",
		}),
		BytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "boxtree_store_read_bytes_total",
			Help: "Record bytes returned by loads",
		}),
		QueuedBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "boxtree_store_queued_bytes",
			Help: "Bytes waiting in the write-behind queue",
		}),
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "boxtree_store_flush_duration_seconds",
			Help:    "Write-behind flush duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		}),
	}
}

func (m *Metrics) saved() {
	if m != nil {
		m.Saves.Inc()
	}
}

func (m *Metrics) loaded(n int) {
	if m != nil {
		m.Loads.Inc()
		m.BytesRead.Add(float64(n))
	}
}

func (m *Metrics) queued(n int64) {
	if m != nil {
		m.QueuedBytes.Set(float64(n))
	}
}

func (m *Metrics) flushed(written int64, start time.Time) {
	if m != nil {
		m.Flushes.Inc()
		m.BytesWritten.Add(float64(written))
		m.FlushDuration.Observe(time.Since(start).Seconds())
		m.QueuedBytes.Set(0)
	}
}
