// Package metrics instruments the sink with prometheus counters. Collectors
// are created unregistered so a sink works without a registry; Register
// attaches them when the caller provides one.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the sink's counters. The zero value is not usable; a nil
// *Metrics is, so callers never branch on instrumentation being enabled.
type Metrics struct {
	RecordsFiltered prometheus.Counter
	EntriesBuffered prometheus.Counter
	FlushesSkipped  prometheus.Counter
	BatchesSent     prometheus.Counter
	BatchesFailed   prometheus.Counter
	EntriesSent     prometheus.Counter
}

// New creates the counter set.
func New() *Metrics {
	return &Metrics{
		RecordsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lokisink",
			Name:      "records_filtered_total",
			Help:      "Records dropped by the transport target filter.",
		}),
		EntriesBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lokisink",
			Name:      "entries_buffered_total",
			Help:      "Log entries appended to the flush buffer.",
		}),
		FlushesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lokisink",
			Name:      "flushes_skipped_total",
			Help:      "Flush attempts skipped due to buffer lock contention.",
		}),
		BatchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lokisink",
			Name:      "batches_sent_total",
			Help:      "Batches delivered to the backend.",
		}),
		BatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lokisink",
			Name:      "batches_failed_total",
			Help:      "Batches dropped after a failed send.",
		}),
		EntriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lokisink",
			Name:      "entries_sent_total",
			Help:      "Log entries contained in delivered batches.",
		}),
	}
}

// Register attaches all counters to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsFiltered,
		m.EntriesBuffered,
		m.FlushesSkipped,
		m.BatchesSent,
		m.BatchesFailed,
		m.EntriesSent,
	}
}

// Nil-safe increment helpers.

func (m *Metrics) IncRecordsFiltered() {
	if m != nil {
		m.RecordsFiltered.Inc()
	}
}

func (m *Metrics) IncEntriesBuffered() {
	if m != nil {
		m.EntriesBuffered.Inc()
	}
}

func (m *Metrics) IncFlushesSkipped() {
	if m != nil {
		m.FlushesSkipped.Inc()
	}
}

func (m *Metrics) IncBatchesSent() {
	if m != nil {
		m.BatchesSent.Inc()
	}
}

func (m *Metrics) IncBatchesFailed() {
	if m != nil {
		m.BatchesFailed.Inc()
	}
}

func (m *Metrics) AddEntriesSent(n int) {
	if m != nil {
		m.EntriesSent.Add(float64(n))
	}
}
