// Package sink implements the batching engine: each log record is enriched
// with the property store's current contents, buffered, and shipped in
// batches through a Sender.
package sink

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lostinspiration/loki-sink/internal/metrics"
	"github.com/lostinspiration/loki-sink/internal/model"
	"github.com/lostinspiration/loki-sink/internal/payload"
	"github.com/lostinspiration/loki-sink/internal/props"
)

// DefaultBatchLimit is the buffer length that triggers an inline flush, and
// the maximum number of entries drained per flush.
const DefaultBatchLimit = 1000

// Sender delivers one assembled push request. Implemented by the HTTP
// transport; tests substitute their own.
type Sender interface {
	Send(payload.PushRequest) error
}

// Config carries the sink's construction parameters.
type Config struct {
	// Store is the shared property store snapshotted into every line.
	// Nil means a fresh store.
	Store *props.Store
	// Labels is the fixed global label set attached to every stream.
	// Copied at construction; immutable afterwards.
	Labels map[string]string
	// BatchLimit caps the buffer before an inline flush and the number of
	// entries drained per flush. Zero means DefaultBatchLimit.
	BatchLimit int
	// FilterTarget drops records whose target contains this substring
	// before any processing. Guards against the transport's own log
	// records recursing back into the sink.
	FilterTarget string
	// OnError receives delivery and enrichment errors. Must not log
	// through the sink itself. Nil means discard.
	OnError func(error)
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Sink buffers enriched log entries and flushes them in batches. Safe for
// concurrent use: producers append under the buffer lock, and at most one
// flush drains at a time (enforced by the non-blocking acquire in Flush).
type Sink struct {
	store   *props.Store
	labels  map[string]string
	limit   int
	filter  string
	sender  Sender
	onError func(error)
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending []payload.Stream
}

// New creates a Sink delivering through sender.
func New(sender Sender, cfg Config) *Sink {
	labels := make(map[string]string, len(cfg.Labels))
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	limit := cfg.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	store := cfg.Store
	if store == nil {
		store = props.NewStore()
	}
	onError := cfg.OnError
	if onError == nil {
		onError = func(error) {}
	}
	return &Sink{
		store:   store,
		labels:  labels,
		limit:   limit,
		filter:  cfg.FilterTarget,
		sender:  sender,
		onError: onError,
		metrics: cfg.Metrics,
	}
}

// Store returns the shared property store.
func (s *Sink) Store() *props.Store { return s.store }

// Enabled reports whether the sink accepts records. Always true: level and
// target filtering, if any, happens upstream in the ingress adapter.
func (s *Sink) Enabled() bool { return true }

// Log enriches one record and appends it to the buffer. Reaching the batch
// limit triggers a synchronous flush. The standard properties are held in
// the store only for the duration of the call; the snapshot is a copy, so
// later property churn never mutates an already-buffered line.
func (s *Sink) Log(rec model.Record) {
	if s.filter != "" && strings.Contains(rec.Target, s.filter) {
		s.metrics.IncRecordsFiltered()
		return
	}

	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	guards, err := s.pushStandard(rec)
	if err != nil {
		s.onError(err)
		return
	}
	line := s.store.Snapshot()
	for i := len(guards) - 1; i >= 0; i-- {
		guards[i].Release()
	}

	stream := payload.NewStream(s.labels, payload.Timestamp(ts), string(line))

	s.mu.Lock()
	s.pending = append(s.pending, stream)
	n := len(s.pending)
	s.mu.Unlock()
	s.metrics.IncEntriesBuffered()

	if n >= s.limit {
		s.Flush()
	}
}

// pushStandard registers the record's standard properties. On error the
// already-pushed guards are released before returning.
func (s *Sink) pushStandard(rec model.Record) ([]*props.Guard, error) {
	standard := []struct {
		name  string
		value any
	}{
		{"Message", rec.Message},
		{"LineNumber", rec.Line},
		{"Target", rec.Target},
		{"File", rec.File},
		{"level", model.SeverityName(rec.Level)},
	}

	guards := make([]*props.Guard, 0, len(standard))
	for _, p := range standard {
		g, err := s.store.Push(p.name, p.value)
		if err != nil {
			for i := len(guards) - 1; i >= 0; i-- {
				guards[i].Release()
			}
			return nil, fmt.Errorf("sink: %w", err)
		}
		guards = append(guards, g)
	}
	return guards, nil
}

// Flush drains up to the batch limit from the front of the buffer (oldest
// first) and issues one send. The acquire is non-blocking: if another append
// or flush holds the buffer, Flush returns immediately and the entries wait
// for the next trigger. The lock is released before the network call — the
// transport may itself log, and holding the lock across the send would
// deadlock against Log's append path.
func (s *Sink) Flush() {
	if !s.mu.TryLock() {
		s.metrics.IncFlushesSkipped()
		return
	}
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	n := len(s.pending)
	if n > s.limit {
		n = s.limit
	}
	drained := s.pending[:n:n]
	s.pending = append([]payload.Stream(nil), s.pending[n:]...)
	s.mu.Unlock()

	if err := s.sender.Send(payload.Wrap(drained)); err != nil {
		// Lossy by design: the batch is dropped, not re-buffered.
		s.metrics.IncBatchesFailed()
		s.onError(fmt.Errorf("sink: flush: %w", err))
		return
	}
	s.metrics.IncBatchesSent()
	s.metrics.AddEntriesSent(len(drained))
}

// Buffered returns the number of entries currently awaiting flush.
func (s *Sink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
