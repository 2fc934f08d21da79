package lokisink

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lostinspiration/loki-sink/internal/metrics"
	"github.com/lostinspiration/loki-sink/internal/props"
	"github.com/lostinspiration/loki-sink/internal/sink"
	"github.com/lostinspiration/loki-sink/internal/transport"
)

// Sink ships structured log records to a Loki push endpoint. Records are
// enriched with the ambient property store, buffered, and flushed either
// when the batch limit is reached or on the background interval.
// Safe for concurrent use.
type Sink struct {
	core     *sink.Sink
	store    *props.Store
	minLevel slog.Level

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Sink targeting the given push URL (typically
// http://host:3100/loki/api/v1/push) and starts its background flush.
// Call Close to stop it and drain the buffer.
func New(url string, opts ...Option) (*Sink, error) {
	if url == "" {
		return nil, fmt.Errorf("lokisink: url is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m := metrics.New()
	if o.registry != nil {
		if err := m.Register(o.registry); err != nil {
			return nil, fmt.Errorf("lokisink: %w", err)
		}
	}

	client := transport.New(url,
		transport.WithTimeout(o.timeout),
		transport.WithCompression(o.compress),
	)

	store := props.NewStore()
	core := sink.New(client, sink.Config{
		Store:        store,
		Labels:       o.labels,
		BatchLimit:   o.batchLimit,
		FilterTarget: transport.TargetName,
		OnError:      o.onError,
		Metrics:      m,
	})

	s := &Sink{
		core:     core,
		store:    store,
		minLevel: o.minLevel,
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run(o.flushInterval)

	return s, nil
}

// run triggers a flush once per interval, independent of buffer fill.
func (s *Sink) run(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.core.Flush()
		case <-s.done:
			return
		}
	}
}

// Push adds an ambient property included in every log line until the
// returned guard is released. The value must be JSON-serializable; anything
// else fails synchronously.
//
//	g, err := s.Push("CorrelationId", id)
//	if err != nil {
//	    return err
//	}
//	defer g.Release()
//
// Release removes by name: if a later Push overwrote the same name, this
// guard's release still removes the entry.
func (s *Sink) Push(name string, value any) (*props.Guard, error) {
	return s.store.Push(name, value)
}

// Flush triggers an immediate flush attempt. Non-blocking: if a flush is
// already in progress the call returns and the buffer waits for the next
// trigger.
func (s *Sink) Flush() {
	s.core.Flush()
}

// Handler returns a slog.Handler feeding this sink. Severity filtering
// below the configured minimum level happens here.
func (s *Sink) Handler() slog.Handler {
	return &handler{sink: s.core, level: s.minLevel}
}

// Install sets the process-wide slog default to this sink.
func (s *Sink) Install() {
	slog.SetDefault(slog.New(s.Handler()))
}

// Buffered returns the number of entries awaiting flush.
func (s *Sink) Buffered() int {
	return s.core.Buffered()
}

// Close stops the background flush and drains the buffer. Entries that fail
// to send are dropped, per the lossy delivery policy. Idempotent.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		for s.core.Buffered() > 0 {
			before := s.core.Buffered()
			s.core.Flush()
			if s.core.Buffered() == before {
				break
			}
		}
	})
}
