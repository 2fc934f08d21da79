package lokisink

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lostinspiration/loki-sink/internal/sink"
)

type options struct {
	labels        map[string]string
	minLevel      slog.Level
	batchLimit    int
	flushInterval time.Duration
	timeout       time.Duration
	compress      bool
	onError       func(error)
	registry      prometheus.Registerer
}

// Option configures a Sink.
type Option func(*options)

// WithLabels sets the global label set attached to every stream. Labels
// determine backend-side storage grouping; keep cardinality low. Default:
// none.
func WithLabels(labels map[string]string) Option {
	return func(o *options) { o.labels = labels }
}

// WithMinLevel sets the minimum severity emitted. Filtering happens in the
// slog adapter, upstream of the sink itself. Default: slog.LevelInfo.
func WithMinLevel(l slog.Level) Option {
	return func(o *options) { o.minLevel = l }
}

// WithBatchLimit sets the buffer length that triggers an inline flush and
// the maximum entries drained per flush. Default: 1000.
func WithBatchLimit(n int) Option {
	return func(o *options) { o.batchLimit = n }
}

// WithFlushInterval sets the period of the background flush, bounding
// worst-case delivery latency during low traffic. Default: 1s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithCompression enables or disables gzip-encoding of push bodies.
// Default: enabled.
func WithCompression(on bool) Option {
	return func(o *options) { o.compress = on }
}

// WithOnError sets the callback for delivery and enrichment errors. The
// callback must not log through the sink itself. Default: writes to stderr.
func WithOnError(f func(error)) Option {
	return func(o *options) { o.onError = f }
}

// WithRegistry registers the sink's prometheus counters with reg. Default:
// counters are collected but not registered anywhere.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

func defaultOptions() options {
	return options{
		minLevel:      slog.LevelInfo,
		batchLimit:    sink.DefaultBatchLimit,
		flushInterval: time.Second,
		timeout:       10 * time.Second,
		compress:      true,
		onError: func(err error) {
			// Never route through the log facade here: the sink may be the
			// default handler and the error path must not recurse.
			fmt.Fprintf(os.Stderr, "lokisink: %v\n", err)
		},
	}
}
