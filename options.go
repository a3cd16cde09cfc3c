package plotstream

import (
	"github.com/tercen/ggrs-plot-operator-sub000/chunkstore"
	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

type options struct {
	logger      *Logger
	metrics     MetricsCollector
	store       *chunkstore.Store
	compression frame.CompressionType
	fetchRate   float64
	fetchBurst  int
}

// Option configures adapter and page loop behavior.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
		compression: frame.CompressionZSTD,
	}
}

func applyOptions(opts ...Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger configures structured logging.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures metrics collection.
//
// If nil is passed, metrics are disabled.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithStore injects an externally owned chunk store. The adapter will not
// clear it; lifecycle stays with the caller. The page loop uses this to
// share one store across all pages of a session.
func WithStore(s *chunkstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithCompression sets the block compression of new cache entries. The
// default is ZSTD.
func WithCompression(c frame.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithFetchRate caps source fetches at rowsPerSec rows per second. burst
// below one defaults to one second's worth of rows. Non-positive rates
// disable limiting.
func WithFetchRate(rowsPerSec float64, burst int) Option {
	return func(o *options) {
		o.fetchRate = rowsPerSec
		o.fetchBurst = burst
	}
}
