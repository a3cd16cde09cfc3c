package plotstream

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordChunkQuery is called after each chunk query.
	// rows is the number of rows returned, duration is the total time taken,
	// err is nil if successful.
	RecordChunkQuery(rows int, duration time.Duration, err error)

	// RecordCacheHit is called when a chunk is served from the cache.
	RecordCacheHit()

	// RecordCacheMiss is called when a chunk is absent from the cache.
	RecordCacheMiss()

	// RecordFetch is called after each source fetch.
	// rows is the number of rows fetched, duration is the time taken,
	// err is nil if successful.
	RecordFetch(rows int, duration time.Duration, err error)

	// RecordCacheWrite is called after each cache entry write.
	// bytes is the entry size on disk; zero when the key already existed.
	RecordCacheWrite(bytes int64, err error)

	// RecordRangeFallback is called after each fallback range scan.
	RecordRangeFallback(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordChunkQuery(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCacheHit()                            {}
func (NoopMetricsCollector) RecordCacheMiss()                           {}
func (NoopMetricsCollector) RecordFetch(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordCacheWrite(int64, error)              {}
func (NoopMetricsCollector) RecordRangeFallback(time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ChunkQueryCount      atomic.Int64
	ChunkQueryErrors     atomic.Int64
	ChunkQueryRows       atomic.Int64
	ChunkQueryTotalNanos atomic.Int64
	CacheHits            atomic.Int64
	CacheMisses          atomic.Int64
	FetchCount           atomic.Int64
	FetchErrors          atomic.Int64
	FetchedRows          atomic.Int64
	FetchTotalNanos      atomic.Int64
	CacheWriteCount      atomic.Int64
	CacheWriteErrors     atomic.Int64
	CacheWriteBytes      atomic.Int64
	RangeFallbackCount   atomic.Int64
	RangeFallbackErrors  atomic.Int64
}

// RecordChunkQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChunkQuery(rows int, duration time.Duration, err error) {
	b.ChunkQueryCount.Add(1)
	b.ChunkQueryRows.Add(int64(rows))
	b.ChunkQueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ChunkQueryErrors.Add(1)
	}
}

// RecordCacheHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheHit() {
	b.CacheHits.Add(1)
}

// RecordCacheMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheMiss() {
	b.CacheMisses.Add(1)
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(rows int, duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchedRows.Add(int64(rows))
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// RecordCacheWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheWrite(bytes int64, err error) {
	b.CacheWriteCount.Add(1)
	b.CacheWriteBytes.Add(bytes)
	if err != nil {
		b.CacheWriteErrors.Add(1)
	}
}

// RecordRangeFallback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeFallback(duration time.Duration, err error) {
	b.RangeFallbackCount.Add(1)
	if err != nil {
		b.RangeFallbackErrors.Add(1)
	}
}

// Snapshot returns a snapshot of current metrics.
func (b *BasicMetricsCollector) Snapshot() BasicMetricsStats {
	return BasicMetricsStats{
		ChunkQueryCount:     b.ChunkQueryCount.Load(),
		ChunkQueryErrors:    b.ChunkQueryErrors.Load(),
		ChunkQueryRows:      b.ChunkQueryRows.Load(),
		ChunkQueryAvgNanos:  avgNanos(&b.ChunkQueryTotalNanos, &b.ChunkQueryCount),
		CacheHits:           b.CacheHits.Load(),
		CacheMisses:         b.CacheMisses.Load(),
		FetchCount:          b.FetchCount.Load(),
		FetchErrors:         b.FetchErrors.Load(),
		FetchedRows:         b.FetchedRows.Load(),
		FetchAvgNanos:       avgNanos(&b.FetchTotalNanos, &b.FetchCount),
		CacheWriteCount:     b.CacheWriteCount.Load(),
		CacheWriteErrors:    b.CacheWriteErrors.Load(),
		CacheWriteBytes:     b.CacheWriteBytes.Load(),
		RangeFallbackCount:  b.RangeFallbackCount.Load(),
		RangeFallbackErrors: b.RangeFallbackErrors.Load(),
	}
}

func avgNanos(total, count *atomic.Int64) int64 {
	c := count.Load()
	if c == 0 {
		return 0
	}
	return total.Load() / c
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ChunkQueryCount     int64
	ChunkQueryErrors    int64
	ChunkQueryRows      int64
	ChunkQueryAvgNanos  int64
	CacheHits           int64
	CacheMisses         int64
	FetchCount          int64
	FetchErrors         int64
	FetchedRows         int64
	FetchAvgNanos       int64
	CacheWriteCount     int64
	CacheWriteErrors    int64
	CacheWriteBytes     int64
	RangeFallbackCount  int64
	RangeFallbackErrors int64
}
