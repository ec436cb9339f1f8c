package zim

import "sync/atomic"

// Metrics holds lightweight counters for cache effectiveness and I/O
// volume, exposed for diagnostics via Archive.Metrics. Fields
// are updated with atomic ops so a Metrics value can be read from a
// different goroutine than the Archive it instruments, even though the
// Archive itself is not concurrency-safe.
type Metrics struct {
	EntryCacheHits   atomic.Int64
	EntryCacheMisses atomic.Int64

	ClusterCacheHits   atomic.Int64
	ClusterCacheMisses atomic.Int64

	BytesRead    atomic.Int64
	BlobsRead    atomic.Int64
	ClustersRead atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy of Metrics suitable for
// printing or serializing.
type Snapshot struct {
	EntryCacheHits, EntryCacheMisses     int64
	ClusterCacheHits, ClusterCacheMisses int64
	BytesRead, BlobsRead, ClustersRead   int64
}

// Snapshot reads every counter into a plain struct.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		EntryCacheHits:     m.EntryCacheHits.Load(),
		EntryCacheMisses:   m.EntryCacheMisses.Load(),
		ClusterCacheHits:   m.ClusterCacheHits.Load(),
		ClusterCacheMisses: m.ClusterCacheMisses.Load(),
		BytesRead:          m.BytesRead.Load(),
		BlobsRead:          m.BlobsRead.Load(),
		ClustersRead:       m.ClustersRead.Load(),
	}
}

// EntryCacheHitRate returns the fraction of entry lookups served from
// cache, or 0 if there have been no lookups yet.
func (s Snapshot) EntryCacheHitRate() float64 {
	total := s.EntryCacheHits + s.EntryCacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.EntryCacheHits) / float64(total)
}

// ClusterCacheHitRate returns the fraction of cluster lookups served
// from cache, or 0 if there have been no lookups yet.
func (s Snapshot) ClusterCacheHitRate() float64 {
	total := s.ClusterCacheHits + s.ClusterCacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.ClusterCacheHits) / float64(total)
}
