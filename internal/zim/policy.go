package zim

import (
	"io"
	"log/slog"
)

// ClusterRepresentation selects how a decompressed cluster body is kept
// in memory.
type ClusterRepresentation int

const (
	// ClusterOffsetOnly keeps the parsed offset table and reads blob
	// bytes on demand: straight from the file for uncompressed
	// clusters, from the decompressed body held in memory for
	// compressed ones, so blobs can be read in any order.
	ClusterOffsetOnly ClusterRepresentation = iota
	// ClusterInMemory fully materializes every blob up front.
	ClusterInMemory
	// ClusterStreaming decompresses into a bounded window, supporting
	// sequential scans with constant memory.
	ClusterStreaming
)

// AllocStrategy selects how the space allocator chooses among candidate
// free ranges.
type AllocStrategy int

const (
	// AllocFirstFit returns the first free range large enough.
	AllocFirstFit AllocStrategy = iota
	// AllocBestFit returns the smallest free range large enough.
	AllocBestFit
)

// Policy is a plain configuration record recognized by every component
// in this package: caches, the cluster codec, the allocator, and the
// writer. Grounded on pyzim/policy.py's Policy class (itself a plain
// dataclass-like object with named presets) and on choosing behavior
// via constructor parameters rather than a global.
type Policy struct {
	// EntryCacheCapacity is the number of entries the entry cache
	// holds. 0 disables entry caching.
	EntryCacheCapacity int
	// ClusterCacheCapacity is the number of clusters the cluster
	// cache holds. 0 disables cluster caching.
	ClusterCacheCapacity int
	// ClusterRepresentationForRead selects the in-memory
	// representation chosen when a cluster is read.
	ClusterRepresentationForRead ClusterRepresentation
	// AllocStrategy selects first-fit or best-fit allocation.
	AllocStrategy AllocStrategy
	// CoalesceFreeRanges merges adjacent free ranges on release.
	CoalesceFreeRanges bool
	// RedirectMaxDepth bounds redirect chain resolution.
	RedirectMaxDepth int
	// VerifyChecksumOnOpen checks the MD5 trailer against the
	// archive's content when opening.
	VerifyChecksumOnOpen bool
	// TruncateAfterWrite truncates the file to checksumPos+16 on
	// flush.
	TruncateAfterWrite bool

	// DisabledCompressionTags simulates codecs that are not compiled
	// in, for testing the ErrUnsupportedCompression path without
	// removing a real dependency.
	DisabledCompressionTags []CompressionTag

	// Logger receives structured diagnostics from the allocator,
	// cluster codec, and writer. Defaults to a discarding logger so
	// the library stays silent unless a caller opts in.
	Logger *slog.Logger
}

// DefaultPolicy returns pyzim's DEFAULT_POLICY equivalent: moderate
// caching, offset-only clusters, first-fit allocation with coalescing,
// and a silent logger.
func DefaultPolicy() Policy {
	return Policy{
		EntryCacheCapacity:           256,
		ClusterCacheCapacity:         32,
		ClusterRepresentationForRead: ClusterOffsetOnly,
		AllocStrategy:                AllocFirstFit,
		CoalesceFreeRanges:           true,
		RedirectMaxDepth:             DefaultRedirectMaxDepth,
		VerifyChecksumOnOpen:         false,
		TruncateAfterWrite:           true,
		Logger:                       discardLogger(),
	}
}

// LowMemoryPolicy favors minimal RAM usage during decompression:
// streaming cluster reads and small caches. Mirrors pyzim's
// LOW_RAM_DECOMP_POLICY.
func LowMemoryPolicy() Policy {
	p := DefaultPolicy()
	p.ClusterRepresentationForRead = ClusterStreaming
	p.EntryCacheCapacity = 32
	p.ClusterCacheCapacity = 2
	return p
}

// HighPerformancePolicy favors raw throughput over memory: clusters are
// fully materialized and caches are large. Mirrors pyzim's
// HIGH_PERFORMANCE_DECOMP_POLICY.
func HighPerformancePolicy() Policy {
	p := DefaultPolicy()
	p.ClusterRepresentationForRead = ClusterInMemory
	p.EntryCacheCapacity = 4096
	p.ClusterCacheCapacity = 512
	return p
}

// normalize fills in zero-valued fields that must have a sane default,
// called once when an Archive is opened.
func (p *Policy) normalize() {
	if p.RedirectMaxDepth == 0 {
		p.RedirectMaxDepth = DefaultRedirectMaxDepth
	}
	if p.Logger == nil {
		p.Logger = discardLogger()
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
