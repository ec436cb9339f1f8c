package zim

import (
	"log/slog"
	"sort"
)

// This file implements a free-space allocator tracking unused byte
// ranges within the archive file so the writer can reuse holes left by
// removed or relocated directory entries, the MIME table, and the
// pointer lists before growing the file. Cluster body bytes are
// deliberately never released back to this allocator: cluster length is
// inferred at read time from the next cluster's pointer-list offset, so
// reusing a middle cluster's bytes for something else would corrupt
// that inference for every archive reader unless clusters were also
// renumbered, which is out of scope here. Grounded on pyzim/spaceallocator.py's
// SpaceAllocator (allocate()/mark_free(), which
// coalesces adjacent ranges on release).

// freeRange is a half-open byte range [Offset, Offset+Size) available for
// reuse.
type freeRange struct {
	Offset uint64
	Size   uint64
}

// Allocator tracks free byte ranges within an archive file and the
// current end-of-file offset, handing out placement for new or relocated
// records. Not safe for concurrent use; callers serialize through the
// writer's lock.
type Allocator struct {
	strategy AllocStrategy
	coalesce bool
	fileEnd  uint64
	free     []freeRange // sorted by Offset, maintained non-overlapping
	logger   *slog.Logger
}

// NewAllocator creates an allocator over a file currently fileEnd bytes
// long, with no free ranges yet known.
func NewAllocator(fileEnd uint64, strategy AllocStrategy, coalesce bool) *Allocator {
	return &Allocator{strategy: strategy, coalesce: coalesce, fileEnd: fileEnd, logger: discardLogger()}
}

// SetLogger installs the logger used for allocation/release diagnostics.
// A nil logger is treated as discarding.
func (a *Allocator) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = discardLogger()
	}
	a.logger = logger
}

// FileEnd returns the current logical end of the file.
func (a *Allocator) FileEnd() uint64 { return a.fileEnd }

// SeedFromRegions initializes the free list and file end from a set of
// known-occupied byte ranges (header, entries, clusters, mime table,
// pointer lists already on disk), marking every gap between them as
// free. Called once when opening an existing archive for writing, akin
// to pyzim's opening-time scan for reclaimable space, so edits reuse
// holes left by whichever writer produced the file rather than treating
// it as fully packed.
func (a *Allocator) SeedFromRegions(regions []freeRange, fileEnd uint64) {
	sorted := append([]freeRange(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	cursor := uint64(0)
	for _, r := range sorted {
		if r.Size == 0 {
			continue
		}
		if r.Offset > cursor {
			a.insertFree(freeRange{Offset: cursor, Size: r.Offset - cursor})
		}
		if end := r.Offset + r.Size; end > cursor {
			cursor = end
		}
	}
	if fileEnd > cursor {
		a.insertFree(freeRange{Offset: cursor, Size: fileEnd - cursor})
	}
	a.fileEnd = fileEnd
	a.logger.Debug("allocator seeded", "fileEnd", fileEnd, "freeRanges", len(a.free), "freeBytes", a.FreeBytes())
}

// Allocate reserves size bytes and returns their starting offset. It
// satisfies the request from a free range per the configured strategy
// when possible, otherwise it appends to the end of the file.
func (a *Allocator) Allocate(size uint64) uint64 {
	if size == 0 {
		return a.fileEnd
	}
	idx := a.findCandidate(size)
	if idx < 0 {
		offset := a.fileEnd
		a.fileEnd += size
		a.logger.Debug("allocate", "offset", offset, "size", size, "reused", false)
		return offset
	}
	r := a.free[idx]
	offset := r.Offset
	if r.Size == size {
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	} else {
		a.free[idx] = freeRange{Offset: r.Offset + size, Size: r.Size - size}
	}
	a.logger.Debug("allocate", "offset", offset, "size", size, "reused", true)
	return offset
}

// findCandidate returns the index of the free range to use for a
// request of size bytes, or -1 if none is suitable.
func (a *Allocator) findCandidate(size uint64) int {
	best := -1
	for i, r := range a.free {
		if r.Size < size {
			continue
		}
		if a.strategy == AllocFirstFit {
			return i
		}
		// AllocBestFit: track the smallest sufficient block.
		if best < 0 || r.Size < a.free[best].Size {
			best = i
		}
	}
	return best
}

// Release marks [offset, offset+size) as free for reuse. If the range
// abuts the current end of file, the file end retreats instead of
// recording a trailing free range, matching the allocator preferring
// truncation over bookkeeping at EOF.
func (a *Allocator) Release(offset, size uint64) {
	if size == 0 {
		return
	}
	a.logger.Debug("release", "offset", offset, "size", size)
	if offset+size == a.fileEnd {
		a.fileEnd = offset
		a.shrinkTrailingFree()
		return
	}
	a.insertFree(freeRange{Offset: offset, Size: size})
}

// shrinkTrailingFree retracts fileEnd further if the new end now also
// abuts a recorded free range, and repeats until no further retraction
// applies. Keeps the free list from accumulating a range that is really
// just unused tail space.
func (a *Allocator) shrinkTrailingFree() {
	for len(a.free) > 0 {
		last := a.free[len(a.free)-1]
		if last.Offset+last.Size != a.fileEnd {
			return
		}
		a.fileEnd = last.Offset
		a.free = a.free[:len(a.free)-1]
	}
}

// insertFree inserts r into the sorted free list, coalescing with
// adjacent ranges when the allocator is configured to do so.
func (a *Allocator) insertFree(r freeRange) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Offset >= r.Offset })
	a.free = append(a.free, freeRange{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = r

	if !a.coalesce {
		return
	}
	// Merge with the following neighbor first so the index of the
	// preceding neighbor (if any) stays valid.
	if i+1 < len(a.free) && a.free[i].Offset+a.free[i].Size == a.free[i+1].Offset {
		a.free[i].Size += a.free[i+1].Size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].Offset+a.free[i-1].Size == a.free[i].Offset {
		a.free[i-1].Size += a.free[i].Size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// Snapshot returns a copy of the current free ranges, sorted by offset,
// for diagnostics and testing conservation invariants.
func (a *Allocator) Snapshot() []freeRange {
	return append([]freeRange(nil), a.free...)
}

// FreeBytes returns the total number of bytes currently marked free.
func (a *Allocator) FreeBytes() uint64 {
	var total uint64
	for _, r := range a.free {
		total += r.Size
	}
	return total
}
