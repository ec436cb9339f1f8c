package zim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocatorAllocateGrowsFileWhenNoFreeRange(t *testing.T) {
	a := NewAllocator(100, AllocFirstFit, false)
	off := a.Allocate(50)
	assert.Equal(t, uint64(100), off)
	assert.Equal(t, uint64(150), a.FileEnd())
}

func TestAllocatorAllocateZeroSize(t *testing.T) {
	a := NewAllocator(100, AllocFirstFit, false)
	off := a.Allocate(0)
	assert.Equal(t, uint64(100), off)
	assert.Equal(t, uint64(100), a.FileEnd())
}

func TestAllocatorReleaseAndReuseFirstFit(t *testing.T) {
	a := NewAllocator(1000, AllocFirstFit, false)
	a.Release(100, 50) // hole at [100, 150)
	a.Release(300, 20) // hole at [300, 320)

	off := a.Allocate(10)
	assert.Equal(t, uint64(100), off, "first-fit should take the first sufficient hole")
	assert.Equal(t, uint64(1000), a.FileEnd(), "satisfied from a hole, file must not grow")
}

func TestAllocatorBestFit(t *testing.T) {
	a := NewAllocator(1000, AllocBestFit, false)
	a.Release(100, 50) // hole at [100,150)
	a.Release(300, 20) // hole at [300,320), smaller but still sufficient

	off := a.Allocate(10)
	assert.Equal(t, uint64(300), off, "best-fit should prefer the smallest sufficient hole")
}

func TestAllocatorReleaseAtEOFRetractsFileEnd(t *testing.T) {
	a := NewAllocator(1000, AllocFirstFit, false)
	a.Release(900, 100) // exactly abuts fileEnd
	assert.Equal(t, uint64(900), a.FileEnd())
	assert.Equal(t, uint64(0), a.FreeBytes(), "EOF release must retract, not record a free range")
}

func TestAllocatorReleaseAtEOFCascades(t *testing.T) {
	a := NewAllocator(1000, AllocFirstFit, false)
	a.Release(800, 100) // [800,900) interior hole first
	a.Release(900, 100) // now abuts fileEnd; should also swallow [800,900)

	assert.Equal(t, uint64(800), a.FileEnd())
	assert.Equal(t, uint64(0), a.FreeBytes())
}

func TestAllocatorCoalesceAdjacentRanges(t *testing.T) {
	a := NewAllocator(1000, AllocFirstFit, true)
	a.Release(100, 50) // [100,150)
	a.Release(150, 50) // [150,200) — adjacent, should merge

	snap := a.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, freeRange{Offset: 100, Size: 100}, snap[0])
}

func TestAllocatorNoCoalesceKeepsRangesSeparate(t *testing.T) {
	a := NewAllocator(1000, AllocFirstFit, false)
	a.Release(100, 50)
	a.Release(150, 50)

	snap := a.Snapshot()
	assert.Len(t, snap, 2)
}

func TestAllocatorSeedFromRegionsFindsGaps(t *testing.T) {
	a := NewAllocator(0, AllocFirstFit, false)
	a.SeedFromRegions([]freeRange{
		{Offset: 0, Size: 80},    // header
		{Offset: 200, Size: 50},  // an entry
		{Offset: 300, Size: 100}, // a cluster
	}, 500)

	assert.Equal(t, uint64(500), a.FileEnd())
	assert.Equal(t, uint64(120+50+100), a.FreeBytes(), "gaps [80,200), [250,300) and the tail [400,500) should all be free")

	off := a.Allocate(10)
	assert.Equal(t, uint64(80), off, "first-fit should reuse the earliest gap")
}

func TestAllocatorSeedFromRegionsIgnoresZeroSizeAndOutOfOrderInput(t *testing.T) {
	a := NewAllocator(0, AllocFirstFit, false)
	a.SeedFromRegions([]freeRange{
		{Offset: 300, Size: 100},
		{Offset: 0, Size: 80},
		{Offset: 200, Size: 0}, // degenerate, must not split a phantom gap
	}, 500)

	assert.Equal(t, uint64(220+100), a.FreeBytes(), "gaps [80,300) and [400,500), order of input must not matter")
}

func TestAllocatorSeedFromRegionsFullyPacked(t *testing.T) {
	a := NewAllocator(0, AllocFirstFit, false)
	a.SeedFromRegions([]freeRange{{Offset: 0, Size: 500}}, 500)

	assert.Equal(t, uint64(0), a.FreeBytes())
	assert.Equal(t, uint64(500), a.FileEnd())
}

func TestAllocatorConservation(t *testing.T) {
	// Allocating and releasing the same byte range must leave total
	// tracked space (fileEnd - freeBytes) unchanged.
	a := NewAllocator(1000, AllocFirstFit, true)
	before := a.FileEnd() - a.FreeBytes()

	off := a.Allocate(64)
	a.Release(off, 64)

	after := a.FileEnd() - a.FreeBytes()
	assert.Equal(t, before, after)
}
