package zim

import (
	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// This file implements the three parallel sorted index arrays (URL,
// title, cluster pointer lists). Lookups read pointers directly from
// the backing source at pos + i*width, computing an offset rather than
// materializing the whole index. The writer-side mutable variant
// (MutablePointerList) fully materializes the list in memory instead,
// since edits need insert/remove/set and a sorted vector of offsets is
// cheap enough to hold entirely given typical archive sizes.

// PointerWidth is the on-disk width of one pointer list entry, in bytes.
type PointerWidth int

const (
	// PointerWidth32 is used by the title pointer list, whose entries
	// are indices into the URL pointer list.
	PointerWidth32 PointerWidth = 4
	// PointerWidth64 is used by the URL and cluster pointer lists,
	// whose entries are absolute file offsets.
	PointerWidth64 PointerWidth = 8
)

// PointerListView is a read-only, lazily-read view over a pointer list
// stored in src at [pos, pos+count*width). It never materializes the
// full list; each Get reads exactly one entry.
type PointerListView struct {
	src   ioutil.Source
	pos   int64
	width PointerWidth
	count int
}

// NewPointerListView constructs a view over count entries of the given
// width starting at pos.
func NewPointerListView(src ioutil.Source, pos int64, width PointerWidth, count int) *PointerListView {
	return &PointerListView{src: src, pos: pos, width: width, count: count}
}

// Len returns the number of pointers in the list.
func (v *PointerListView) Len() int { return v.count }

// Get returns the pointer at index i.
func (v *PointerListView) Get(i int) (uint64, error) {
	if i < 0 || i >= v.count {
		return 0, formatErrorf("pointer index %d out of range [0, %d)", i, v.count)
	}
	offset := v.pos + int64(i)*int64(v.width)
	switch v.width {
	case PointerWidth32:
		val, err := readU32(v.src, offset)
		return uint64(val), err
	default:
		return readU64(v.src, offset)
	}
}

// MutablePointerList is a fully in-memory pointer list supporting
// insert/remove/set for the writer's editing needs. Sort order is the
// caller's responsibility.
type MutablePointerList struct {
	width    PointerWidth
	pointers []uint64
}

// NewMutablePointerList creates an empty mutable pointer list of the
// given width.
func NewMutablePointerList(width PointerWidth) *MutablePointerList {
	return &MutablePointerList{width: width}
}

// LoadMutablePointerList materializes a pointer list view into a mutable
// in-memory list, for editing.
func LoadMutablePointerList(view *PointerListView) (*MutablePointerList, error) {
	m := &MutablePointerList{width: view.width, pointers: make([]uint64, view.count)}
	for i := 0; i < view.count; i++ {
		p, err := view.Get(i)
		if err != nil {
			return nil, err
		}
		m.pointers[i] = p
	}
	return m, nil
}

// Len returns the number of pointers.
func (m *MutablePointerList) Len() int { return len(m.pointers) }

// Get returns the pointer at index i.
func (m *MutablePointerList) Get(i int) uint64 { return m.pointers[i] }

// Set overwrites the pointer at index i.
func (m *MutablePointerList) Set(i int, pointer uint64) { m.pointers[i] = pointer }

// Insert inserts pointer at index i, shifting subsequent entries up.
func (m *MutablePointerList) Insert(i int, pointer uint64) {
	m.pointers = append(m.pointers, 0)
	copy(m.pointers[i+1:], m.pointers[i:])
	m.pointers[i] = pointer
}

// Remove deletes the pointer at index i, shifting subsequent entries down.
func (m *MutablePointerList) Remove(i int) {
	m.pointers = append(m.pointers[:i], m.pointers[i+1:]...)
}

// Append adds pointer to the end of the list.
func (m *MutablePointerList) Append(pointer uint64) {
	m.pointers = append(m.pointers, pointer)
}

// All returns the pointers as a slice, for iteration.
func (m *MutablePointerList) All() []uint64 {
	return append([]uint64(nil), m.pointers...)
}

// EncodedSize returns the on-disk size of the list in bytes.
func (m *MutablePointerList) EncodedSize() int {
	return len(m.pointers) * int(m.width)
}

// Encode serializes the list to its on-disk form.
func (m *MutablePointerList) Encode() []byte {
	buf := make([]byte, m.EncodedSize())
	for i, p := range m.pointers {
		off := i * int(m.width)
		switch m.width {
		case PointerWidth32:
			putU32(buf[off:], uint32(p))
		default:
			putU64(buf[off:], p)
		}
	}
	return buf
}

// find returns the smallest index i such that less(i) is false, i.e. the
// insertion point for a value whose comparison against pointers[i] is
// captured by less. It mirrors sort.Search / pyzim's pointerlist.binarysearch.
func find(n int, less func(i int) bool) int {
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if less(mid) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
