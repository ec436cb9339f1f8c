package zim

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// This file implements an ioutil.Source backed by a read-only memory
// mapping, used by OpenMmapped and usable with OpenSource, via golang.org/x/sys/unix's
// Mmap/Munmap, exposing the io.ReaderAt contract internal/zim already
// standardizes on rather than an (offset,length)-returns-subslice shape.

// MmapSource memory-maps a ZIM file read-only and serves reads by
// copying out of the mapping. Use OpenMmap to construct one, and Close
// it when done; an Archive built over it does not take ownership.
type MmapSource struct {
	file *os.File
	data []byte
}

// OpenMmap opens path and maps its full contents into memory for
// reading. Empty files map to a zero-length region rather than erroring,
// since mmap rejects zero-length mappings.
func OpenMmap(path string) (*MmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zim archive: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat zim archive: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return &MmapSource{file: f}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap zim archive: %w", err)
	}
	return &MmapSource{file: f, data: data}, nil
}

// ReadAt implements io.ReaderAt, copying out of the mapping (rather
// than returning a zero-copy subslice) so callers can safely retain the
// buffer past a later Close, matching the io.ReaderAt contract.
func (m *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("zim: negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the length of the mapped region.
func (m *MmapSource) Size() int64 { return int64(len(m.data)) }

// Close unmaps the region and closes the underlying file descriptor.
func (m *MmapSource) Close() error {
	if len(m.data) > 0 {
		if err := unix.Munmap(m.data); err != nil {
			m.file.Close()
			return fmt.Errorf("munmap zim archive: %w", err)
		}
		m.data = nil
	}
	return m.file.Close()
}
