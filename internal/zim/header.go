package zim

import (
	"encoding/binary"
	"fmt"
	"slices"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// Header is the fixed 80-byte metadata block at the start of a ZIM file.
// Field order matches the on-disk layout exactly.
type Header struct {
	MagicNumber        uint32
	MajorVersion       uint16
	MinorVersion       uint16
	UUID               [16]byte
	EntryCount         uint32
	ClusterCount       uint32
	URLPointerPosition uint64
	TitlePointerPos    uint64
	ClusterPointerPos  uint64
	MimeListPosition   uint64
	MainPage           uint32
	LayoutPage         uint32
	ChecksumPosition   uint64
}

// HasMainPage reports whether the main page pointer is set.
func (h Header) HasMainPage() bool { return h.MainPage != NoEntry }

// HasLayoutPage reports whether the layout page pointer is set.
func (h Header) HasLayoutPage() bool { return h.LayoutPage != NoEntry }

// CheckCompatible validates the magic number and version, returning
// ErrUnsupportedFormat if the file is not a ZIM archive this package can
// read.
func (h Header) CheckCompatible() error {
	if h.MagicNumber != Magic {
		return fmt.Errorf("%w: magic number %#x, expected %#x", ErrUnsupportedFormat, h.MagicNumber, Magic)
	}
	if !slices.Contains(SupportedMajorVersions, h.MajorVersion) {
		return fmt.Errorf("%w: major version %d not supported", ErrUnsupportedFormat, h.MajorVersion)
	}
	if h.MinorVersion != 1 {
		// Only the namespaced directory layout (minor version 1) is
		// supported; older no-namespace (minor version 0) archives are
		// rejected rather than guessed at.
		return fmt.Errorf("%w: minor version %d (namespace-less ZIM files are not supported)", ErrUnsupportedFormat, h.MinorVersion)
	}
	return nil
}

// ReadHeader reads and validates the 80-byte header at offset 0 of src.
func ReadHeader(src ioutil.Source) (Header, error) {
	return readHeaderAt(src, 0)
}

func readHeaderAt(src ioutil.Source, base int64) (Header, error) {
	var buf [HeaderSize]byte
	if err := ioutil.ReadAt(src, base, buf[:]); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	h := decodeHeader(buf[:])
	if err := h.CheckCompatible(); err != nil {
		return Header{}, err
	}
	if err := h.validatePositions(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// validatePositions checks that the URL, title and cluster pointer list
// positions and the MIME table position point past the header. The
// checksum position is not checked.
func (h Header) validatePositions() error {
	for name, pos := range map[string]uint64{
		"urlPtrPos":     h.URLPointerPosition,
		"titlePtrPos":   h.TitlePointerPos,
		"clusterPtrPos": h.ClusterPointerPos,
		"mimeListPos":   h.MimeListPosition,
	} {
		if pos < HeaderSize {
			return formatErrorf("header field %s points inside the header (%d < %d)", name, pos, HeaderSize)
		}
	}
	return nil
}

func decodeHeader(buf []byte) Header {
	var h Header
	h.MagicNumber = binary.LittleEndian.Uint32(buf[0:4])
	h.MajorVersion = binary.LittleEndian.Uint16(buf[4:6])
	h.MinorVersion = binary.LittleEndian.Uint16(buf[6:8])
	copy(h.UUID[:], buf[8:24])
	h.EntryCount = binary.LittleEndian.Uint32(buf[24:28])
	h.ClusterCount = binary.LittleEndian.Uint32(buf[28:32])
	h.URLPointerPosition = binary.LittleEndian.Uint64(buf[32:40])
	h.TitlePointerPos = binary.LittleEndian.Uint64(buf[40:48])
	h.ClusterPointerPos = binary.LittleEndian.Uint64(buf[48:56])
	h.MimeListPosition = binary.LittleEndian.Uint64(buf[56:64])
	h.MainPage = binary.LittleEndian.Uint32(buf[64:68])
	h.LayoutPage = binary.LittleEndian.Uint32(buf[68:72])
	h.ChecksumPosition = binary.LittleEndian.Uint64(buf[72:80])
	return h
}

// Encode serializes the header into its fixed 80-byte on-disk form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	putU32(buf[0:4], h.MagicNumber)
	putU16(buf[4:6], h.MajorVersion)
	putU16(buf[6:8], h.MinorVersion)
	copy(buf[8:24], h.UUID[:])
	putU32(buf[24:28], h.EntryCount)
	putU32(buf[28:32], h.ClusterCount)
	putU64(buf[32:40], h.URLPointerPosition)
	putU64(buf[40:48], h.TitlePointerPos)
	putU64(buf[48:56], h.ClusterPointerPos)
	putU64(buf[56:64], h.MimeListPosition)
	putU32(buf[64:68], h.MainPage)
	putU32(buf[68:72], h.LayoutPage)
	putU64(buf[72:80], h.ChecksumPosition)
	return buf
}
