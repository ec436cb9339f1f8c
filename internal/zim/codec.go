package zim

import (
	"encoding/binary"
	"unicode/utf8"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// This file implements fixed-width little-endian integer codecs,
// NUL-terminated string codecs, and raw byte-slice reads, all
// offset-addressed against an ioutil.Source. The on-disk byte order for
// ZIM is little-endian throughout; each decode/encode pair follows a
// "Marshal into a caller-provided slice" shape to avoid per-field
// allocation.

func readU8(src ioutil.Source, offset int64) (uint8, error) {
	var buf [1]byte
	if err := ioutil.ReadAt(src, offset, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readU16(src ioutil.Source, offset int64) (uint16, error) {
	var buf [2]byte
	if err := ioutil.ReadAt(src, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(src ioutil.Source, offset int64) (uint32, error) {
	var buf [4]byte
	if err := ioutil.ReadAt(src, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(src ioutil.Source, offset int64) (uint64, error) {
	var buf [8]byte
	if err := ioutil.ReadAt(src, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func putU16(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func putU32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func putU64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }

// leUint32 and leUint64 decode directly from an in-memory buffer rather
// than through an ioutil.Source, for callers (e.g. cluster offset
// tables) that already hold the bytes.
func leUint32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }
func leUint64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }

// readCString reads a NUL-terminated, UTF-8 validated string starting at
// offset, returning the decoded string and the offset of the byte past
// the terminator.
func readCString(src ioutil.Source, offset int64) (string, int64, error) {
	raw, next, err := ioutil.ReadUntilZero(src, offset)
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(raw) {
		return "", 0, formatErrorf("invalid UTF-8 string at offset %d", offset)
	}
	return string(raw), next, nil
}

// cStringSize returns the on-disk size of s encoded as a NUL-terminated
// string: its byte length plus one terminator byte.
func cStringSize(s string) int {
	return len(s) + 1
}

// putCString appends the NUL-terminated encoding of s to dst, returning
// the extended slice.
func putCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}
