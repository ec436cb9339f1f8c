// Package ioutil provides small helpers for reading structured data out of
// a random-access byte source at explicit offsets.
package ioutil

import (
	"fmt"
	"io"
)

// Source is the minimal random-access byte source the zim codec needs.
// *os.File and *bytes.Reader both satisfy it; an archive opened over an
// mmap-backed store does too.
type Source interface {
	io.ReaderAt
}

// ReadAt reads exactly len(buf) bytes from src starting at offset, treating
// a short read as an error. Codec readers never seek the underlying source
// implicitly; every read is offset-addressed.
func ReadAt(src Source, offset int64, buf []byte) error {
	n, err := src.ReadAt(buf, offset)
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return fmt.Errorf("read %d bytes at offset %d: %w", len(buf), offset, err)
	}
	if n != len(buf) {
		return fmt.Errorf("short read at offset %d: got %d of %d bytes", offset, n, len(buf))
	}
	return nil
}

// ReadUntilZero reads bytes from src starting at offset until (and
// excluding) a NUL byte, returning the bytes read and the offset of the
// byte following the NUL. It reads in fixed 64-byte chunks to avoid one
// syscall per byte for long strings.
func ReadUntilZero(src Source, offset int64) ([]byte, int64, error) {
	const chunkSize = 64
	var result []byte
	pos := offset
	buf := make([]byte, chunkSize)
	for {
		n, err := src.ReadAt(buf, pos)
		if n == 0 {
			if err != nil {
				return nil, 0, fmt.Errorf("read NUL-terminated string at offset %d: %w", offset, err)
			}
			return nil, 0, fmt.Errorf("read NUL-terminated string at offset %d: no data", offset)
		}
		for i := 0; i < n; i++ {
			if buf[i] == 0 {
				result = append(result, buf[:i]...)
				return result, pos + int64(i) + 1, nil
			}
		}
		result = append(result, buf[:n]...)
		pos += int64(n)
		if err == io.EOF {
			return nil, 0, fmt.Errorf("read NUL-terminated string at offset %d: unterminated string at end of source", offset)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read NUL-terminated string at offset %d: %w", offset, err)
		}
	}
}
