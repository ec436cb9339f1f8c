package zim

import (
	"crypto/md5"
	"fmt"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// computeChecksum hashes the byte range [0, end) of src with MD5,
// shared by Archive.VerifyChecksum (read path) and Writer.flush (write
// path, invariant 4: "the trailer is the MD5 of every byte preceding
// it").
func computeChecksum(src ioutil.Source, end int64) ([ChecksumLength]byte, error) {
	h := md5.New()
	const chunk = 1 << 20
	buf := make([]byte, chunk)
	var pos int64
	for pos < end {
		n := chunk
		if remaining := end - pos; remaining < int64(chunk) {
			n = int(remaining)
		}
		if err := ioutil.ReadAt(src, pos, buf[:n]); err != nil {
			return [ChecksumLength]byte{}, fmt.Errorf("compute checksum: %w", err)
		}
		h.Write(buf[:n])
		pos += int64(n)
	}
	var out [ChecksumLength]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
