package zim

import (
	"bytes"
	"io"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// Entry implements the two directory-entry variants (content and
// redirect) as a single tagged struct, distinguished by MimetypeID ==
// MimetypeRedirect. An Entry may be bound (carries a back-reference to
// the Archive it came from, enabling Read/Resolve/Mimetype) or unbound
// (a standalone value, e.g. one built by a caller for addEntry).
type Entry struct {
	archive *Archive

	MimetypeID uint16
	// MimetypeName is consulted by Writer.AddEntry/EditEntry to resolve
	// MimetypeID against the archive's MIME table; it is not persisted
	// and is ignored once the entry is read back from disk. Leave it
	// empty for redirect entries.
	MimetypeName string
	Namespace    byte
	Revision     uint32
	URL          string
	// RawTitle is the title exactly as it will be/was encoded: an empty
	// string means "same as URL". Use Title() for the effective value.
	RawTitle   string
	Parameters []byte

	// Content-entry fields. Zero when IsRedirect.
	ClusterNumber uint32
	BlobNumber    uint32

	// Redirect-entry field. Zero when !IsRedirect.
	RedirectIndex uint32
}

// IsRedirect reports whether this entry is a redirect rather than
// content.
func (e *Entry) IsRedirect() bool { return e.MimetypeID == MimetypeRedirect }

// FullURL returns the namespace-qualified URL, e.g. "C/hello".
func (e *Entry) FullURL() string {
	return string(e.Namespace) + "/" + e.URL
}

// Title returns the effective title: RawTitle if set, otherwise the URL.
func (e *Entry) Title() string {
	if e.RawTitle == "" {
		return e.URL
	}
	return e.RawTitle
}

// Bound reports whether this entry carries a live archive reference.
func (e *Entry) Bound() bool { return e.archive != nil }

// Bind attaches this entry to an archive. Binding to a different archive
// than the one already bound is a programmer error and panics, mirroring
// pyzim's AlreadyBound guard; rebinding to the same archive is a no-op.
func (e *Entry) Bind(a *Archive) {
	if e.archive != nil && e.archive != a {
		panic("zim: entry already bound to a different archive")
	}
	e.archive = a
}

// Unbind detaches this entry from its archive, if any.
func (e *Entry) Unbind() { e.archive = nil }

// Mimetype returns the entry's MIME type string. Requires the entry to
// be bound, since the mapping lives in the archive's MIME table.
func (e *Entry) Mimetype() (string, error) {
	if e.archive == nil {
		return "", ErrBindRequired
	}
	if e.IsRedirect() {
		return "", formatErrorf("redirect entries have no mimetype")
	}
	return e.archive.mimeTypes.Get(e.MimetypeID)
}

// Read returns the entry's content. Requires the entry to be bound and
// to be a content entry (call Resolve first if it might be a redirect).
func (e *Entry) Read() ([]byte, error) {
	if e.archive == nil {
		return nil, ErrBindRequired
	}
	if e.IsRedirect() {
		return nil, formatErrorf("cannot read content of a redirect entry, call Resolve() first")
	}
	cluster, err := e.archive.getClusterByIndex(e.ClusterNumber)
	if err != nil {
		return nil, err
	}
	return cluster.GetBlob(int(e.BlobNumber))
}

// Open returns a streaming reader over the entry's content, for large
// blobs that should not be materialized whole. Requires the entry to
// be bound and to be a content entry, mirroring pyzim's iter_read_blob.
func (e *Entry) Open() (io.ReadCloser, error) {
	if e.archive == nil {
		return nil, ErrBindRequired
	}
	if e.IsRedirect() {
		return nil, formatErrorf("cannot open content of a redirect entry, call Resolve() first")
	}
	cluster, err := e.archive.getClusterByIndex(e.ClusterNumber)
	if err != nil {
		return nil, err
	}
	return cluster.OpenBlob(int(e.BlobNumber))
}

// Resolve follows a redirect chain (if any) to the underlying content
// entry. Requires the entry to be bound.
func (e *Entry) Resolve() (*Entry, error) {
	if e.archive == nil {
		return nil, ErrBindRequired
	}
	return e.archive.resolveEntry(e)
}

// decodeEntry reads one directory entry from src at offset, returning the
// entry and the offset immediately following it.
func decodeEntry(src ioutil.Source, offset int64) (*Entry, int64, error) {
	mimetype, err := readU16(src, offset)
	if err != nil {
		return nil, 0, err
	}
	pos := offset + 2

	paramLen, err := readU8(src, pos)
	if err != nil {
		return nil, 0, err
	}
	pos++

	namespace, err := readU8(src, pos)
	if err != nil {
		return nil, 0, err
	}
	pos++

	revision, err := readU32(src, pos)
	if err != nil {
		return nil, 0, err
	}
	pos += 4

	e := &Entry{MimetypeID: mimetype, Namespace: namespace, Revision: revision}

	if mimetype == MimetypeRedirect {
		redirectIndex, err := readU32(src, pos)
		if err != nil {
			return nil, 0, err
		}
		pos += 4
		e.RedirectIndex = redirectIndex
	} else {
		clusterNumber, err := readU32(src, pos)
		if err != nil {
			return nil, 0, err
		}
		pos += 4
		blobNumber, err := readU32(src, pos)
		if err != nil {
			return nil, 0, err
		}
		pos += 4
		e.ClusterNumber = clusterNumber
		e.BlobNumber = blobNumber
	}

	url, next, err := readCString(src, pos)
	if err != nil {
		return nil, 0, err
	}
	pos = next
	e.URL = url

	title, next, err := readCString(src, pos)
	if err != nil {
		return nil, 0, err
	}
	pos = next
	e.RawTitle = title

	if paramLen > 0 {
		params := make([]byte, paramLen)
		if err := ioutil.ReadAt(src, pos, params); err != nil {
			return nil, 0, err
		}
		pos += int64(paramLen)
		e.Parameters = params
	}

	return e, pos, nil
}

// decodeEntryKey reads only the (namespace, url) prefix of the entry at
// offset, skipping cluster/blob/redirect fields entirely. This is what
// makes binary search over the URL pointer list cheap: each probe reads a
// handful of bytes rather than the full record.
func decodeEntryKey(src ioutil.Source, offset int64) (namespace byte, url string, err error) {
	// mimetype(2) + parameterLen(1) = 3 bytes before namespace.
	namespace, err = readU8(src, offset+3)
	if err != nil {
		return 0, "", err
	}
	// revision(4) + one u32 field (clusterNumber or redirectIndex) precede
	// the URL in both variants; redirect entries have only one such field
	// while content entries have two (clusterNumber, blobNumber). We must
	// know which variant this is to skip the right number of bytes.
	mimetype, err := readU16(src, offset)
	if err != nil {
		return 0, "", err
	}
	pos := offset + 3 + 1 + 4 // mimetype + paramLen + namespace + revision
	if mimetype == MimetypeRedirect {
		pos += 4 // redirectIndex
	} else {
		pos += 8 // clusterNumber + blobNumber
	}
	url, _, err = readCString(src, pos)
	if err != nil {
		return 0, "", err
	}
	return namespace, url, nil
}

// EncodedSize returns the exact on-disk size of this entry, needed by
// the allocator to place it precisely.
func (e *Entry) EncodedSize() int {
	size := 2 + 1 + 1 + 4 // mimetype + paramLen + namespace + revision
	if e.IsRedirect() {
		size += 4 // redirectIndex
	} else {
		size += 8 // clusterNumber + blobNumber
	}
	size += cStringSize(e.URL)
	size += cStringSize(e.RawTitle)
	size += len(e.Parameters)
	return size
}

// Encode serializes this entry to its on-disk form.
func (e *Entry) Encode() []byte {
	buf := make([]byte, 0, e.EncodedSize())
	tmp2 := make([]byte, 2)
	putU16(tmp2, e.MimetypeID)
	buf = append(buf, tmp2...)
	buf = append(buf, byte(len(e.Parameters)))
	buf = append(buf, e.Namespace)
	tmp4 := make([]byte, 4)
	putU32(tmp4, e.Revision)
	buf = append(buf, tmp4...)
	if e.IsRedirect() {
		putU32(tmp4, e.RedirectIndex)
		buf = append(buf, tmp4...)
	} else {
		putU32(tmp4, e.ClusterNumber)
		buf = append(buf, tmp4...)
		putU32(tmp4, e.BlobNumber)
		buf = append(buf, tmp4...)
	}
	buf = putCString(buf, e.URL)
	buf = putCString(buf, e.RawTitle)
	buf = append(buf, e.Parameters...)
	return buf
}

// urlKeyLess reports whether the (namespace, url) key of the entry at
// offset in src sorts strictly before the target (namespace, url) pair.
func urlKeyLess(src ioutil.Source, offset int64, namespace byte, url string) (bool, error) {
	ns, u, err := decodeEntryKey(src, offset)
	if err != nil {
		return false, err
	}
	return compareNamespacedKey(ns, []byte(u), namespace, []byte(url)) < 0, nil
}

// compareNamespacedKey orders first by namespace byte, then by raw byte
// comparison of the key (URL or title) — no locale-aware collation.
func compareNamespacedKey(nsA byte, keyA []byte, nsB byte, keyB []byte) int {
	if nsA != nsB {
		if nsA < nsB {
			return -1
		}
		return 1
	}
	return bytes.Compare(keyA, keyB)
}
