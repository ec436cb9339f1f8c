package zim

import (
	"fmt"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// MimeTypeList maps MIME-type indices (as referenced from directory
// entries) to their string form. It preserves index assignment on edit:
// directory entries reference MIMEs by position, so appending a new MIME
// must never renumber an existing one.
type MimeTypeList struct {
	types []string
	index map[string]uint16
}

// NewMimeTypeList builds a MimeTypeList from an ordered slice of MIME
// strings, as read from disk or accumulated while writing.
func NewMimeTypeList(types []string) *MimeTypeList {
	m := &MimeTypeList{
		types: append([]string(nil), types...),
		index: make(map[string]uint16, len(types)),
	}
	for i, t := range types {
		m.index[t] = uint16(i)
	}
	return m
}

// ReadMimeTypeList reads the NUL-terminated, empty-string-terminated MIME
// table starting at pos.
func ReadMimeTypeList(src ioutil.Source, pos uint64) (*MimeTypeList, error) {
	var types []string
	offset := int64(pos)
	for {
		s, next, err := readCString(src, offset)
		if err != nil {
			return nil, fmt.Errorf("read mimetype table at offset %d: %w", offset, err)
		}
		if s == "" {
			break
		}
		types = append(types, s)
		offset = next
	}
	return NewMimeTypeList(types), nil
}

// Len returns the number of registered MIME types.
func (m *MimeTypeList) Len() int { return len(m.types) }

// Get returns the MIME string for index i.
func (m *MimeTypeList) Get(i uint16) (string, error) {
	if int(i) >= len(m.types) {
		return "", formatErrorf("mimetype index %d out of range (table has %d entries)", i, len(m.types))
	}
	return m.types[i], nil
}

// IndexOf returns the index of mimetype, registering it at the end of the
// table if it is not already present. Existing indices are never
// reassigned.
func (m *MimeTypeList) IndexOf(mimetype string) uint16 {
	if i, ok := m.index[mimetype]; ok {
		return i
	}
	i := uint16(len(m.types))
	m.types = append(m.types, mimetype)
	m.index[mimetype] = i
	return i
}

// EncodedSize returns the on-disk size of the table, including the final
// empty-string terminator.
func (m *MimeTypeList) EncodedSize() int {
	size := 1 // final empty-string NUL
	for _, t := range m.types {
		size += cStringSize(t)
	}
	return size
}

// Encode serializes the table to its on-disk form: each MIME type as a
// NUL-terminated string, followed by an empty NUL-terminated string.
func (m *MimeTypeList) Encode() []byte {
	buf := make([]byte, 0, m.EncodedSize())
	for _, t := range m.types {
		buf = putCString(buf, t)
	}
	buf = append(buf, 0)
	return buf
}

// List returns a copy of the ordered MIME type slice.
func (m *MimeTypeList) List() []string {
	return append([]string(nil), m.types...)
}
