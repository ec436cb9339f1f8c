package zim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeTypeListIndexOfPreservesExistingIndices(t *testing.T) {
	list := NewMimeTypeList([]string{"text/html", "text/css", "image/png"})

	assert.Equal(t, uint16(0), list.IndexOf("text/html"))
	assert.Equal(t, uint16(1), list.IndexOf("text/css"))
	assert.Equal(t, uint16(2), list.IndexOf("image/png"))

	// A brand-new MIME string appends, never reassigning an existing
	// index.
	assert.Equal(t, uint16(3), list.IndexOf("application/javascript"))
	assert.Equal(t, uint16(0), list.IndexOf("text/html"))
	assert.Equal(t, 4, list.Len())
}

func TestMimeTypeListRoundTrip(t *testing.T) {
	list := NewMimeTypeList([]string{"text/html", "text/plain", "image/jpeg"})
	encoded := list.Encode()

	var buf bytes.Buffer
	buf.Write(encoded)

	got, err := ReadMimeTypeList(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)
	assert.Equal(t, list.List(), got.List())
}

func TestMimeTypeListGetOutOfRange(t *testing.T) {
	list := NewMimeTypeList([]string{"text/html"})
	_, err := list.Get(5)
	assert.Error(t, err)
}
