package zim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteIntegers(t *testing.T) {
	buf := make([]byte, 8)
	putU16(buf, 0xABCD)
	got, err := readU16(bytes.NewReader(buf), 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xABCD), got)

	putU32(buf, 0xDEADBEEF)
	gotU32, err := readU32(bytes.NewReader(buf), 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), gotU32)

	putU64(buf, 0x0123456789ABCDEF)
	gotU64, err := readU64(bytes.NewReader(buf), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789ABCDEF), gotU64)
}

func TestCString(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"simple", "hello"},
		{"with slash", "C/some/path.html"},
		{"unicode", "héllo wörld"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := bytes.NewReader(putCString(nil, tc.in))
			got, next, err := readCString(src, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.in, got)
			assert.Equal(t, cStringSize(tc.in), int(next))
		})
	}
}

func TestReadCStringInvalidUTF8(t *testing.T) {
	src := bytes.NewReader([]byte{0xff, 0xfe, 0x00})
	_, _, err := readCString(src, 0)
	assert.Error(t, err)
}
