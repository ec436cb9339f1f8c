package zim

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader() Header {
	return Header{
		MagicNumber:        Magic,
		MajorVersion:       6,
		MinorVersion:       1,
		EntryCount:         10,
		ClusterCount:       2,
		URLPointerPosition: HeaderSize,
		TitlePointerPos:    HeaderSize + 80,
		ClusterPointerPos:  HeaderSize + 120,
		MimeListPosition:   HeaderSize + 136,
		MainPage:           NoEntry,
		LayoutPage:         NoEntry,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := validHeader()
	encoded := h.Encode()
	require.Len(t, encoded, HeaderSize)

	got, err := ReadHeader(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderCheckCompatible(t *testing.T) {
	t.Run("rejects bad magic", func(t *testing.T) {
		h := validHeader()
		h.MagicNumber = 0
		assert.ErrorIs(t, h.CheckCompatible(), ErrUnsupportedFormat)
	})

	t.Run("rejects unsupported major version", func(t *testing.T) {
		h := validHeader()
		h.MajorVersion = 42
		assert.ErrorIs(t, h.CheckCompatible(), ErrUnsupportedFormat)
	})

	t.Run("rejects namespace-less minor version", func(t *testing.T) {
		h := validHeader()
		h.MinorVersion = 0
		err := h.CheckCompatible()
		assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	})

	t.Run("accepts the supported combination", func(t *testing.T) {
		h := validHeader()
		assert.NoError(t, h.CheckCompatible())
	})
}

func TestHeaderValidatePositions(t *testing.T) {
	h := validHeader()
	h.URLPointerPosition = 4 // inside the header itself
	_, err := ReadHeader(bytes.NewReader(h.Encode()))
	assert.Error(t, err)
}

func TestHeaderMainLayoutPages(t *testing.T) {
	h := validHeader()
	assert.False(t, h.HasMainPage())
	assert.False(t, h.HasLayoutPage())

	h.MainPage = 3
	h.LayoutPage = 7
	assert.True(t, h.HasMainPage())
	assert.True(t, h.HasLayoutPage())
}
