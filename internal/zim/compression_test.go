package zim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRegistryRoundTrip(t *testing.T) {
	testCases := []CompressionTag{
		CompressionNone1,
		CompressionNone2,
		CompressionXZ,
		CompressionZstd,
		CompressionZstdExtended,
	}

	for _, tag := range testCases {
		t.Run(tag.String(), func(t *testing.T) {
			r := NewCompressionRegistry()
			data := []byte("the quick brown fox jumps over the lazy dog, repeated: " +
				"the quick brown fox jumps over the lazy dog")

			compressed, err := r.EncodeAll(tag, data)
			require.NoError(t, err)

			decoded, err := r.DecodeAll(tag, compressed)
			require.NoError(t, err)
			assert.Equal(t, data, decoded)
		})
	}
}

func TestCompressionRegistryDisable(t *testing.T) {
	r := NewCompressionRegistry()
	r.Disable(CompressionZstd)

	_, err := r.EncodeAll(CompressionZstd, []byte("data"))
	assert.True(t, errors.Is(err, ErrUnsupportedCompression))

	_, err = r.DecodeAll(CompressionZstd, []byte("data"))
	assert.True(t, errors.Is(err, ErrUnsupportedCompression))

	// An unrelated tag remains usable.
	_, err = r.EncodeAll(CompressionXZ, []byte("data"))
	assert.NoError(t, err)
}

func TestCompressionRegistryUnknownTag(t *testing.T) {
	r := NewCompressionRegistry()
	_, err := r.Decoder(CompressionTag(99), nil)
	assert.True(t, errors.Is(err, ErrUnsupportedCompression))
}

func TestCompressionTagIsUncompressed(t *testing.T) {
	assert.True(t, CompressionNone1.IsUncompressed())
	assert.True(t, CompressionNone2.IsUncompressed())
	assert.False(t, CompressionXZ.IsUncompressed())
	assert.False(t, CompressionZstd.IsUncompressed())
}
