package zim

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCluster(t *testing.T, blobs [][]byte, tag CompressionTag, representation ClusterRepresentation) *Cluster {
	t.Helper()
	registry := NewCompressionRegistry()
	encoded, err := encodeCluster(blobs, tag, registry)
	require.NoError(t, err)

	a := &Archive{
		source:   bytes.NewReader(encoded),
		registry: registry,
		metrics:  &Metrics{},
	}
	c, err := readClusterAt(a, 0, 0, int64(len(encoded)), registry, representation)
	require.NoError(t, err)
	return c
}

func TestClusterRoundTripAllCompressionTagsAndRepresentations(t *testing.T) {
	blobs := [][]byte{
		[]byte("first blob content"),
		[]byte("second, a bit longer than the first blob"),
		[]byte(""), // empty blob must round-trip too
	}

	tags := []CompressionTag{CompressionNone1, CompressionXZ, CompressionZstd}
	reps := []ClusterRepresentation{ClusterOffsetOnly, ClusterInMemory, ClusterStreaming}

	for _, tag := range tags {
		for _, rep := range reps {
			c := buildCluster(t, blobs, tag, rep)
			require.Equal(t, len(blobs), c.BlobCount())
			for i, want := range blobs {
				got, err := c.GetBlob(i)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
			assert.Equal(t, tag, c.CompressionTag())
		}
	}
}

func TestClusterIterBlobs(t *testing.T) {
	blobs := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	c := buildCluster(t, blobs, CompressionZstd, ClusterInMemory)

	var collected [][]byte
	err := c.IterBlobs(func(i int, blob []byte) error {
		collected = append(collected, append([]byte(nil), blob...))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, blobs, collected)
}

func TestClusterOpenBlobStreaming(t *testing.T) {
	blobs := [][]byte{[]byte("hello"), []byte("world")}
	c := buildCluster(t, blobs, CompressionZstd, ClusterStreaming)

	rd, err := c.OpenBlob(0)
	require.NoError(t, err)
	data, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	rd2, err := c.OpenBlob(1)
	require.NoError(t, err)
	data2, err := io.ReadAll(rd2)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data2))
}

func TestClusterNonSequentialStreamingReadErrors(t *testing.T) {
	blobs := [][]byte{[]byte("hello"), []byte("world")}
	c := buildCluster(t, blobs, CompressionZstd, ClusterStreaming)

	_, err := c.GetBlob(1)
	require.NoError(t, err)

	_, err = c.GetBlob(0)
	assert.Error(t, err, "reading an earlier blob after a later one must fail in a streaming representation")
}

func TestClusterOffsetOnlyCompressedSupportsNonSequentialReads(t *testing.T) {
	blobs := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	c := buildCluster(t, blobs, CompressionZstd, ClusterOffsetOnly)

	got2, err := c.GetBlob(2)
	require.NoError(t, err)
	assert.Equal(t, "third", string(got2))

	got0, err := c.GetBlob(0)
	require.NoError(t, err, "reading an earlier blob after a later one must succeed under the default, offset-only representation")
	assert.Equal(t, "first", string(got0))

	got1, err := c.GetBlob(1)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got1))
}

func TestClusterBlobIndexOutOfRange(t *testing.T) {
	c := buildCluster(t, [][]byte{[]byte("only")}, CompressionNone1, ClusterOffsetOnly)
	_, err := c.GetBlob(5)
	assert.Error(t, err)
	_, err = c.GetBlob(-1)
	assert.Error(t, err)
}

func TestClusterSmallBodyUsesNonExtendedOffsets(t *testing.T) {
	blobs := [][]byte{[]byte("small")}
	c := buildCluster(t, blobs, CompressionNone1, ClusterOffsetOnly)
	assert.False(t, c.extended)
}
