package zim

import (
	"bytes"
	"io"

	ioutil "github.com/zimkit/zimkit/internal/ioutil"
)

// This file implements clusters, the compressed containers that hold
// one or more blobs. Each cluster opens with a one-byte info field (low
// 4 bits: CompressionTag, bit 4: "extended" i.e. 64-bit offsets),
// followed by an offset table and the concatenated blob bodies, the
// whole thing (except the info byte) optionally compressed as a single
// stream. Grounded on pyzim's cluster.py, which likewise separates
// "read the offset table" from "read blob i" and supports reading
// clusters fully into memory or lazily; OffsetOnly/InMemory/Streaming
// below are the three Policy.ClusterRepresentationForRead choices.

// clusterInfoExtendedBit marks a cluster's offset table as using 8-byte
// offsets instead of 4-byte offsets, needed once any blob offset would
// overflow 32 bits.
const clusterInfoExtendedBit = 0x10

// Cluster is a bound handle to one decompressed cluster's blobs. The
// offset table is always materialized (it is small: one pointer per
// blob); the blob bodies are held according to the configured
// representation.
type Cluster struct {
	archive *Archive
	number  uint32

	tag      CompressionTag
	extended bool

	// offsets has len(offsets) == blobCount+1; blob i occupies
	// body[offsets[i]:offsets[i+1]].
	offsets []uint64

	representation ClusterRepresentation

	// body holds the full decompressed payload (offset table +
	// blobs) of a compressed cluster when representation is
	// ClusterInMemory or ClusterOffsetOnly. Nil otherwise.
	body []byte

	// source feeds decompressed bytes on demand when a compressed
	// cluster uses ClusterStreaming. Nil once closed, for uncompressed
	// clusters, and for the other representations.
	source     io.ReadCloser
	sourcePos  uint64 // bytes already consumed from source, relative to body start
	bodyStart  int64  // file offset of the first compressed byte, i.e. infoOffset+1
}

// offsetWidth returns the byte width of one offset table entry.
func (c *Cluster) offsetWidth() int {
	if c.extended {
		return 8
	}
	return 4
}

// BlobCount returns the number of blobs this cluster holds.
func (c *Cluster) BlobCount() int {
	if len(c.offsets) == 0 {
		return 0
	}
	return len(c.offsets) - 1
}

// CompressionTag returns the cluster's compression algorithm.
func (c *Cluster) CompressionTag() CompressionTag { return c.tag }

// readClusterAt opens the cluster beginning at offset within src,
// parsing its info byte and offset table, and returns a handle using
// the requested representation for subsequent blob reads. The caller
// supplies nextClusterOffset (the start of the following cluster, or
// the checksum position for the last cluster) so a full read knows how
// many compressed bytes to consume.
func readClusterAt(a *Archive, number uint32, offset int64, nextClusterOffset int64, registry *CompressionRegistry, representation ClusterRepresentation) (*Cluster, error) {
	info, err := readU8(a.source, offset)
	if err != nil {
		return nil, err
	}
	c := &Cluster{
		archive:         a,
		number:          number,
		tag:             CompressionTag(info & 0x0F),
		extended:        info&clusterInfoExtendedBit != 0,
		representation:  representation,
		bodyStart:       offset + 1,
	}

	compressedLen := nextClusterOffset - c.bodyStart
	if compressedLen < 0 {
		return nil, formatErrorf("cluster %d: negative compressed length", number)
	}

	if c.tag.IsUncompressed() {
		// Uncompressed clusters are read directly from the backing
		// store at arbitrary offsets; there is no stream to exhaust,
		// so every representation behaves like OffsetOnly.
		if err := c.readOffsetTableUncompressed(); err != nil {
			return nil, err
		}
		return c, nil
	}

	section := io.NewSectionReader(a.source, c.bodyStart, compressedLen)
	rd, err := registry.Decoder(c.tag, section)
	if err != nil {
		return nil, err
	}

	switch representation {
	case ClusterInMemory, ClusterOffsetOnly:
		// Both representations need random access to blob bodies within
		// this cluster; only ClusterStreaming can get away with a
		// forward-only decompression stream.
		defer rd.Close()
		body, err := io.ReadAll(rd)
		if err != nil {
			return nil, formatErrorf("cluster %d: decompress: %v", number, err)
		}
		c.body = body
		if err := c.parseOffsetTableFromBody(); err != nil {
			return nil, err
		}
	default:
		c.source = rd
		if err := c.readOffsetTableFromStream(); err != nil {
			rd.Close()
			return nil, err
		}
	}
	return c, nil
}

// readOffsetTableUncompressed reads the offset table directly from the
// backing store for an uncompressed cluster.
func (c *Cluster) readOffsetTableUncompressed() error {
	first, err := c.readOneOffsetAt(c.bodyStart)
	if err != nil {
		return err
	}
	width := c.offsetWidth()
	count := int(first) / width
	offsets := make([]uint64, count)
	offsets[0] = first
	for i := 1; i < count; i++ {
		v, err := c.readOneOffsetAt(c.bodyStart + int64(i*width))
		if err != nil {
			return err
		}
		offsets[i] = v
	}
	c.offsets = offsets
	return nil
}

func (c *Cluster) readOneOffsetAt(offset int64) (uint64, error) {
	if c.extended {
		return readU64(c.archive.source, offset)
	}
	v, err := readU32(c.archive.source, offset)
	return uint64(v), err
}

// parseOffsetTableFromBody parses the offset table out of a fully
// materialized body (ClusterInMemory or ClusterOffsetOnly).
func (c *Cluster) parseOffsetTableFromBody() error {
	width := c.offsetWidth()
	if len(c.body) < width {
		return formatErrorf("cluster %d: truncated offset table", c.number)
	}
	first := decodeOffset(c.body[0:width], c.extended)
	count := int(first) / width
	if count < 1 || width*count > len(c.body) {
		return formatErrorf("cluster %d: invalid blob count %d", c.number, count)
	}
	offsets := make([]uint64, count)
	for i := 0; i < count; i++ {
		offsets[i] = decodeOffset(c.body[i*width:], c.extended)
	}
	c.offsets = offsets
	return nil
}

// readOffsetTableFromStream reads just enough of the decompressed
// stream to learn the blob count, then the rest of the offset table,
// leaving the stream positioned at the start of blob 0's body for the
// Streaming representation.
func (c *Cluster) readOffsetTableFromStream() error {
	width := c.offsetWidth()
	firstBuf := make([]byte, width)
	if _, err := io.ReadFull(c.source, firstBuf); err != nil {
		return formatErrorf("cluster %d: read offset table: %v", c.number, err)
	}
	c.sourcePos += uint64(width)
	first := decodeOffset(firstBuf, c.extended)
	count := int(first) / width
	if count < 1 {
		return formatErrorf("cluster %d: invalid blob count %d", c.number, count)
	}
	offsets := make([]uint64, count)
	offsets[0] = first
	rest := make([]byte, width*(count-1))
	if len(rest) > 0 {
		if _, err := io.ReadFull(c.source, rest); err != nil {
			return formatErrorf("cluster %d: read offset table: %v", c.number, err)
		}
		c.sourcePos += uint64(len(rest))
	}
	for i := 1; i < count; i++ {
		offsets[i] = decodeOffset(rest[(i-1)*width:], c.extended)
	}
	c.offsets = offsets
	return nil
}

func decodeOffset(buf []byte, extended bool) uint64 {
	if extended {
		return leUint64(buf)
	}
	return uint64(leUint32(buf))
}

// GetBlob returns the decompressed bytes of blob i. Valid for any
// representation; a compressed Streaming cluster discards intervening
// bytes to move forward and cannot return to an earlier blob.
func (c *Cluster) GetBlob(i int) ([]byte, error) {
	if i < 0 || i >= c.BlobCount() {
		return nil, formatErrorf("cluster %d: blob index %d out of range [0, %d)", c.number, i, c.BlobCount())
	}
	start, end := c.offsets[i], c.offsets[i+1]

	var blob []byte
	var err error
	switch {
	case c.tag.IsUncompressed():
		buf := make([]byte, end-start)
		if err = ioutil.ReadAt(c.archive.source, c.bodyStart+int64(start), buf); err != nil {
			return nil, err
		}
		blob = buf
	case c.body != nil:
		if end > uint64(len(c.body)) {
			return nil, formatErrorf("cluster %d: blob %d extends past cluster body", c.number, i)
		}
		blob = make([]byte, end-start)
		copy(blob, c.body[start:end])
	default:
		blob, err = c.readBlobFromStream(start, end)
		if err != nil {
			return nil, err
		}
	}

	if c.archive.metrics != nil {
		c.archive.metrics.BlobsRead.Add(1)
		c.archive.metrics.BytesRead.Add(int64(len(blob)))
	}
	return blob, nil
}

// readBlobFromStream advances the decompression stream to [start,end),
// discarding any bytes in between, and returns that slice. Requires
// start >= c.sourcePos: the streaming representation only supports
// forward iteration within one Cluster value.
func (c *Cluster) readBlobFromStream(start, end uint64) ([]byte, error) {
	if start < c.sourcePos {
		return nil, formatErrorf("cluster %d: non-sequential blob read not supported in this representation; reopen the cluster", c.number)
	}
	if skip := start - c.sourcePos; skip > 0 {
		if _, err := io.CopyN(io.Discard, c.source, int64(skip)); err != nil {
			return nil, formatErrorf("cluster %d: skip to blob: %v", c.number, err)
		}
		c.sourcePos += skip
	}
	buf := make([]byte, end-start)
	if _, err := io.ReadFull(c.source, buf); err != nil {
		return nil, formatErrorf("cluster %d: read blob: %v", c.number, err)
	}
	c.sourcePos += end - start
	return buf, nil
}

// OpenBlob returns a reader over blob i without materializing it fully,
// for large blobs (video, bundled archives), mirroring pyzim's
// iter_read_blob streaming read. For uncompressed clusters this wraps a
// bounded io.SectionReader
// directly over the backing store; for compressed clusters held in
// memory it reads from the decompressed body; for streaming clusters it
// wraps the already-open decompression stream, so it is only valid for
// sequential consumption immediately after GetBlob/OpenBlob calls for
// any earlier blob in this Cluster value.
func (c *Cluster) OpenBlob(i int) (io.ReadCloser, error) {
	if i < 0 || i >= c.BlobCount() {
		return nil, formatErrorf("cluster %d: blob index %d out of range [0, %d)", c.number, i, c.BlobCount())
	}
	start, end := c.offsets[i], c.offsets[i+1]

	if c.tag.IsUncompressed() {
		section := io.NewSectionReader(c.archive.source, c.bodyStart+int64(start), int64(end-start))
		return io.NopCloser(section), nil
	}
	if c.body != nil {
		return io.NopCloser(bytes.NewReader(c.body[start:end])), nil
	}
	if start < c.sourcePos {
		return nil, formatErrorf("cluster %d: non-sequential blob read not supported in this representation; reopen the cluster", c.number)
	}
	if skip := start - c.sourcePos; skip > 0 {
		if _, err := io.CopyN(io.Discard, c.source, int64(skip)); err != nil {
			return nil, formatErrorf("cluster %d: skip to blob: %v", c.number, err)
		}
		c.sourcePos += skip
	}
	c.sourcePos = end
	return io.NopCloser(io.LimitReader(c.source, int64(end-start))), nil
}

// Close releases the cluster's decompression stream, if any. Safe to
// call on an already-closed or never-streaming cluster.
func (c *Cluster) Close() error {
	if c.source != nil {
		err := c.source.Close()
		c.source = nil
		return err
	}
	return nil
}

// IterBlobs calls fn for each blob in order, stopping at the first
// error returned by fn or by the underlying read.
func (c *Cluster) IterBlobs(fn func(i int, blob []byte) error) error {
	for i := 0; i < c.BlobCount(); i++ {
		b, err := c.GetBlob(i)
		if err != nil {
			return err
		}
		if err := fn(i, b); err != nil {
			return err
		}
	}
	return nil
}

// encodeCluster builds the on-disk bytes for a new cluster containing
// blobs, in order, compressed with tag. extended is chosen automatically
// if the uncompressed body would need 64-bit offsets.
func encodeCluster(blobs [][]byte, tag CompressionTag, registry *CompressionRegistry) ([]byte, error) {
	width := 4
	var total uint64
	for _, b := range blobs {
		total += uint64(len(b))
	}
	extended := total+uint64((len(blobs)+1)*4) > 0xFFFFFFFF
	if extended {
		width = 8
	}

	var body bytes.Buffer
	offset := uint64((len(blobs) + 1) * width)
	offsetBuf := make([]byte, width)
	writeOffset := func(v uint64) {
		if extended {
			putU64(offsetBuf, v)
		} else {
			putU32(offsetBuf, uint32(v))
		}
		body.Write(offsetBuf)
	}
	writeOffset(offset)
	for _, b := range blobs {
		offset += uint64(len(b))
		writeOffset(offset)
	}
	for _, b := range blobs {
		body.Write(b)
	}

	info := byte(tag)
	if extended {
		info |= clusterInfoExtendedBit
	}

	out := make([]byte, 0, body.Len()+1)
	out = append(out, info)

	if tag.IsUncompressed() {
		out = append(out, body.Bytes()...)
		return out, nil
	}

	compressed, err := registry.EncodeAll(tag, body.Bytes())
	if err != nil {
		return nil, err
	}
	out = append(out, compressed...)
	return out, nil
}
