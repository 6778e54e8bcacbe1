package codec

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// Netbuf
// --------------------------------------------------------------------------

// Netbuf is an owned outbound message: the mutable header fields plus the
// payload buffer. The payload is written through Buffer() by the serializer,
// the header fields are stamped by the transport, and Wire() finalizes the
// frame (compression, checksums, header encoding).
type Netbuf struct {
	buf                 bytes.Buffer
	meta                uint32
	correlationID       uint32
	compression         Compression
	minCompressionBytes int
}

// NewNetbuf creates an empty outbound message
func NewNetbuf() *Netbuf {
	return &Netbuf{}
}

// Buffer exposes the payload buffer for the serializer to write into
func (b *Netbuf) Buffer() *bytes.Buffer { return &b.buf }

// Size returns the current (uncompressed) payload size in bytes
func (b *Netbuf) Size() int { return b.buf.Len() }

// SetServiceMethodID stamps the meta field with the service/method id
func (b *Netbuf) SetServiceMethodID(id uint32) { b.meta = id }

// SetCorrelationID stamps the correlation id of the frame
func (b *Netbuf) SetCorrelationID(id uint32) { b.correlationID = id }

// SetCompression selects the compression codec applied by Wire
func (b *Netbuf) SetCompression(c Compression) { b.compression = c }

// SetMinCompressionBytes sets the threshold below which the payload is sent
// uncompressed even if a codec is selected
func (b *Netbuf) SetMinCompressionBytes(n int) { b.minCompressionBytes = n }

// Wire finalizes the message into its on-wire form. It applies the
// compression policy, computes the payload checksum over the final payload
// bytes and encodes the header. The returned slices stay valid until the
// Netbuf is reused.
func (b *Netbuf) Wire() (header [HeaderSize]byte, payload []byte, err error) {
	return EncodeFrame(b.meta, b.correlationID, b.compression, b.minCompressionBytes, b.buf.Bytes())
}

// EncodeFrame builds a complete frame from raw parts. It is the shared
// encoding path of Netbuf.Wire and of test servers that answer in-process.
func EncodeFrame(meta, correlationID uint32, c Compression, minCompressionBytes int, raw []byte) (header [HeaderSize]byte, payload []byte, err error) {
	compression := c
	if len(raw) < minCompressionBytes {
		compression = CompressionNone
	}

	payload, err = compressPayload(compression, raw)
	if err != nil {
		return header, nil, err
	}

	header = EncodeHeader(Header{
		Version:         Version0,
		Compression:     compression,
		PayloadSize:     uint32(len(payload)),
		Meta:            meta,
		CorrelationID:   correlationID,
		PayloadChecksum: xxhash.Sum64(payload),
	})
	return header, payload, nil
}
