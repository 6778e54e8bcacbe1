package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ValentinKolb/aRPC/common"
)

// --------------------------------------------------------------------------
// Wire Constants
// --------------------------------------------------------------------------

const (
	// HeaderSize is the fixed on-wire size of a frame header
	HeaderSize = 26

	// Version0 is the only protocol version currently spoken
	Version0 byte = 0
)

// Compression identifies the payload compression codec of a frame
type Compression uint8

const (
	// CompressionNone leaves the payload untouched
	CompressionNone Compression = 0
	// CompressionZstd compresses the payload with zstd
	CompressionZstd Compression = 1
)

// Status is the server side result code carried in the meta field of a
// response header
type Status uint32

const (
	StatusSuccess        Status = 0
	StatusMethodNotFound Status = 1
	StatusRequestTimeout Status = 2
	StatusServerError    Status = 3
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusMethodNotFound:
		return "method not found"
	case StatusRequestTimeout:
		return "request timeout"
	case StatusServerError:
		return "server error"
	default:
		return fmt.Sprintf("reserved (%d)", uint32(s))
	}
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// Header is the decoded form of the fixed frame header. On requests Meta
// carries the service/method id, on responses it carries the status code.
type Header struct {
	Version         byte
	HeaderChecksum  uint32
	Compression     Compression
	PayloadSize     uint32
	Meta            uint32
	CorrelationID   uint32
	PayloadChecksum uint64
}

// Status interprets the meta field of a response header
func (h Header) Status() Status { return Status(h.Meta) }

// castagnoli is the CRC-32C table used for the header checksum
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// headerChecksum computes the CRC-32C over the version byte and the header
// bytes after the checksum field
func headerChecksum(b []byte) uint32 {
	crc := crc32.Update(0, castagnoli, b[0:1])
	return crc32.Update(crc, castagnoli, b[5:HeaderSize])
}

// EncodeHeader writes the fixed little-endian layout of h, computing the
// header checksum over the remaining fields
func EncodeHeader(h Header) [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = h.Version
	b[5] = byte(h.Compression)
	binary.LittleEndian.PutUint32(b[6:10], h.PayloadSize)
	binary.LittleEndian.PutUint32(b[10:14], h.Meta)
	binary.LittleEndian.PutUint32(b[14:18], h.CorrelationID)
	binary.LittleEndian.PutUint64(b[18:26], h.PayloadChecksum)
	binary.LittleEndian.PutUint32(b[1:5], headerChecksum(b[:]))
	return b
}

// DecodeHeader parses and validates a received header. It returns
// common.ErrCorruptHeader if the checksum does not match.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", common.ErrCorruptHeader, len(b))
	}

	h := Header{
		Version:         b[0],
		HeaderChecksum:  binary.LittleEndian.Uint32(b[1:5]),
		Compression:     Compression(b[5]),
		PayloadSize:     binary.LittleEndian.Uint32(b[6:10]),
		Meta:            binary.LittleEndian.Uint32(b[10:14]),
		CorrelationID:   binary.LittleEndian.Uint32(b[14:18]),
		PayloadChecksum: binary.LittleEndian.Uint64(b[18:26]),
	}

	if got := headerChecksum(b[:HeaderSize]); got != h.HeaderChecksum {
		return Header{}, fmt.Errorf("%w: checksum mismatch (got %#x, want %#x)",
			common.ErrCorruptHeader, got, h.HeaderChecksum)
	}

	return h, nil
}
