package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// --------------------------------------------------------------------------
// Payload Compression
// --------------------------------------------------------------------------

// shared stateless zstd coders, safe for concurrent EncodeAll/DecodeAll use
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// compressPayload applies codec c to the raw payload bytes
func compressPayload(c Compression, payload []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(payload, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression codec %d", c)
	}
}

// decompressPayload inverts codec c on received payload bytes
func decompressPayload(c Compression, payload []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		return zstdDecoder.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("unknown compression codec %d", c)
	}
}
