package codec

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/aRPC/common"
	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// Payload Parsing
// --------------------------------------------------------------------------

// ReadPayload reads exactly h.PayloadSize bytes from in, verifies the
// payload checksum and undoes compression. A checksum or decompression
// mismatch yields common.ErrCorruptBody; because the full payload has been
// consumed at that point, the stream stays frame-aligned and the connection
// remains usable.
func ReadPayload(in io.Reader, h Header) ([]byte, error) {
	payload := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(in, payload); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", common.ErrDisconnected, err)
	}

	if got := xxhash.Sum64(payload); got != h.PayloadChecksum {
		return nil, fmt.Errorf("%w: payload checksum mismatch (got %#x, want %#x)",
			common.ErrCorruptBody, got, h.PayloadChecksum)
	}

	raw, err := decompressPayload(h.Compression, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptBody, err)
	}
	return raw, nil
}

// SkipPayload discards the payload of a frame whose correlation id matched
// no pending request
func SkipPayload(in io.Reader, h Header) error {
	_, err := io.CopyN(io.Discard, in, int64(h.PayloadSize))
	return err
}
