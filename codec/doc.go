// Package codec implements the binary framing of the aRPC wire protocol.
//
// Every frame starts with a fixed 26 byte little-endian header followed by
// the (possibly compressed) payload:
//
//	offset  size  field
//	0       1     version
//	1       4     header checksum (CRC-32C)
//	5       1     compression
//	6       4     payload size
//	10      4     meta (method id on requests, status on responses)
//	14      4     correlation id
//	18      8     payload checksum (xxHash64)
//	26      ...   payload bytes
//
// The header checksum covers the version byte and the header bytes after the
// checksum field itself, so any bit flip in the header is detected before the
// payload is touched. The payload checksum is computed over the final on-wire
// payload bytes, i.e. after compression.
package codec
