// Package serializer converts typed request and response values to and from
// the payload bytes carried inside a frame. The transport is agnostic to the
// format - any implementation of IRPCSerializer can be plugged in.
//
// Three implementations are provided:
//
//   - JSON: human readable, interoperable, slowest
//   - GOB: Go native binary encoding
//   - CBOR: compact binary encoding with cross-language tooling
package serializer
