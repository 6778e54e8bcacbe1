// Package common provides the shared building blocks of the aRPC client:
// the client configuration structures, the error taxonomy used across the
// transport, the logging setup and the metrics probe.
//
// Everything in this package is transport-medium agnostic - it is imported
// by the codec, transport and client packages alike and must therefore not
// depend on any of them.
package common
