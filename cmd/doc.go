// Package cmd implements the arpc diagnostic command line tool. It is not
// part of the transport library itself - it exists to poke a live server:
// ping measures a single round trip, bench drives concurrent load and
// prints the latency distribution.
package cmd
