// Package async provides transform helpers over finite sequences of
// inputs whose mapping function can fail.
//
// Transform invokes the function strictly one after another, stopping at
// the first error; ParallelTransform starts every invocation immediately
// and awaits them all. Both keep the results in input order and exist in a
// slice form and an iterator (range) form - in the range form the sequence
// outlives all invocations.
package async
