// Package stream adapts native pull iterators to push-based sequences.
//
// The native iteration primitive has no lookahead and no backpressure
// awareness: the only operations are "pull one element" and "drop the
// iterator", and a zero-length payload is the exhaustion sentinel. There is
// deliberately no "has more" probe here because the native side has none;
// availability is only discoverable by pulling.
//
// A Stream takes ownership of its iterator proxy by consuming it, pulls
// one encoded envelope at a time, and pushes decoded elements downstream.
// Backpressure comes from the consumer: Each pulls only as fast as fn
// returns, and Chan pulls only as fast as the channel drains. Downstream
// cancellation is checked between pulls so a cancelled consumer costs at
// most the one pull already in flight.
//
// Termination is always exactly one of: normal exhaustion, a native
// domain error, a marshaling failure, consumer error, or cancellation.
// On every path the native iterator is released exactly once.
package stream
