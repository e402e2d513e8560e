// Package codec serializes values crossing the native boundary and decodes
// the result envelopes coming back.
//
// The wire format is msgpack: self-describing, so either side can decode a
// payload without out-of-band schema. The envelope schema itself is fixed
// regardless of codec internals: a map with an optional "error" field
// ({"message", "debug"}) and an optional "value" field. The error arm takes
// priority when both are present.
//
// Three representations of "nothing" are kept apart on purpose:
//
//   - a zero-length payload: no argument / no return value at all
//   - an absent "value" field: the call succeeded with no value
//   - a present "value" field encoding nil: a real, null-valued result
//
// Decode failures surface as errors.KindMalformedPayload and are never
// conflated with the envelope reporting a domain error.
//
// Thread safety: all functions are safe for concurrent use.
package codec
