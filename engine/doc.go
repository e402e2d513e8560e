// Package engine provides concrete transports behind the riko.Boundary
// contract.
//
// Local is an in-process native side: a registry of Go functions plus an
// object pool. It backs pure-Go deployments and is the test double every
// generated wrapper suite runs against. Asynchronous entry points run on
// their own goroutines and deliver completions through the installed
// callback, so the full future-bridging path is exercisable without
// leaving the process.
//
// Wazero hosts the native side as a WebAssembly module. Payloads cross as
// (ptr, len) pairs through the guest's exported allocator, results come
// back as one packed u64, and handles travel as i64 scalars. The guest has
// no execution context of its own, so this transport is synchronous only.
//
// Both transports treat every crossing as a copy; no guest or pool memory
// is ever aliased by a caller.
package engine
