// Package riko is the managed-side runtime for code generated against a
// native, manually-managed library. The native side owns the real objects;
// this side addresses them only through opaque integer handles and
// self-describing encoded payloads. Nothing is shared: every value crossing
// the boundary is copied, and no native pointer is ever exposed.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	riko/            Root package: Handle, Boundary call primitive, Init
//	├── codec/       Envelope encoding/decoding (msgpack)
//	├── errors/      Structured error types and the error taxonomy
//	├── heap/        Proxies owning native heap objects (release/consume)
//	├── pool/        In-process native-side object pool
//	├── async/       Bridges native completions to awaitable futures
//	├── stream/      Adapts native pull iterators to push sequences
//	├── engine/      Boundary transports (in-process, wasm-hosted)
//	├── runtime/     High-level assembly with injected registries
//	└── cmd/rikoctl  CLI and interactive inspector
//
// # Lifetime Rules
//
// A heap.Object is the sole owner of its handle. Release triggers exactly
// one native deallocation no matter how often it is called; any use after
// Release or Consume panics before a native call can touch a dangling
// handle. Proxies are never finalized implicitly; cross-boundary resources
// must not depend on garbage collection timing.
//
// # Concurrency
//
// Boundary calls may be issued from any goroutine, and completions may
// arrive on native execution contexts. The async bridge matches
// registrations and completions under one mutex so each completion is
// delivered at most once, whichever side wins the race.
//
// # Quick Start
//
//	eng := engine.NewLocal()
//	rt := runtime.New(eng)
//	defer rt.Close()
//
//	sum, err := runtime.Call[int64](ctx, rt, "add", int64(2), int64(3))
package riko
