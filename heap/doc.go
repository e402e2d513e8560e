// Package heap provides managed-side proxies for native heap objects.
//
// A native object is reachable from this side only through an opaque
// handle. The Object proxy owns that handle: it triggers the paired native
// deallocation exactly once (Release is idempotent and race-free) and
// rejects every use after the object is released or consumed by panicking
// with a misuse error. The two lifecycle flags are monotonic.
//
// Capabilities are added by composition, not subclassing: Iterator embeds
// Object and adds the pull primitive, and Consume on an Iterator returns a
// Cursor carrying the exclusive right to keep pulling. There is exactly one
// ownership-tracking type, parameterized by its deallocation strategy
// (the DropFunc passed at construction).
//
// Proxies are never released by a finalizer. Cross-boundary resources must
// not depend on when, or whether, the garbage collector runs; callers hold
// the release responsibility explicitly.
package heap
