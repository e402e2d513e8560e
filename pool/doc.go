// Package pool implements the native side's object heap for in-process
// deployments: a thread-safe store that shelves real objects and hands out
// the opaque handles the managed packages address them by.
//
// # Handle Policy
//
// Handles are minted from a monotonic counter and never reused while the
// object is reachable. Handle 0 is reserved and always invalid.
//
// # Cleanup
//
// Values implementing Dropper run their cleanup when dropped. Close drops
// everything still stored and rejects further stores.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	p.Subscribe(observerFunc)
//	// EventStored, EventDropped
//
// Observers are invoked synchronously from Store/Drop; keep them short.
package pool
