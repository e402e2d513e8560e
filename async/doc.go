// Package async bridges native asynchronous completions to managed-side
// futures.
//
// A native asynchronous call returns a handle immediately; its result
// arrives later as an encoded envelope on whatever execution context the
// native side chooses. The Bridge holds two maps keyed by handle, waiting
// awaiters and buffered completions, under a single mutex, so the race
// between Await and Complete resolves to exactly one delivery whichever
// side arrives first. The lock is never held across a native call or an
// awaiter notification.
//
// Per-handle state machine:
//
//	Unregistered ──Await──▶ Registered ──Complete──▶ Delivered
//	Unregistered ──Complete──▶ Buffered ──Await──▶ Delivered
//	Registered │ Buffered │ Unregistered ──Cancel──▶ Cancelled
//
// Delivered and Cancelled are terminal. Cancellation wins against a
// buffered completion (see Bridge.Cancel), and always tells the native
// side to abandon the underlying work: forgetting it only on this side
// would leak it natively.
//
// The Bridge is an explicitly constructed registry, injected where needed;
// tests build isolated instances rather than sharing process state.
package async
