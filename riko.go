package riko

import (
	"context"
	"sync"
)

// Handle is an opaque reference to an object owned by the native side.
// Handles are minted by the native side, stay unique for as long as the
// object they name is reachable from this side, and carry no type
// information on their own; the proxy wrapping a handle supplies the type
// context. Handle 0 is reserved and always invalid.
type Handle int64

// NilHandle is the reserved invalid handle.
const NilHandle Handle = 0

// CompleteFunc receives an asynchronous completion from the native side.
// The payload is an encoded result envelope. It may be invoked from
// execution contexts the caller does not control, including native worker
// threads.
type CompleteFunc func(handle Handle, payload []byte)

// DropFunc releases the native object named by handle.
type DropFunc func(handle Handle)

// NextFunc pulls the next element from a native iterator. A zero-length
// payload signals exhaustion.
type NextFunc func(handle Handle) ([]byte, error)

// Boundary is the opaque call primitive into the native side. Generated
// wrapper code and the runtime package are its only intended callers.
//
// Arguments are either encoded payloads ([]byte) or primitive scalars
// (Handle, bool, int64, uint64, float64). Everything else must be encoded
// with the codec package before crossing; the native side never sees this
// side's object graph, only copies.
//
// Implementations must be safe for concurrent use.
type Boundary interface {
	// Call invokes a named entry point and returns its encoded result
	// envelope. A nil or empty result is a successful call with no value.
	Call(ctx context.Context, name string, args ...any) ([]byte, error)

	// NewObject invokes an object-returning entry point and returns the
	// handle of the native object it allocated.
	NewObject(ctx context.Context, name string, args ...any) (Handle, error)

	// Start invokes an asynchronous entry point. It returns immediately
	// with the handle identifying the pending completion; the completion
	// itself arrives through the callback installed with OnComplete.
	Start(ctx context.Context, name string, args ...any) (Handle, error)

	// Cancel tells the native side to abandon the work behind a Start
	// handle. Abandoning work only on this side would leak it natively.
	Cancel(handle Handle)

	// Next pulls one element from a native iterator. Zero-length means
	// exhausted. Pulls against a single handle must be serialized by the
	// caller.
	Next(handle Handle) ([]byte, error)

	// Drop deallocates the native object named by handle.
	Drop(handle Handle)

	// OnComplete installs the process-wide completion callback. Must be
	// called before the first Start.
	OnComplete(fn CompleteFunc)
}

var (
	initOnce sync.Once
	initErr  error
)

// Init performs one-time global setup of the native side (signal handling,
// thread registration and the like). Multiple call sites may race to
// initialize; fn runs at most once per process and every caller observes
// the outcome of that single run.
func Init(fn func() error) error {
	initOnce.Do(func() {
		initErr = fn()
	})
	return initErr
}
