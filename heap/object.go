package heap

import (
	"sync/atomic"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/errors"
)

// Lifecycle bits. Both are monotonic: once set they never clear.
const (
	stateFreed uint32 = 1 << iota
	stateConsumed
)

// Object is the managed-side owner of one native heap object. Exactly one
// Object owns a given handle; the handle may be observed elsewhere, but
// only its Object may close it. The native allocator has no other signal
// that this side is done, so Release must fire the deallocation exactly
// once. The state bits are the sole safety net against double-free and
// use-after-transfer, because garbage collection cannot be trusted to run
// against cross-boundary resources.
type Object struct {
	handle riko.Handle
	drop   riko.DropFunc
	state  atomic.Uint32
}

// NewObject wraps a handle returned by an object-producing boundary call.
// drop is the paired native deallocation primitive.
func NewObject(handle riko.Handle, drop riko.DropFunc) *Object {
	return &Object{handle: handle, drop: drop}
}

// Handle returns the wrapped handle. Observing the handle is always
// allowed; operating through it is not once the object is released or
// consumed.
func (o *Object) Handle() riko.Handle {
	return o.handle
}

// Alive reports whether the object can still back direct calls.
func (o *Object) Alive() bool {
	return o.state.Load() == 0
}

// Released reports whether the native deallocation has been triggered.
func (o *Object) Released() bool {
	return o.state.Load()&stateFreed != 0
}

// Release triggers the native deallocation. It is idempotent: the first
// call wins the flag race and drops the native object, every later call is
// a no-op. Safe to call concurrently and after Consume (the consuming
// component releases through the same object, sharing the once-guarantee).
func (o *Object) Release() {
	for {
		old := o.state.Load()
		if old&stateFreed != 0 {
			return
		}
		if o.state.CompareAndSwap(old, old|stateFreed|stateConsumed) {
			o.drop(o.handle)
			return
		}
	}
}

// Consume marks the object unusable for direct calls without deallocating
// it, transferring exclusive further use to the caller. Used for single-use
// resources such as an iterator handed to a stream. Panics if the object is
// already released or consumed.
func (o *Object) Consume() {
	for {
		old := o.state.Load()
		if old != 0 {
			panic(o.misuse(old))
		}
		if o.state.CompareAndSwap(old, old|stateConsumed) {
			return
		}
	}
}

// Guard panics unless the object is alive. Call it at the top of every
// generated method that needs the native object; it fails deterministically
// before any native call can see a dangling handle.
func (o *Object) Guard() {
	if s := o.state.Load(); s != 0 {
		panic(o.misuse(s))
	}
}

func (o *Object) misuse(state uint32) *errors.Error {
	detail := "use after consume"
	if state&stateFreed != 0 {
		detail = "use after free"
	}
	return errors.Misuse(errors.PhaseRuntime, detail).WithHandle(int64(o.handle))
}
