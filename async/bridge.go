package async

import (
	"sync"

	"github.com/jizhuozhi/go-future"
	"go.uber.org/zap"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/codec"
	"github.com/seamlik/riko/errors"
)

type terminal uint8

const (
	terminalDelivered terminal = iota + 1
	terminalCancelled
)

// completion is a native result already decoded, or the decode failure
// that stands in for it.
type completion struct {
	env *codec.Envelope
	err error
}

// registration is one awaiter's sink, stored keyed by handle until the
// matching completion arrives.
type registration struct {
	deliver func(completion)
	cancel  func()
}

// Bridge matches native asynchronous completions to awaiters. Completions
// may arrive on execution contexts the managed side does not control, and
// in either order relative to the awaiter registering; both maps are
// mutated under one mutex so each completion is matched exactly once and
// delivered exactly once. The mutex is never held across a native call or
// an awaiter notification.
//
// Cancellation policy: cancellation wins. Cancel succeeds even when a
// completion is already buffered (the completion is discarded), always
// notifies the native side so the underlying work is not orphaned, and a
// completion arriving after Cancel is dropped. Cancel only reports false
// when the result was already delivered to an awaiter.
type Bridge struct {
	mu      sync.Mutex
	waiting map[riko.Handle]*registration
	pending map[riko.Handle]completion
	done    map[riko.Handle]terminal
	notify  func(riko.Handle)
	log     *zap.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// NewBridge creates a bridge. notifyCancel is invoked, outside the bridge
// lock, with the handle of every cancelled completion so the native side
// can abandon the work behind it.
func NewBridge(notifyCancel func(riko.Handle), opts ...Option) *Bridge {
	b := &Bridge{
		waiting: make(map[riko.Handle]*registration),
		pending: make(map[riko.Handle]completion),
		done:    make(map[riko.Handle]terminal),
		notify:  notifyCancel,
		log:     zap.NewNop(),
	}
	if b.notify == nil {
		b.notify = func(riko.Handle) {}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Await registers the awaiter for a handle and returns its future. If the
// completion already arrived it is delivered immediately; otherwise
// delivery happens when Complete sees the handle. The future fails with a
// *errors.Domain when the native side reported an error, with a marshaling
// failure when the completion payload did not decode, and with
// errors.ErrCancelled when the handle was cancelled.
//
// At most one awaiter may exist per handle; a second Await for the same
// handle is a caller bug and panics.
func Await[T any](b *Bridge, handle riko.Handle) *future.Future[T] {
	p := future.NewPromise[T]()
	reg := &registration{
		deliver: func(c completion) {
			var zero T
			if c.err != nil {
				p.Set(zero, c.err)
				return
			}
			v, err := codec.Into[T](c.env)
			p.Set(v, err)
		},
		cancel: func() {
			var zero T
			p.Set(zero, errors.ErrCancelled)
		},
	}

	b.mu.Lock()
	switch b.done[handle] {
	case terminalDelivered:
		b.mu.Unlock()
		panic(errors.Misuse(errors.PhaseFuture, "await after delivery").WithHandle(int64(handle)))
	case terminalCancelled:
		b.mu.Unlock()
		reg.cancel()
		return p.Future()
	}
	if _, dup := b.waiting[handle]; dup {
		b.mu.Unlock()
		panic(errors.Misuse(errors.PhaseFuture, "second registration for handle").WithHandle(int64(handle)))
	}
	if c, ok := b.pending[handle]; ok {
		delete(b.pending, handle)
		b.done[handle] = terminalDelivered
		b.mu.Unlock()
		b.log.Debug("buffered completion delivered", zap.Int64("handle", int64(handle)))
		reg.deliver(c)
		return p.Future()
	}
	b.waiting[handle] = reg
	b.mu.Unlock()
	return p.Future()
}

// Complete feeds a native completion into the bridge. Safe to call from
// any execution context. If no awaiter is registered yet the completion is
// buffered until one appears. A completion for a handle that was already
// delivered or cancelled has no observable effect.
func (b *Bridge) Complete(handle riko.Handle, payload []byte) {
	// Decode before taking the lock; decoding is caller-bound work.
	env, err := codec.Decode(payload)
	c := completion{env: env, err: err}

	b.mu.Lock()
	if _, terminated := b.done[handle]; terminated {
		b.mu.Unlock()
		b.log.Debug("completion for terminated handle dropped", zap.Int64("handle", int64(handle)))
		return
	}
	if reg, ok := b.waiting[handle]; ok {
		delete(b.waiting, handle)
		b.done[handle] = terminalDelivered
		b.mu.Unlock()
		b.log.Debug("completion delivered", zap.Int64("handle", int64(handle)))
		reg.deliver(c)
		return
	}
	if _, dup := b.pending[handle]; dup {
		b.mu.Unlock()
		b.log.Debug("duplicate completion dropped", zap.Int64("handle", int64(handle)))
		return
	}
	b.pending[handle] = c
	b.mu.Unlock()
	b.log.Debug("completion buffered", zap.Int64("handle", int64(handle)))
}

// Cancel terminates a handle before delivery. The native side is notified
// so it can abandon the work; any buffered completion is discarded; a
// registered awaiter fails with errors.ErrCancelled. Reports false when
// the result was already delivered (nothing left to cancel). Cancelling
// the same handle twice is a caller bug and panics.
func (b *Bridge) Cancel(handle riko.Handle) bool {
	b.mu.Lock()
	switch b.done[handle] {
	case terminalDelivered:
		b.mu.Unlock()
		return false
	case terminalCancelled:
		b.mu.Unlock()
		panic(errors.Misuse(errors.PhaseFuture, "double cancel").WithHandle(int64(handle)))
	}

	reg := b.waiting[handle]
	delete(b.waiting, handle)
	delete(b.pending, handle)
	b.done[handle] = terminalCancelled
	b.mu.Unlock()

	b.notify(handle)
	if reg != nil {
		reg.cancel()
	}
	b.log.Debug("handle cancelled", zap.Int64("handle", int64(handle)))
	return true
}

// Outstanding returns the number of handles with a registered awaiter or a
// buffered completion.
func (b *Bridge) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiting) + len(b.pending)
}

// Close cancels every outstanding handle. Used at runtime teardown so no
// awaiter blocks forever and no native work is orphaned.
func (b *Bridge) Close() {
	b.mu.Lock()
	regs := make(map[riko.Handle]*registration, len(b.waiting))
	for h, reg := range b.waiting {
		regs[h] = reg
		b.done[h] = terminalCancelled
	}
	b.waiting = make(map[riko.Handle]*registration)
	for h := range b.pending {
		delete(b.pending, h)
		b.done[h] = terminalCancelled
		regs[h] = nil
	}
	b.mu.Unlock()

	for h, reg := range regs {
		b.notify(h)
		if reg != nil {
			reg.cancel()
		}
	}
}
