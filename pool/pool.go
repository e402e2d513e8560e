package pool

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/seamlik/riko"
)

// Event types for object lifecycle notifications.
type EventType uint8

const (
	EventStored EventType = iota
	EventDropped
)

// Event represents an object lifecycle event.
type Event struct {
	Value  any
	Handle riko.Handle
	Type   EventType
}

// Observer receives notifications about object lifecycle events.
type Observer interface {
	OnPoolEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is dropped.
type Dropper interface {
	Drop()
}

// Pool is the native side's heap: it owns the real objects and mints the
// handles the managed side addresses them by. Handles come from a monotonic
// counter and are never reused while the object is reachable, so a stale
// handle can never silently alias a newer object.
type Pool struct {
	objects   *xsync.MapOf[riko.Handle, any]
	counter   atomic.Int64
	observers []Observer
	obsMu     sync.RWMutex
	closed    atomic.Bool
	log       *zap.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// New creates an empty pool.
func New(opts ...Option) *Pool {
	p := &Pool{
		objects: xsync.NewMapOf[riko.Handle, any](),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store shelves a value and mints its handle. Returns NilHandle if the pool
// is closed.
func (p *Pool) Store(v any) riko.Handle {
	if p.closed.Load() {
		return riko.NilHandle
	}

	handle := riko.Handle(p.counter.Add(1))
	p.objects.Store(handle, v)
	p.log.Debug("object stored", zap.Int64("handle", int64(handle)))

	p.notify(Event{Type: EventStored, Handle: handle, Value: v})
	return handle
}

// Get retrieves a value by handle.
func (p *Pool) Get(handle riko.Handle) (any, bool) {
	if handle == riko.NilHandle {
		return nil, false
	}
	return p.objects.Load(handle)
}

// Peek retrieves a value by handle only if it has the expected type. The
// handle itself carries no type information; this is where the pool's side
// of the type context is enforced.
func Peek[T any](p *Pool, handle riko.Handle) (T, bool) {
	v, ok := p.Get(handle)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Drop removes an object. If the value implements Dropper its cleanup runs.
// Reports whether the handle was alive.
func (p *Pool) Drop(handle riko.Handle) bool {
	v, ok := p.objects.LoadAndDelete(handle)
	if !ok {
		return false
	}

	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
	p.log.Debug("object dropped", zap.Int64("handle", int64(handle)))

	p.notify(Event{Type: EventDropped, Handle: handle, Value: v})
	return true
}

// Alive reports whether a handle still names a stored object.
func (p *Pool) Alive(handle riko.Handle) bool {
	_, ok := p.objects.Load(handle)
	return ok
}

// Len returns the number of stored objects.
func (p *Pool) Len() int {
	return p.objects.Size()
}

// Each iterates over stored objects until fn returns false.
func (p *Pool) Each(fn func(riko.Handle, any) bool) {
	p.objects.Range(fn)
}

// Subscribe adds an observer for lifecycle events.
func (p *Pool) Subscribe(o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, o)
}

// Unsubscribe removes an observer.
func (p *Pool) Unsubscribe(o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	for i, obs := range p.observers {
		if obs == o {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			return
		}
	}
}

// Close drops every remaining object and stops accepting stores.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	var handles []riko.Handle
	p.objects.Range(func(h riko.Handle, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		p.Drop(h)
	}
	return nil
}

func (p *Pool) notify(e Event) {
	p.obsMu.RLock()
	defer p.obsMu.RUnlock()
	for _, o := range p.observers {
		o.OnPoolEvent(e)
	}
}
