package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/codec"
	"github.com/seamlik/riko/errors"
	"github.com/seamlik/riko/pool"
)

// Func is an in-process native entry point. Args arrive exactly as passed
// to Boundary.Call: encoded payloads and primitive scalars. The returned
// payload is an encoded result envelope; a returned error is wrapped into
// an error envelope on behalf of the function.
type Func func(ctx context.Context, args []any) ([]byte, error)

// ObjectFunc is an object-producing entry point. The returned value is
// shelved in the pool and its handle crosses the boundary.
type ObjectFunc func(ctx context.Context, args []any) (any, error)

// Iter is implemented by shelved objects that back the next primitive.
// A zero-length payload signals exhaustion.
type Iter interface {
	Next() ([]byte, error)
}

// Local is an in-process native side: a function registry plus an object
// pool, exposed through the Boundary contract. It is what generated
// wrappers run against in tests and what pure-Go deployments embed.
type Local struct {
	pool     *pool.Pool
	mu       sync.RWMutex
	funcs    map[string]Func
	objects  map[string]ObjectFunc
	asyncs   map[string]Func
	complete riko.CompleteFunc
	tasks    *xsync.MapOf[riko.Handle, context.CancelFunc]
	taskSeq  atomic.Int64
	log      *zap.Logger
}

var _ riko.Boundary = (*Local)(nil)

// LocalOption configures a Local.
type LocalOption func(*Local)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) LocalOption {
	return func(l *Local) { l.log = log }
}

// WithPool uses an existing object pool instead of a fresh one.
func WithPool(p *pool.Pool) LocalOption {
	return func(l *Local) { l.pool = p }
}

// NewLocal creates an empty in-process boundary.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		funcs:   make(map[string]Func),
		objects: make(map[string]ObjectFunc),
		asyncs:  make(map[string]Func),
		tasks:   xsync.NewMapOf[riko.Handle, context.CancelFunc](),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.pool == nil {
		l.pool = pool.New(pool.WithLogger(l.log))
	}
	return l
}

// Register adds a value-returning entry point.
func (l *Local) Register(name string, fn Func) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[name] = fn
}

// RegisterObject adds an object-producing entry point.
func (l *Local) RegisterObject(name string, fn ObjectFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.objects[name] = fn
}

// RegisterAsync adds an asynchronous entry point. The function runs on its
// own goroutine; its result is delivered through the completion callback.
func (l *Local) RegisterAsync(name string, fn Func) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.asyncs[name] = fn
}

// Pool returns the object pool backing this boundary.
func (l *Local) Pool() *pool.Pool {
	return l.pool
}

// Call implements riko.Boundary.
func (l *Local) Call(ctx context.Context, name string, args ...any) ([]byte, error) {
	l.mu.RLock()
	fn, ok := l.funcs[name]
	l.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseCall, "function", name)
	}

	payload, err := fn(ctx, args)
	if err != nil {
		// The native side reports its own failures inside the envelope.
		return codec.Failure(err), nil
	}
	return payload, nil
}

// NewObject implements riko.Boundary.
func (l *Local) NewObject(ctx context.Context, name string, args ...any) (riko.Handle, error) {
	l.mu.RLock()
	fn, ok := l.objects[name]
	l.mu.RUnlock()
	if !ok {
		return riko.NilHandle, errors.NotFound(errors.PhaseCall, "constructor", name)
	}

	v, err := fn(ctx, args)
	if err != nil {
		return riko.NilHandle, errors.CallFailed(name, err)
	}

	handle := l.pool.Store(v)
	if handle == riko.NilHandle {
		return riko.NilHandle, errors.Closed(errors.PhaseCall, "object pool")
	}
	return handle, nil
}

// Start implements riko.Boundary. The task handle is minted here, in its
// own namespace; completions are keyed by it, not by pool handles.
func (l *Local) Start(ctx context.Context, name string, args ...any) (riko.Handle, error) {
	l.mu.RLock()
	fn, ok := l.asyncs[name]
	done := l.complete
	l.mu.RUnlock()
	if !ok {
		return riko.NilHandle, errors.NotFound(errors.PhaseCall, "async function", name)
	}
	if done == nil {
		return riko.NilHandle, errors.NotInitialized(errors.PhaseFuture, "completion callback")
	}

	handle := riko.Handle(l.taskSeq.Add(1))

	// The task outlives the Start call; its lifetime is governed by Cancel,
	// not by the caller's context.
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.tasks.Store(handle, cancel)

	go func() {
		payload, err := fn(taskCtx, args)
		if _, running := l.tasks.LoadAndDelete(handle); !running {
			// Cancelled while executing; the work is abandoned, not reported.
			return
		}
		if err != nil {
			payload = codec.Failure(err)
		}
		done(handle, payload)
	}()

	return handle, nil
}

// Cancel implements riko.Boundary.
func (l *Local) Cancel(handle riko.Handle) {
	if cancel, ok := l.tasks.LoadAndDelete(handle); ok {
		cancel()
		l.log.Debug("task abandoned", zap.Int64("handle", int64(handle)))
	}
}

// Next implements riko.Boundary.
func (l *Local) Next(handle riko.Handle) ([]byte, error) {
	it, ok := pool.Peek[Iter](l.pool, handle)
	if !ok {
		return nil, errors.NotFound(errors.PhaseStream, "iterator", "").WithHandle(int64(handle))
	}
	return it.Next()
}

// Drop implements riko.Boundary.
func (l *Local) Drop(handle riko.Handle) {
	l.pool.Drop(handle)
}

// OnComplete implements riko.Boundary.
func (l *Local) OnComplete(fn riko.CompleteFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.complete = fn
}

// Close cancels running tasks and drains the pool.
func (l *Local) Close() error {
	l.tasks.Range(func(h riko.Handle, cancel context.CancelFunc) bool {
		l.tasks.Delete(h)
		cancel()
		return true
	})
	return l.pool.Close()
}
