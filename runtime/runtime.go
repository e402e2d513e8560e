package runtime

import (
	"context"

	"github.com/jizhuozhi/go-future"
	"go.uber.org/zap"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/async"
	"github.com/seamlik/riko/codec"
	"github.com/seamlik/riko/errors"
	"github.com/seamlik/riko/heap"
	"github.com/seamlik/riko/stream"
)

// Runtime assembles the bridge components over one boundary. All shared
// registries are owned by the instance, never process-global, so tests and
// multi-boundary processes construct isolated runtimes.
type Runtime struct {
	boundary riko.Boundary
	bridge   *async.Bridge
	log      *zap.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// New wires a runtime over a boundary and installs the completion callback.
func New(b riko.Boundary, opts ...Option) *Runtime {
	r := &Runtime{
		boundary: b,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.bridge = async.NewBridge(b.Cancel, async.WithLogger(r.log))
	b.OnComplete(r.bridge.Complete)
	return r
}

// Boundary returns the underlying call primitive.
func (r *Runtime) Boundary() riko.Boundary {
	return r.boundary
}

// Bridge returns the completion bridge.
func (r *Runtime) Bridge() *async.Bridge {
	return r.bridge
}

// Call invokes a value-returning native function and decodes its result
// into T. Arguments cross as-is when they are payloads or scalars; proxies
// cross as their handle after an aliveness check; everything else is
// encoded first.
func Call[T any](ctx context.Context, r *Runtime, name string, args ...any) (T, error) {
	var zero T

	env, err := r.call(ctx, name, args)
	if err != nil {
		return zero, err
	}
	return codec.Into[T](env)
}

// Exec invokes a native function and discards any value, keeping only the
// error arm.
func (r *Runtime) Exec(ctx context.Context, name string, args ...any) error {
	env, err := r.call(ctx, name, args)
	if err != nil {
		return err
	}
	_, err = env.Unwrap()
	return err
}

// Object invokes an object-producing native function and wraps the
// returned handle in a proxy owning its deallocation.
func (r *Runtime) Object(ctx context.Context, name string, args ...any) (*heap.Object, error) {
	lowered, err := r.lowerArgs(args)
	if err != nil {
		return nil, err
	}

	h, err := r.boundary.NewObject(ctx, name, lowered...)
	if err != nil {
		return nil, err
	}
	r.log.Debug("object acquired", zap.String("function", name), zap.Int64("handle", int64(h)))
	return heap.NewObject(h, r.boundary.Drop), nil
}

// Iterator invokes an iterator-producing native function.
func (r *Runtime) Iterator(ctx context.Context, name string, args ...any) (*heap.Iterator, error) {
	lowered, err := r.lowerArgs(args)
	if err != nil {
		return nil, err
	}

	h, err := r.boundary.NewObject(ctx, name, lowered...)
	if err != nil {
		return nil, err
	}
	return heap.NewIterator(h, r.boundary.Drop, r.boundary.Next), nil
}

// Stream invokes an iterator-producing native function and wraps the
// iterator into a push-based sequence. The stream owns the iterator.
func (r *Runtime) Stream(ctx context.Context, name string, args ...any) (*stream.Stream, error) {
	it, err := r.Iterator(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return stream.New(it, stream.WithLogger(r.log)), nil
}

// Async invokes an asynchronous native function and returns the future
// observing its completion. Cancel the work through Runtime.Cancel with
// the handle recorded in the returned Call.
func Async[T any](ctx context.Context, r *Runtime, name string, args ...any) (*AsyncCall[T], error) {
	lowered, err := r.lowerArgs(args)
	if err != nil {
		return nil, err
	}

	h, err := r.boundary.Start(ctx, name, lowered...)
	if err != nil {
		return nil, err
	}
	r.log.Debug("async call started", zap.String("function", name), zap.Int64("handle", int64(h)))
	return &AsyncCall[T]{
		Handle: h,
		future: async.Await[T](r.bridge, h),
		bridge: r.bridge,
	}, nil
}

// AsyncCall is one in-flight asynchronous invocation.
type AsyncCall[T any] struct {
	Handle riko.Handle
	future *future.Future[T]
	bridge *async.Bridge
}

// Future returns the awaitable result. It fails with errors.ErrCancelled
// if the call is cancelled first.
func (c *AsyncCall[T]) Future() *future.Future[T] {
	return c.future
}

// Get blocks for the result.
func (c *AsyncCall[T]) Get() (T, error) {
	return c.future.Get()
}

// Cancel abandons the native work. Reports false when the result was
// already delivered.
func (c *AsyncCall[T]) Cancel() bool {
	return c.bridge.Cancel(c.Handle)
}

// Close cancels every outstanding asynchronous call and, when the boundary
// itself is closable, tears it down.
func (r *Runtime) Close() error {
	r.bridge.Close()

	switch b := r.boundary.(type) {
	case interface{ Close() error }:
		return b.Close()
	case interface{ Close(context.Context) error }:
		return b.Close(context.Background())
	}
	return nil
}

func (r *Runtime) call(ctx context.Context, name string, args []any) (*codec.Envelope, error) {
	lowered, err := r.lowerArgs(args)
	if err != nil {
		return nil, err
	}

	payload, err := r.boundary.Call(ctx, name, lowered...)
	if err != nil {
		return nil, err
	}
	return codec.Decode(payload)
}

// lowerArgs prepares arguments for the boundary: payloads and scalars pass
// through, proxies become their handle after an aliveness check, and every
// other value is encoded.
func (r *Runtime) lowerArgs(args []any) ([]any, error) {
	lowered := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case []byte, riko.Handle, bool, int64, uint64, float64:
			lowered[i] = v
		case *heap.Object:
			v.Guard()
			lowered[i] = v.Handle()
		case *heap.Iterator:
			v.Guard()
			lowered[i] = v.Handle()
		default:
			data, err := codec.Encode(arg)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidInput, err, "lower argument")
			}
			lowered[i] = data
		}
	}
	return lowered, nil
}
