package runtime

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/codec"
	"github.com/seamlik/riko/engine"
	"github.com/seamlik/riko/errors"
	"github.com/seamlik/riko/pool"
	"github.com/seamlik/riko/stream"
)

func newTestRuntime(t *testing.T) (*Runtime, *engine.Local) {
	t.Helper()
	l := engine.NewLocal()
	r := New(l)
	t.Cleanup(func() { _ = r.Close() })
	return r, l
}

func TestCall_RoundTrip(t *testing.T) {
	r, l := newTestRuntime(t)
	l.Register("add", func(_ context.Context, args []any) ([]byte, error) {
		return codec.Success(args[0].(int64) + args[1].(int64))
	})

	sum, err := Call[int64](context.Background(), r, "add", int64(2), int64(3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if sum != 5 {
		t.Errorf("sum = %d, want 5", sum)
	}
}

func TestCall_EncodedArgument(t *testing.T) {
	type query struct {
		Table string `msgpack:"table"`
		Limit int64  `msgpack:"limit"`
	}

	r, l := newTestRuntime(t)
	l.Register("describe", func(_ context.Context, args []any) ([]byte, error) {
		q, err := codec.DecodeValue[query](args[0].([]byte))
		if err != nil {
			return nil, err
		}
		return codec.Success(q.Table)
	})

	// A struct argument is encoded transparently on the way across.
	got, err := Call[string](context.Background(), r, "describe", query{Table: "users", Limit: 10})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "users" {
		t.Errorf("table = %q, want %q", got, "users")
	}
}

func TestCall_DomainError(t *testing.T) {
	r, l := newTestRuntime(t)
	l.Register("explode", func(context.Context, []any) ([]byte, error) {
		return nil, stderrors.New("kaboom")
	})

	_, err := Call[int](context.Background(), r, "explode")
	var domain *errors.Domain
	if !stderrors.As(err, &domain) || domain.Message != "kaboom" {
		t.Fatalf("err = %v, want domain error", err)
	}
}

func TestExec_NoValue(t *testing.T) {
	r, l := newTestRuntime(t)
	ran := false
	l.Register("ping", func(context.Context, []any) ([]byte, error) {
		ran = true
		return codec.Success(nil)
	})

	if err := r.Exec(context.Background(), "ping"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !ran {
		t.Error("native function never ran")
	}
}

func TestObject_LifecycleAcrossBoundary(t *testing.T) {
	r, l := newTestRuntime(t)
	l.RegisterObject("buf.new", func(context.Context, []any) (any, error) {
		return make([]string, 0), nil
	})

	obj, err := r.Object(context.Background(), "buf.new")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	if !l.Pool().Alive(obj.Handle()) {
		t.Fatal("native object missing from pool")
	}

	obj.Release()
	obj.Release()
	if l.Pool().Alive(obj.Handle()) {
		t.Fatal("native object alive after release")
	}
}

func TestObject_PassedAsReceiver(t *testing.T) {
	type counter struct{ n int64 }

	r, l := newTestRuntime(t)
	l.RegisterObject("counter.new", func(context.Context, []any) (any, error) {
		return &counter{}, nil
	})
	l.Register("counter.incr", func(_ context.Context, args []any) ([]byte, error) {
		c, ok := pool.Peek[*counter](l.Pool(), args[0].(riko.Handle))
		if !ok {
			return nil, stderrors.New("dangling handle")
		}
		c.n++
		return codec.Success(c.n)
	})

	obj, err := r.Object(context.Background(), "counter.new")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := Call[int64](context.Background(), r, "counter.incr", obj)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	// A released proxy must fail before the boundary is reached.
	obj.Release()
	func() {
		defer func() {
			if recover() == nil {
				t.Error("call through a released proxy did not panic")
			}
		}()
		_, _ = Call[int64](context.Background(), r, "counter.incr", obj)
	}()
}

func TestAsync_Delivery(t *testing.T) {
	r, l := newTestRuntime(t)
	l.RegisterAsync("work", func(context.Context, []any) ([]byte, error) {
		return codec.Success("done")
	})

	call, err := Async[string](context.Background(), r, "work")
	if err != nil {
		t.Fatalf("Async: %v", err)
	}

	got, err := call.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "done" {
		t.Errorf("result = %q, want %q", got, "done")
	}
}

func TestAsync_Cancel(t *testing.T) {
	r, l := newTestRuntime(t)

	started := make(chan struct{})
	l.RegisterAsync("slow", func(ctx context.Context, _ []any) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return codec.Success("never seen")
	})

	call, err := Async[string](context.Background(), r, "slow")
	if err != nil {
		t.Fatalf("Async: %v", err)
	}
	<-started

	if !call.Cancel() {
		t.Fatal("Cancel failed")
	}

	_, err = call.Get()
	if !stderrors.Is(err, errors.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestStream_EndToEnd(t *testing.T) {
	r, l := newTestRuntime(t)
	l.RegisterObject("range.new", func(_ context.Context, args []any) (any, error) {
		return &rangeIter{limit: args[0].(int64)}, nil
	})

	s, err := r.Stream(context.Background(), "range.new", int64(3))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	got, err := stream.Collect[int64](context.Background(), s)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("elements = %v, want [0 1 2]", got)
	}
	if l.Pool().Len() != 0 {
		t.Error("native iterator leaked after stream completion")
	}
}

func TestClose_CancelsOutstanding(t *testing.T) {
	l := engine.NewLocal()
	r := New(l)

	block := make(chan struct{})
	l.RegisterAsync("hang", func(ctx context.Context, _ []any) ([]byte, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return codec.Success(nil)
	})

	call, err := Async[any](context.Background(), r, "hang")
	if err != nil {
		t.Fatalf("Async: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := call.Get()
		done <- err
	}()

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if !stderrors.Is(err, errors.ErrCancelled) {
			t.Fatalf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("awaiter still blocked after Close")
	}
	close(block)
}

// rangeIter is a native-side iterator yielding 0..limit-1 as envelopes.
type rangeIter struct {
	limit int64
	n     int64
}

func (it *rangeIter) Next() ([]byte, error) {
	if it.n >= it.limit {
		return []byte{}, nil
	}
	v := it.n
	it.n++
	return codec.Success(v)
}
