package stream

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/codec"
	"github.com/seamlik/riko/errors"
	"github.com/seamlik/riko/heap"
)

func valueEnvelope(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	data, err := codec.Encode(&codec.Envelope{Value: codec.RawValue(raw)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func errorEnvelope(t *testing.T, message string) []byte {
	t.Helper()
	data, err := codec.Encode(&codec.Envelope{
		Err: &codec.ErrorInfo{Message: message, Debug: "Err(" + message + ")"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

// scriptedIterator plays back payloads, then zero-length forever, counting
// pulls and drops.
func scriptedIterator(pulls, drops *atomic.Int32, payloads ...[]byte) *heap.Iterator {
	i := 0
	next := func(riko.Handle) ([]byte, error) {
		pulls.Add(1)
		if i >= len(payloads) {
			return []byte{}, nil
		}
		p := payloads[i]
		i++
		return p, nil
	}
	drop := func(riko.Handle) { drops.Add(1) }
	return heap.NewIterator(3, drop, next)
}

func TestStream_EmitsAllThenCompletes(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops,
		valueEnvelope(t, "A"),
		valueEnvelope(t, "B"),
	)

	s := New(it)
	got, err := Collect[string](context.Background(), s)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("elements = %v, want [A B]", got)
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
	if pulls.Load() != 3 { // A, B, exhaustion sentinel
		t.Errorf("pulls = %d, want 3", pulls.Load())
	}
}

func TestStream_ConsumesProxy(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops)
	New(it)

	defer func() {
		if recover() == nil {
			t.Fatal("direct Next on a wrapped iterator did not panic")
		}
	}()
	_, _ = it.Next()
}

func TestStream_CancelBetweenElements(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops,
		valueEnvelope(t, "A"),
		valueEnvelope(t, "B"),
		valueEnvelope(t, "C"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	err := Each[string](ctx, New(it), func(v string) error {
		got = append(got, v)
		cancel() // downstream cancels after the first element
		return nil
	})

	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(got) != 1 || got[0] != "A" {
		t.Errorf("elements = %v, want [A]", got)
	}
	// At most one pull beyond the cancellation point, never two.
	if pulls.Load() > 2 {
		t.Errorf("pulls = %d after cancellation, want <= 2", pulls.Load())
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
}

func TestStream_ErrorArmTerminates(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops,
		valueEnvelope(t, "A"),
		errorEnvelope(t, "iteration failed"),
		valueEnvelope(t, "C"),
	)

	var got []string
	err := Each[string](context.Background(), New(it), func(v string) error {
		got = append(got, v)
		return nil
	})

	var domain *errors.Domain
	if !stderrors.As(err, &domain) || domain.Message != "iteration failed" {
		t.Fatalf("err = %v, want domain error", err)
	}
	if len(got) != 1 {
		t.Errorf("elements before failure = %v, want [A]", got)
	}
	if pulls.Load() != 2 {
		t.Errorf("pulls = %d, want 2 (no pull past the error)", pulls.Load())
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
}

func TestStream_MalformedElement(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops, []byte{0xc1})

	err := New(it).Each(context.Background(), func(codec.RawValue) error { return nil })
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindMalformedPayload}) {
		t.Fatalf("err = %v, want malformed payload", err)
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
}

func TestStream_ConsumerErrorStopsPulling(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops,
		valueEnvelope(t, "A"),
		valueEnvelope(t, "B"),
	)

	sentinel := stderrors.New("enough")
	err := Each[string](context.Background(), New(it), func(string) error { return sentinel })

	if !stderrors.Is(err, sentinel) {
		t.Fatalf("err = %v, want consumer sentinel", err)
	}
	if pulls.Load() != 1 {
		t.Errorf("pulls = %d, want 1", pulls.Load())
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
}

func TestStream_Chan(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops,
		valueEnvelope(t, int64(1)),
		valueEnvelope(t, int64(2)),
	)

	var got []int64
	for item := range New(it).Chan(context.Background(), 1) {
		if item.Err != nil {
			t.Fatalf("item error: %v", item.Err)
		}
		v, err := codec.DecodeValue[int64](item.Value)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, v)
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("elements = %v, want [1 2]", got)
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
}

func TestStream_ChanEmitsTerminalError(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops, errorEnvelope(t, "boom"))

	var last Item
	n := 0
	for item := range New(it).Chan(context.Background(), 0) {
		last = item
		n++
	}

	if n != 1 {
		t.Fatalf("items = %d, want 1", n)
	}
	var domain *errors.Domain
	if !stderrors.As(last.Err, &domain) {
		t.Fatalf("terminal item error = %v, want domain error", last.Err)
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
}

func TestStream_ChanCancellation(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops,
		valueEnvelope(t, "A"),
		valueEnvelope(t, "B"),
		valueEnvelope(t, "C"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	ch := New(it).Chan(ctx, 0)

	first, ok := <-ch
	if !ok || first.Err != nil {
		t.Fatalf("first item = (%+v, %v)", first, ok)
	}
	cancel()

	for range ch {
		// drain until the loop notices cancellation and closes
	}

	if pulls.Load() > 2 {
		t.Errorf("pulls = %d after cancellation, want <= 2", pulls.Load())
	}
	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
}

func TestStream_CloseAbandoned(t *testing.T) {
	var pulls, drops atomic.Int32
	it := scriptedIterator(&pulls, &drops, valueEnvelope(t, "A"))

	s := New(it)
	s.Close()
	s.Close()

	if drops.Load() != 1 {
		t.Errorf("iterator released %d times, want 1", drops.Load())
	}
	if pulls.Load() != 0 {
		t.Errorf("abandoned stream pulled %d times, want 0", pulls.Load())
	}
}
