package heap

import (
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/errors"
)

func countingDrop(drops *atomic.Int32) riko.DropFunc {
	return func(riko.Handle) { drops.Add(1) }
}

func mustPanicMisuse(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a misuse panic")
		}
		err, ok := r.(*errors.Error)
		if !ok {
			t.Fatalf("panic value = %T, want *errors.Error", r)
		}
		if err.Kind != errors.KindMisuse {
			t.Fatalf("panic kind = %s, want misuse", err.Kind)
		}
	}()
	fn()
}

func TestObject_ReleaseIdempotent(t *testing.T) {
	var drops atomic.Int32
	obj := NewObject(7, countingDrop(&drops))

	for i := 0; i < 5; i++ {
		obj.Release()
	}

	if got := drops.Load(); got != 1 {
		t.Fatalf("native drop called %d times, want 1", got)
	}
	if obj.Alive() {
		t.Error("released object still alive")
	}
	if !obj.Released() {
		t.Error("released object not marked released")
	}
}

func TestObject_ConcurrentRelease(t *testing.T) {
	var drops atomic.Int32
	obj := NewObject(7, countingDrop(&drops))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj.Release()
		}()
	}
	wg.Wait()

	if got := drops.Load(); got != 1 {
		t.Fatalf("native drop called %d times under contention, want 1", got)
	}
}

func TestObject_GuardAfterRelease(t *testing.T) {
	var drops atomic.Int32
	obj := NewObject(7, countingDrop(&drops))
	obj.Release()

	mustPanicMisuse(t, obj.Guard)

	// The panic fires before any native call could have happened again.
	if got := drops.Load(); got != 1 {
		t.Fatalf("drops = %d, want 1", got)
	}
}

func TestObject_GuardAfterConsume(t *testing.T) {
	var drops atomic.Int32
	obj := NewObject(7, countingDrop(&drops))
	obj.Consume()

	mustPanicMisuse(t, obj.Guard)
	mustPanicMisuse(t, obj.Consume) // consuming twice is a caller bug

	// Consume transfers, it does not deallocate.
	if got := drops.Load(); got != 0 {
		t.Fatalf("consume triggered %d drops, want 0", got)
	}

	// The consumer still releases through the same object, once.
	obj.Release()
	obj.Release()
	if got := drops.Load(); got != 1 {
		t.Fatalf("drops = %d, want 1", got)
	}
}

func TestObject_ConsumeAfterRelease(t *testing.T) {
	var drops atomic.Int32
	obj := NewObject(7, countingDrop(&drops))
	obj.Release()

	mustPanicMisuse(t, obj.Consume)
}

func TestObject_Handle(t *testing.T) {
	obj := NewObject(42, func(riko.Handle) {})
	if obj.Handle() != 42 {
		t.Fatalf("Handle() = %d, want 42", obj.Handle())
	}

	// Observing the handle stays legal after release.
	obj.Release()
	if obj.Handle() != 42 {
		t.Error("handle changed after release")
	}
}

func TestMisuse_CarriesHandle(t *testing.T) {
	obj := NewObject(9, func(riko.Handle) {})
	obj.Release()

	defer func() {
		r := recover()
		var err *errors.Error
		if !stderrors.As(r.(error), &err) {
			t.Fatalf("panic value = %T", r)
		}
		if err.Handle != 9 {
			t.Errorf("misuse handle = %d, want 9", err.Handle)
		}
	}()
	obj.Guard()
}
