package heap

import (
	"github.com/seamlik/riko"
	"github.com/seamlik/riko/errors"
)

// Iterator is an Object with the pull capability. The native side exposes
// no "has more" probe independent of pulling; availability can only be
// discovered by pulling, and a zero-length payload is the exhaustion
// sentinel.
type Iterator struct {
	*Object
	next riko.NextFunc
}

// NewIterator wraps an iterator handle with its paired next and drop
// primitives.
func NewIterator(handle riko.Handle, drop riko.DropFunc, next riko.NextFunc) *Iterator {
	return &Iterator{
		Object: NewObject(handle, drop),
		next:   next,
	}
}

// Next pulls one element. The payload is an encoded result envelope;
// zero-length means the iterator is exhausted. Panics after Release or
// Consume. Pulls must be serialized by the caller.
func (it *Iterator) Next() ([]byte, error) {
	it.Guard()
	return it.pull()
}

// Consume transfers exclusive pulling to the returned Cursor. The iterator
// itself becomes unusable for direct calls; the cursor shares the
// release-once guarantee with it.
func (it *Iterator) Consume() *Cursor {
	it.Object.Consume()
	return &Cursor{it: it}
}

func (it *Iterator) pull() ([]byte, error) {
	data, err := it.next(it.handle)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStream, errors.KindCallFailed, err, "pull").WithHandle(int64(it.handle))
	}
	return data, nil
}

// Cursor is the exclusive pull capability over a consumed Iterator. Only
// one cursor exists per iterator, which serializes pulls by construction.
type Cursor struct {
	it *Iterator
}

// Pull pulls one element; zero-length payload means exhausted. Panics if
// the underlying object has already been released.
func (c *Cursor) Pull() ([]byte, error) {
	if c.it.Released() {
		panic(errors.Misuse(errors.PhaseStream, "pull after release").WithHandle(int64(c.it.handle)))
	}
	return c.it.pull()
}

// Handle returns the underlying iterator handle.
func (c *Cursor) Handle() riko.Handle {
	return c.it.handle
}

// Release drops the native iterator exactly once, shared with the
// originating Object.
func (c *Cursor) Release() {
	c.it.Release()
}
