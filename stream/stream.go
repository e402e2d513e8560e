package stream

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/seamlik/riko/codec"
	"github.com/seamlik/riko/heap"
)

// Item is one emission of a streamed sequence: an encoded element or the
// error that terminated it. Cancellation produces no Item.
type Item struct {
	Value codec.RawValue
	Err   error
}

// Stream adapts a native pull iterator into a push-based sequence. The
// iterator proxy is consumed on wrap, so the stream is its sole owner and
// pulls are serialized by construction. Whatever way the sequence ends
// (exhaustion, native error, downstream cancellation, or Close on an
// abandoned stream) the native iterator is released exactly once.
type Stream struct {
	cur *heap.Cursor
	log *zap.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Stream) { s.log = log }
}

// New wraps a native iterator proxy. The proxy is consumed: direct calls
// on it panic from here on, and the stream carries the release
// responsibility.
func New(it *heap.Iterator, opts ...Option) *Stream {
	s := &Stream{
		cur: it.Consume(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Each runs the pull loop on the calling goroutine, invoking fn once per
// element. Between pulls it checks ctx, so after cancellation at most the
// pull already in flight completes and no further element is taken from
// the native side. Returns nil on normal exhaustion, ctx.Err() on
// cancellation, the decoded domain error if the native side terminated the
// sequence with one, or fn's error if the consumer stopped early. The
// underlying iterator is released before Each returns.
//
// Each pull blocks until the native side produces an element; consumers
// wanting non-blocking consumption should use Chan.
func (s *Stream) Each(ctx context.Context, fn func(codec.RawValue) error) error {
	defer s.cur.Release()

	for {
		if err := ctx.Err(); err != nil {
			s.log.Debug("stream cancelled", zap.Int64("handle", int64(s.cur.Handle())))
			return err
		}

		payload, err := s.cur.Pull()
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			// Exhaustion sentinel: the sequence ended normally.
			return nil
		}

		env, err := codec.Decode(payload)
		if err != nil {
			return err
		}
		raw, err := env.Unwrap()
		if err != nil {
			return err
		}

		if err := fn(raw); err != nil {
			return err
		}
	}
}

// Chan runs the pull loop on its own goroutine and emits through a channel
// with the given buffer; channel capacity is the backpressure bound, and a
// full channel blocks the loop before the next pull. The channel closes on
// any termination. Cancellation closes the channel without emitting an
// error Item; every other failure is emitted as the final Item.
func (s *Stream) Chan(ctx context.Context, buf int) <-chan Item {
	ch := make(chan Item, buf)

	go func() {
		defer close(ch)

		err := s.Each(ctx, func(raw codec.RawValue) error {
			select {
			case ch <- Item{Value: raw}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return
		}
		select {
		case ch <- Item{Err: err}:
		case <-ctx.Done():
		}
	}()

	return ch
}

// Close releases the native iterator without consuming the stream. Safe to
// call at any point and any number of times; the release happens once.
func (s *Stream) Close() {
	s.cur.Release()
}

// Each decodes every element into T before handing it to fn.
func Each[T any](ctx context.Context, s *Stream, fn func(T) error) error {
	return s.Each(ctx, func(raw codec.RawValue) error {
		v, err := codec.DecodeValue[T](raw)
		if err != nil {
			return err
		}
		return fn(v)
	})
}

// Collect drains the stream into a slice of T.
func Collect[T any](ctx context.Context, s *Stream) ([]T, error) {
	var out []T
	err := Each(ctx, s, func(v T) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
