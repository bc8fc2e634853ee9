package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Yield delivers one progress message to the live consumer. It blocks until
// the consumer pulls the message and returns false when the consumer is gone
// (context canceled), in which case the producer should stop promptly.
type Yield func(Message) bool

// ProducerFunc is one unit of node work. It streams progress through yield
// and returns the terminal value, or an error: a *PreconditionFailure for an
// expected stop, anything else for an uncategorized failure.
type ProducerFunc func(ctx context.Context, yield Yield) (any, error)

// Result is the dual-channel outcome of one unit of work: a lazy, single-pass,
// forward-only stream of progress messages paired with exactly one deferred
// terminal value.
//
// The producer runs in its own goroutine and hands messages over an unbuffered
// channel, so each yield may perform blocking work (a network round-trip, a
// browser action, a model call) and nothing is computed ahead of the message
// the consumer is currently holding. The consumer drains the stream with Next
// until it reports false, then reads the terminal value with Value. Exhaust
// collapses both steps when nobody cares about the messages.
//
// A consumer that abandons iteration early must call Close, which cancels the
// producer and drains the channel so the goroutine always terminates.
type Result struct {
	msgs   chan Message
	cancel context.CancelFunc

	// value and err are written by the producer goroutine before msgs is
	// closed; the channel close is the happens-before edge that makes them
	// safe to read once the consumer has observed the end of the stream.
	value any
	err   error

	exhausted atomic.Bool
	closeOnce sync.Once
}

// NewResult starts run in a producer goroutine and returns its dual-channel
// handle. A panic inside run is captured as an uncategorized failure rather
// than taking down the consumer.
func NewResult(ctx context.Context, run ProducerFunc) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := &Result{
		msgs:   make(chan Message),
		cancel: cancel,
	}

	yield := func(m Message) bool {
		select {
		case r.msgs <- m:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(r.msgs)
		defer func() {
			if rec := recover(); rec != nil {
				r.err = fmt.Errorf("node panicked: %v", rec)
			}
		}()
		r.value, r.err = run(ctx, yield)
	}()

	return r
}

// Wrap returns r unchanged. Wrapping an already-wrapped result is idempotent:
// it neither restarts the stream nor discards a resolved terminal value.
func Wrap(r *Result) *Result { return r }

// Next pulls the next message from the stream. It returns false once the
// stream is exhausted, after which the terminal value is available.
func (r *Result) Next() (Message, bool) {
	m, ok := <-r.msgs
	if !ok {
		r.exhausted.Store(true)
	}
	return m, ok
}

// Value returns the terminal value once the stream has been drained. Called
// earlier it fails with ErrValueNotAvailable; called any number of times
// after exhaustion it returns the identical outcome without re-executing the
// producer.
func (r *Result) Value() (any, error) {
	if !r.exhausted.Load() {
		return nil, ErrValueNotAvailable
	}
	return r.value, r.err
}

// Exhaust drains the stream, discarding messages, and returns the terminal
// value. Equivalent to pulling Next until the stream ends and reading Value.
func (r *Result) Exhaust() (any, error) {
	for {
		if _, ok := r.Next(); !ok {
			break
		}
	}
	return r.value, r.err
}

// Close releases the producer when the consumer abandons iteration early.
// It cancels the producer's context and drains remaining messages so the
// goroutine terminates deterministically. Close is safe to call more than
// once and after exhaustion.
func (r *Result) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		for range r.msgs {
		}
		r.exhausted.Store(true)
	})
}

// ValueAs reads the terminal value of an exhausted result as T.
func ValueAs[T any](r *Result) (T, error) {
	var zero T
	v, err := r.Value()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("terminal value is %T, not %T", v, zero)
	}
	return t, nil
}
