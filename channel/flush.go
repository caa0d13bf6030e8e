package channel

import "context"

// Flush is the completion token EndWrite returns. It is already resolved
// unless the commit pushed pending bytes over the high-water mark; then
// it resolves once the reader drains to the low-water mark, or
// immediately, carrying the consumer's error, once reading is completed.
// Single-waiter: a producer holds at most one unresolved token.
type Flush struct {
	done chan struct{}
	err  error
}

// resolved is the shared token handed out when no backpressure is active,
// so the uncongested commit path allocates nothing.
var resolved = func() *Flush {
	f := newFlush()
	f.resolve(nil)
	return f
}()

func newFlush() *Flush {
	return &Flush{done: make(chan struct{})}
}

// Resolved reports whether the token has completed. The pump uses it as
// the fast path to keep reading without suspending.
func (f *Flush) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done is closed when the token resolves.
func (f *Flush) Done() <-chan struct{} {
	return f.done
}

// Err returns the carried error. Valid only after Done is closed.
func (f *Flush) Err() error {
	return f.err
}

// Wait blocks until the token resolves or ctx is done.
func (f *Flush) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Flush) resolve(err error) {
	f.err = err
	close(f.done)
}

func resolvedWith(err error) *Flush {
	if err == nil {
		return resolved
	}
	f := newFlush()
	f.resolve(err)
	return f
}
