package channel

import (
	"context"
	"io"
	"sync"

	"github.com/iopump/pipes"
	"github.com/iopump/pipes/memory"
)

// Channel is the single-producer single-consumer pipe between a pump and
// a stream consumer. The producer reserves space with BeginWrite, fills
// it in place and commits with EndWrite; the consumer copies committed
// bytes out with Read. Bytes become visible in commit order. Completion
// flags are one-way: the channel is terminal once both halves completed,
// at which point the block chain goes back to the pool.
//
// Neither half tolerates overlapping operations: a second concurrent
// reservation or read is a usage error, reported loudly rather than
// serialized.
type Channel struct {
	mu    sync.Mutex
	chain *memory.Chain
	ops   Options

	commit  memory.Cursor
	consume memory.Cursor
	pending int

	reserving bool
	reading   bool

	// readWake parks the single pending reader; nil when nobody waits.
	readWake chan struct{}
	// flush is the unresolved backpressure token; nil when none.
	flush *Flush

	writingDone bool
	writeErr    error
	readingDone bool
	readErr     error
}

var (
	_ pipes.Reader      = (*Channel)(nil)
	_ pipes.WriteCloser = (*Channel)(nil)
)

func New(pool *memory.Pool, opts ...Option) *Channel {
	ops := Options{MinAlloc: defaultMinAlloc}
	for _, op := range opts {
		op(&ops)
	}
	return &Channel{
		chain: memory.NewChain(pool),
		ops:   ops,
	}
}

// Pending reports the committed bytes not yet consumed.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// BeginWrite reserves at least min writable bytes at the tail of the
// chain and returns the reservation cursor plus the raw range to fill.
// Only one reservation may be open at a time.
func (c *Channel) BeginWrite(min int) (memory.Cursor, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writingDone {
		return memory.Cursor{}, nil, pipes.ErrWritingCompleted
	}
	if c.reserving {
		return memory.Cursor{}, nil, pipes.ErrConcurrentWrite
	}
	c.reserving = true
	cur, buf := c.chain.BeginWrite(min)
	return cur, buf, nil
}

// UpdateEnd records n bytes written into the range BeginWrite returned.
func (c *Channel) UpdateEnd(cur memory.Cursor, n int) {
	c.mu.Lock()
	c.chain.UpdateEnd(cur, n)
	c.mu.Unlock()
}

// EndWrite commits the open reservation, making the written bytes
// visible, and wakes at most one parked reader. The returned token is
// resolved unless the commit pushed pending bytes over the high-water
// mark. Once reading is completed the token resolves immediately carrying
// the consumer's error, so a producer never deadlocks on a dead consumer;
// bytes committed after that point are discarded.
func (c *Channel) EndWrite(cur memory.Cursor) *Flush {
	c.mu.Lock()
	if !c.reserving {
		c.mu.Unlock()
		panic("channel: EndWrite without an open reservation")
	}
	c.reserving = false

	n, commit := c.chain.Commit(cur)
	if n > 0 {
		c.pending += n
		c.commit = commit
		c.wakeReaderLocked()
	}

	if c.readingDone {
		err := c.readErr
		c.discardLocked()
		c.mu.Unlock()
		return resolvedWith(err)
	}
	if c.ops.HighWaterMark > 0 && c.pending > c.ops.HighWaterMark {
		if c.flush == nil {
			c.flush = newFlush()
		}
		f := c.flush
		c.mu.Unlock()
		return f
	}
	c.mu.Unlock()
	return resolved
}

// Write reserves, copies and commits p in MinAlloc-sized chunks, waiting
// out backpressure between commits. Cancellation is honored only while
// waiting: bytes already committed stay committed. Returns the consumer's
// abort error once reading is completed with one.
func (c *Channel) Write(ctx context.Context, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		want := len(p) - written
		if want > c.ops.MinAlloc {
			want = c.ops.MinAlloc
		}
		cur, buf, err := c.BeginWrite(want)
		if err != nil {
			return written, err
		}
		n := copy(buf, p[written:])
		c.UpdateEnd(cur, n)
		written += n
		if err := c.EndWrite(cur).Wait(ctx); err != nil {
			return written, err
		}
	}
	return written, nil
}

// CompleteWriting marks the producer done, optionally carrying an error,
// and wakes a parked reader so it observes end-of-data or the error. Only
// the first call takes effect.
func (c *Channel) CompleteWriting(err error) {
	c.mu.Lock()
	if c.writingDone {
		c.mu.Unlock()
		return
	}
	c.writingDone = true
	c.writeErr = err
	c.reserving = false
	c.wakeReaderLocked()
	c.releaseIfTerminalLocked()
	c.mu.Unlock()
}

// Read copies pending bytes into p. When bytes are pending it completes
// without suspending; otherwise the single reader parks until the
// producer commits or completes. At end-of-data it returns io.EOF, or the
// error carried by CompleteWriting once pending bytes are drained.
func (c *Channel) Read(ctx context.Context, p []byte) (int, error) {
	c.mu.Lock()
	if c.reading {
		c.mu.Unlock()
		return 0, pipes.ErrConcurrentRead
	}
	c.reading = true
	for {
		if c.pending > 0 && len(p) > 0 {
			n := c.copyLocked(p)
			c.reading = false
			c.mu.Unlock()
			return n, nil
		}
		if c.writingDone {
			err := c.writeErr
			c.reading = false
			c.mu.Unlock()
			if err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		if c.readingDone {
			c.reading = false
			c.mu.Unlock()
			return 0, pipes.ErrReadingCompleted
		}
		if len(p) == 0 {
			c.reading = false
			c.mu.Unlock()
			return 0, nil
		}
		wake := make(chan struct{})
		c.readWake = wake
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			c.mu.Lock()
			if c.readWake == wake {
				c.readWake = nil
			}
			c.reading = false
			c.mu.Unlock()
			return 0, ctx.Err()
		}
		c.mu.Lock()
	}
}

// CompleteReading marks the consumer done. A non-nil err is surfaced to
// the producer: an outstanding backpressure token resolves carrying it
// and later commits observe it too. Only the first call takes effect.
func (c *Channel) CompleteReading(err error) {
	c.mu.Lock()
	if c.readingDone {
		c.mu.Unlock()
		return
	}
	c.readingDone = true
	c.readErr = err
	f := c.flush
	c.flush = nil
	c.releaseIfTerminalLocked()
	c.mu.Unlock()

	if f != nil {
		f.resolve(err)
	}
}

func (c *Channel) copyLocked(p []byte) int {
	if c.consume.IsZero() {
		c.consume = c.chain.HeadCursor()
	}
	n, cur := c.chain.CopyTo(c.consume, c.commit, p)
	c.consume = cur
	c.pending -= n
	if f := c.flush; f != nil && c.pending <= c.ops.LowWaterMark {
		c.flush = nil
		f.resolve(nil)
	}
	return n
}

// wakeReaderLocked wakes the single parked reader, if any. One commit
// wakes at most one reader; a racing park observes the committed bytes
// instead of missing the wake, since pending is re-checked under the lock.
func (c *Channel) wakeReaderLocked() {
	if c.readWake != nil {
		close(c.readWake)
		c.readWake = nil
	}
}

func (c *Channel) discardLocked() {
	c.chain.Release()
	c.commit, c.consume = memory.Cursor{}, memory.Cursor{}
	c.pending = 0
}

func (c *Channel) releaseIfTerminalLocked() {
	if c.writingDone && c.readingDone {
		c.discardLocked()
	}
}
