package pump

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	ierr "github.com/iopump/pipes/internal/errors"
	"github.com/iopump/pipes/internal/gopool"
	"github.com/iopump/pipes/internal/loop"
)

// NetHandle adapts a net.Conn to the Handle contract. A dedicated read
// goroutine performs the blocking reads and delivers the alloc/read
// callbacks through the loop executor, so the pump observes the same
// single-threaded callback discipline a native event loop gives it.
// StopReading parks the goroutine after the in-flight read completes;
// StartReading resumes it. Close the handle before closing the executor.
type NetHandle struct {
	conn net.Conn
	loop *loop.Executor

	mu      sync.Mutex
	alloc   AllocFunc
	read    ReadFunc
	paused  bool
	started bool

	wake   chan struct{}
	done   chan struct{}
	closed int32
}

var _ Handle = (*NetHandle)(nil)

func NewNetHandle(conn net.Conn, ex *loop.Executor) *NetHandle {
	return &NetHandle{
		conn: conn,
		loop: ex,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (h *NetHandle) StartReading(alloc AllocFunc, read ReadFunc) error {
	if atomic.LoadInt32(&h.closed) == 1 {
		return ierr.New("pump: handle closed")
	}
	h.mu.Lock()
	h.alloc, h.read = alloc, read
	h.paused = false
	if !h.started {
		h.started = true
		h.mu.Unlock()
		gopool.Go(h.readLoop)
		return nil
	}
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

// StopReading pauses callback delivery before the next read. It never
// interrupts a read already blocked on the socket.
func (h *NetHandle) StopReading() error {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
	return nil
}

func (h *NetHandle) Write(ctx context.Context, bufs net.Buffers) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = h.conn.SetWriteDeadline(deadline)
	}
	if _, err := bufs.WriteTo(h.conn); err != nil {
		return ierr.Wrap(err, "pump: socket write")
	}
	return nil
}

func (h *NetHandle) Close() error {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return nil
	}
	close(h.done)
	return h.conn.Close()
}

func (h *NetHandle) readLoop() {
	for {
		if atomic.LoadInt32(&h.closed) == 1 {
			return
		}
		h.mu.Lock()
		paused, alloc, read := h.paused, h.alloc, h.read
		h.mu.Unlock()
		if paused {
			select {
			case <-h.wake:
				continue
			case <-h.done:
				return
			}
		}

		var buf []byte
		if !h.inLoop(func() { buf = alloc() }) {
			return
		}
		if buf == nil {
			return
		}
		n, err := h.conn.Read(buf)
		st := normalize(n, err)
		if !h.inLoop(func() { read(st, n) }) {
			return
		}
		if st < 0 {
			return
		}
	}
}

// inLoop runs fn on the executor and waits for it, keeping the callback
// ordering the Handle contract promises. It gives up once the handle is
// closed, so teardown never wedges on a stopped executor.
func (h *NetHandle) inLoop(fn func()) bool {
	done := make(chan struct{})
	h.loop.Submit(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return true
	case <-h.done:
		return false
	}
}

// normalize maps a net.Conn read result to the native status model.
func normalize(n int, err error) Status {
	if n > 0 {
		// deliver the bytes; a terminal condition resurfaces on the
		// next read
		return Status(n)
	}
	if err == nil {
		return StatusAgain
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return StatusEOF
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return Status(-int(errno))
	}
	return Status(-int(unix.EIO))
}
