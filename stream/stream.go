// Package stream exposes a channel pair as a conventional bidirectional
// byte stream, the contract boundary a protocol or TLS filter layers on.
package stream

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/iopump/pipes"
)

// Conn wraps one channel's readable half and a (possibly different)
// channel's writable half as a single stream. Reads and writes delegate
// straight to the halves: there is no internal buffering, so a write is
// durable once accepted and Flush is a no-op. The transport is
// non-seekable; position and length operations are not supported.
type Conn struct {
	in     pipes.Reader
	out    pipes.WriteCloser
	closed int32
}

var _ io.ReadWriteCloser = (*Conn)(nil)

func New(in pipes.Reader, out pipes.WriteCloser) *Conn {
	return &Conn{in: in, out: out}
}

// Read blocks until the readable half delivers bytes and returns io.EOF
// at end-of-data.
func (c *Conn) Read(p []byte) (int, error) {
	return c.in.Read(context.Background(), p)
}

// ReadContext is Read with cancellation.
func (c *Conn) ReadContext(ctx context.Context, p []byte) (int, error) {
	return c.in.Read(ctx, p)
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.out.Write(context.Background(), p)
}

// WriteContext is Write with cancellation, honored only while the write
// waits out backpressure; bytes already committed stay committed.
func (c *Conn) WriteContext(ctx context.Context, p []byte) (int, error) {
	return c.out.Write(ctx, p)
}

// Flush is a no-op: writes are durable once accepted.
func (c *Conn) Flush() error {
	return nil
}

func (c *Conn) Seek(offset int64, whence int) (int64, error) {
	return 0, pipes.ErrNotSupported
}

func (c *Conn) Length() (int64, error) {
	return 0, pipes.ErrNotSupported
}

func (c *Conn) Position() (int64, error) {
	return 0, pipes.ErrNotSupported
}

func (c *Conn) SetPosition(int64) error {
	return pipes.ErrNotSupported
}

func (c *Conn) SetLength(int64) error {
	return pipes.ErrNotSupported
}

// Close completes writing on the output half so downstream consumers see
// end-of-data. The readable half's upstream producer is externally owned
// and stays untouched.
func (c *Conn) Close() error {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.out.CompleteWriting(nil)
	}
	return nil
}
