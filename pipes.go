// Package pipes moves bytes between a native, callback-driven socket
// event source and stream consumers over pooled memory blocks.
//
// The building blocks live in subpackages: memory owns the block pool and
// chain/cursor arithmetic, channel is the single-producer single-consumer
// pipe with backpressure, pump drives a native handle into a channel's
// writable half, and stream wraps a channel pair as a conventional
// bidirectional stream for protocol filters.
package pipes

import (
	"context"
	"errors"
)

var (
	// ErrNotSupported is returned by stream operations the transport does
	// not implement, such as seeking.
	ErrNotSupported = errors.New("pipes: operation not supported")

	// ErrConcurrentRead reports a second read issued while another one is
	// still in flight on the same readable half.
	ErrConcurrentRead = errors.New("pipes: another read is in progress")

	// ErrConcurrentWrite reports a write reservation opened while the
	// previous one has not been committed.
	ErrConcurrentWrite = errors.New("pipes: another write reservation is open")

	// ErrWritingCompleted reports a write after CompleteWriting.
	ErrWritingCompleted = errors.New("pipes: writing has been completed")

	// ErrReadingCompleted reports a read after CompleteReading.
	ErrReadingCompleted = errors.New("pipes: reading has been completed")
)

// Reader is the readable half of a channel. A single consumer reads
// committed bytes in order; Read returns io.EOF once the producer has
// completed writing and all pending bytes are drained.
type Reader interface {
	Read(ctx context.Context, p []byte) (n int, err error)

	// CompleteReading marks the half as done reading. A non-nil err is
	// surfaced to the producer on its next commit.
	CompleteReading(err error)
}

// WriteCloser is the writable half of a channel as seen by byte-copying
// producers such as the stream adapter. Writes are durable once accepted.
type WriteCloser interface {
	Write(ctx context.Context, p []byte) (n int, err error)

	// CompleteWriting marks the half as done writing, optionally carrying
	// an error the consumer observes after draining pending bytes.
	CompleteWriting(err error)
}
