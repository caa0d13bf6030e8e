package pump

import (
	"context"
	"net"
)

// AllocFunc asks the pump for a writable range to read into. A nil range
// means the pump cannot accept data and reading must stop.
type AllocFunc func() []byte

// ReadFunc delivers the outcome of one native read into the range the
// matching AllocFunc call handed out. n is the effective byte count and
// is meaningful only for positive statuses.
type ReadFunc func(status Status, n int)

// Handle is the opaque native socket surface the pump drives. All calls
// happen on the pump's loop executor, and implementations must deliver
// the alloc/read callbacks there too: the pump relies on the native
// contract that alloc is never invoked again before the previous read
// callback returned. StartReading after StopReading resumes delivery.
type Handle interface {
	StartReading(alloc AllocFunc, read ReadFunc) error
	StopReading() error

	// Write performs a gather write of bufs to the socket, honoring the
	// context's deadline where the underlying transport supports one.
	Write(ctx context.Context, bufs net.Buffers) error

	Close() error
}
