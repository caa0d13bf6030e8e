package pump

import (
	"golang.org/x/sys/unix"

	"github.com/iopump/pipes/internal/errors"
)

// Status is the signed code a native handle reports to the read callback:
// positive values carry a byte count, zero means no data right now, and
// negative values end the read side — StatusEOF and a connection reset
// are graceful peer closes, any other negative value is the errno of a
// native I/O failure.
type Status int

const (
	// StatusAgain reports no data available; the open reservation stays
	// open and the pump waits for the next callback.
	StatusAgain Status = 0

	// StatusEOF reports a graceful peer close. Deliberately outside the
	// errno range.
	StatusEOF Status = -4095
)

// StatusReset is the peer-reset condition, folded into graceful close.
var StatusReset = Status(-int(unix.ECONNRESET))

// Err translates a status into the error the channel carries. Graceful
// conditions and non-negative statuses yield nil.
func (s Status) Err() error {
	if s >= 0 || s == StatusEOF || s == StatusReset {
		return nil
	}
	return errors.New("pump: native read failed: %s", unix.Errno(-s))
}
