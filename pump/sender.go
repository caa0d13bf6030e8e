package pump

import (
	"context"
	"io"
	"net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iopump/pipes"
	"github.com/iopump/pipes/internal/gopool"
)

const sendBufferSize = 4096

// Sender is the outbound leg of the bridge: it drains a channel's
// readable half and gather-writes the bytes to the handle. It owns
// neither the handle nor the upstream producer; on exit it completes
// reading on the channel, carrying the socket write error when there was
// one so the producer stops filling a pipe nobody flushes.
type Sender struct {
	handle Handle
	r      pipes.Reader
	log    zerolog.Logger
	done   chan struct{}
}

func NewSender(h Handle, r pipes.Reader, opts ...Option) *Sender {
	ops := Options{Logger: log.Logger}
	for _, op := range opts {
		op(&ops)
	}
	return &Sender{
		handle: h,
		r:      r,
		log:    ops.Logger,
		done:   make(chan struct{}),
	}
}

// Start drains the channel on a worker-pool goroutine.
func (s *Sender) Start() {
	gopool.Go(s.run)
}

// Done is closed once the sender has stopped draining.
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

func (s *Sender) run() {
	defer close(s.done)
	buf := make([]byte, sendBufferSize)
	for {
		n, err := s.r.Read(context.Background(), buf)
		if n > 0 {
			if werr := s.handle.Write(context.Background(), net.Buffers{buf[:n]}); werr != nil {
				s.log.Error().Err(werr).Msg("sender: socket write")
				s.r.CompleteReading(werr)
				return
			}
		}
		switch {
		case err == nil:
		case err == io.EOF:
			s.r.CompleteReading(nil)
			return
		default:
			// upstream already carries the error, nothing to propagate back
			s.log.Debug().Err(err).Msg("sender: upstream closed")
			s.r.CompleteReading(nil)
			return
		}
	}
}
