package pump

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iopump/pipes/channel"
	"github.com/iopump/pipes/internal/gopool"
	"github.com/iopump/pipes/internal/loop"
	"github.com/iopump/pipes/memory"
)

// Pump drives one handle's read side into one channel's writable half.
// It runs entirely on the loop executor: the alloc callback opens a write
// reservation, the read callback commits it, and when the commit token
// reports backpressure the pump stops the socket, waits for the token
// off-loop and resumes reading back on the executor. A pump serves one
// connection, starts once and is never restarted after it stops.
type Pump struct {
	handle Handle
	ch     *channel.Channel
	loop   *loop.Executor
	log    zerolog.Logger

	minAlloc int

	// loop-affine state, touched only on the executor
	cur      memory.Cursor
	buf      []byte
	reserved bool
	stopped  bool
}

func New(h Handle, ch *channel.Channel, ex *loop.Executor, opts ...Option) *Pump {
	ops := Options{MinAlloc: defaultMinAlloc, Logger: log.Logger}
	for _, op := range opts {
		op(&ops)
	}
	return &Pump{
		handle:   h,
		ch:       ch,
		loop:     ex,
		log:      ops.Logger,
		minAlloc: ops.MinAlloc,
	}
}

// Start begins reading from the handle on the loop executor.
func (p *Pump) Start() {
	p.loop.Submit(func() {
		if p.stopped {
			return
		}
		if err := p.handle.StartReading(p.alloc, p.onRead); err != nil {
			p.log.Error().Err(err).Msg("pump: start reading")
			p.terminate(err)
		}
	})
}

// Stop ends the pump explicitly: reading stops permanently and the
// channel's write side completes without an error.
func (p *Pump) Stop() {
	p.loop.Submit(func() {
		if p.stopped {
			return
		}
		p.endWrite()
		p.terminate(nil)
	})
}

func (p *Pump) alloc() []byte {
	if p.stopped {
		return nil
	}
	if p.reserved {
		// the previous callback reported no data; the reservation is
		// still open, hand out the same range
		return p.buf
	}
	cur, buf, err := p.ch.BeginWrite(p.minAlloc)
	if err != nil {
		p.log.Error().Err(err).Msg("pump: write reservation refused")
		p.terminate(nil)
		return nil
	}
	p.cur = cur
	p.buf = buf
	p.reserved = true
	return buf
}

func (p *Pump) onRead(status Status, n int) {
	if p.stopped {
		return
	}
	if status == StatusAgain {
		// transient no-data, the reservation stays open
		return
	}
	if status > 0 {
		p.ch.UpdateEnd(p.cur, n)
		f := p.endWrite()
		if n == 0 {
			// a successful read of nothing is the peer shutting down
			p.terminate(nil)
			return
		}
		if f != nil && !f.Resolved() {
			p.pause(f)
		}
		return
	}

	// negative status: the socket is done producing
	err := status.Err()
	if err != nil {
		p.log.Error().Int("status", int(status)).Err(err).Msg("pump: native read error")
	}
	p.endWrite()
	p.terminate(err)
}

// endWrite commits the open reservation, if any. Partial bytes received
// before a terminal status are still committed this way.
func (p *Pump) endWrite() *channel.Flush {
	if !p.reserved {
		return nil
	}
	p.reserved = false
	p.buf = nil
	return p.ch.EndWrite(p.cur)
}

// terminate stops reading permanently and completes the channel's write
// side. The channel carries err to the consumer; the pump reports nothing
// upward.
func (p *Pump) terminate(err error) {
	p.stopped = true
	if serr := p.handle.StopReading(); serr != nil {
		p.log.Debug().Err(serr).Msg("pump: stop reading")
	}
	p.ch.CompleteWriting(err)
}

// pause throttles the socket until the flush token resolves, then
// resumes reading. The wait happens off-loop; the resumption re-marshals
// onto the executor before touching the handle again.
func (p *Pump) pause(f *channel.Flush) {
	if err := p.handle.StopReading(); err != nil {
		p.log.Debug().Err(err).Msg("pump: stop reading")
	}
	gopool.Go(func() {
		err := f.Wait(context.Background())
		p.loop.Submit(func() {
			p.resume(err)
		})
	})
}

func (p *Pump) resume(err error) {
	if p.stopped {
		return
	}
	if err != nil {
		// the consumer aborted; stop producing into a dead channel
		p.log.Debug().Err(err).Msg("pump: consumer aborted")
		p.terminate(nil)
		return
	}
	if serr := p.handle.StartReading(p.alloc, p.onRead); serr != nil {
		p.log.Error().Err(serr).Msg("pump: restart reading")
		p.terminate(serr)
	}
}
