package gopool

import (
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/iopump/pipes/internal/errors"
)

// DefaultPoolSize caps the shared worker pool, 64 * 1024.
var DefaultPoolSize = 1 << 16

const (
	// expiryDuration is the interval to clean up expired workers.
	expiryDuration = 10 * time.Second
)

var pool *ants.Pool

func init() {
	// It releases the default pool from ants, the module owns its own.
	ants.Release()

	p, err := ants.NewPool(DefaultPoolSize, ants.WithOptions(ants.Options{
		ExpiryDuration: expiryDuration,
		Nonblocking:    true,
		PanicHandler: func(v interface{}) {
			log.Error().Err(errors.AsError(v)).Msg("gopool: task panicked")
		},
	}))
	if err != nil {
		log.Warn().Err(err).Msg("gopool: worker pool unavailable, falling back to raw goroutines")
		return
	}
	pool = p
}

// Go runs fn on the shared worker pool. When the pool is saturated or
// unavailable the task runs on a raw goroutine instead, so Go never blocks
// and never drops a task.
func Go(fn func()) {
	if pool != nil && pool.Submit(fn) == nil {
		return
	}
	go func() {
		defer func() {
			if v := recover(); v != nil {
				log.Error().Err(errors.AsError(v)).Msg("gopool: task panicked")
			}
		}()
		fn()
	}()
}

// Release stops the shared pool. Tasks submitted afterwards run on raw
// goroutines.
func Release() {
	if pool != nil {
		pool.Release()
		pool = nil
	}
}
