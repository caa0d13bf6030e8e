package pump

import "github.com/rs/zerolog"

const defaultMinAlloc = 2048

// Options represents custom Pump and Sender config options.
type Options struct {
	// MinAlloc is the smallest writable range requested per reservation.
	MinAlloc int
	Logger   zerolog.Logger
}

type Option func(*Options)

func WithMinAlloc(n int) Option {
	return func(ops *Options) {
		if n > 0 {
			ops.MinAlloc = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(ops *Options) {
		ops.Logger = l
	}
}
