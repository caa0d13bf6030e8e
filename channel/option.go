package channel

const defaultMinAlloc = 2048

// Options represents custom Channel config options.
type Options struct {
	// HighWaterMark is the pending-byte count above which a commit's
	// token stays unresolved. Zero disables backpressure.
	HighWaterMark int
	// LowWaterMark is the pending-byte count at or below which an
	// unresolved token resolves.
	LowWaterMark int
	// MinAlloc is the chunk size Write reserves per commit.
	MinAlloc int
}

type Option func(*Options)

// WithHighWaterMark enables backpressure above n pending bytes.
func WithHighWaterMark(n int) Option {
	return func(ops *Options) {
		ops.HighWaterMark = n
	}
}

// WithLowWaterMark releases backpressure at or below n pending bytes.
func WithLowWaterMark(n int) Option {
	return func(ops *Options) {
		ops.LowWaterMark = n
	}
}

func WithMinAlloc(n int) Option {
	return func(ops *Options) {
		if n > 0 {
			ops.MinAlloc = n
		}
	}
}
