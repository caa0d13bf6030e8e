package memory

import "sync/atomic"

const (
	defaultBlockSize = 4096
	defaultMaxCached = 64
)

// Options represents custom Pool config options.
type Options struct {
	// BlockSize is the fixed capacity of every pooled block.
	BlockSize int
	// MaxCached bounds how many returned blocks are kept for reuse;
	// returns beyond it are dropped for the GC.
	MaxCached int
}

type Option func(*Options)

func WithBlockSize(n int) Option {
	return func(ops *Options) {
		if n > 0 {
			ops.BlockSize = n
		}
	}
}

func WithMaxCached(n int) Option {
	return func(ops *Options) {
		if n > 0 {
			ops.MaxCached = n
		}
	}
}

// Pool lends out fixed-capacity blocks and takes them back for reuse.
// Rent never blocks: when the freelist is empty a fresh block is
// allocated. A pool is typically owned by one loop executor but rent and
// return are safe under concurrent callers, since drained blocks come
// back from consumer goroutines.
type Pool struct {
	free      chan *Block
	blockSize int

	rents   int64
	returns int64
	allocs  int64
}

func NewPool(opts ...Option) *Pool {
	ops := Options{BlockSize: defaultBlockSize, MaxCached: defaultMaxCached}
	for _, op := range opts {
		op(&ops)
	}
	return &Pool{
		free:      make(chan *Block, ops.MaxCached),
		blockSize: ops.BlockSize,
	}
}

func (p *Pool) BlockSize() int {
	return p.blockSize
}

// Rent returns a block ready for writing, reusing a cached one when
// available.
func (p *Pool) Rent() *Block {
	atomic.AddInt64(&p.rents, 1)
	select {
	case b := <-p.free:
		return b
	default:
		atomic.AddInt64(&p.allocs, 1)
		return &Block{data: make([]byte, p.blockSize), pool: p}
	}
}

// RentSized returns a block with at least n writable bytes. Requests
// within the pool's block size are served from the freelist; larger ones
// get a dedicated block that is dropped on return instead of cached.
func (p *Pool) RentSized(n int) *Block {
	if n <= p.blockSize {
		return p.Rent()
	}
	atomic.AddInt64(&p.rents, 1)
	atomic.AddInt64(&p.allocs, 1)
	return &Block{data: make([]byte, n), pool: p}
}

// Return makes a block available for reuse. The caller must hold the only
// live reference; chains call this as blocks are fully consumed.
func (p *Pool) Return(b *Block) {
	atomic.AddInt64(&p.returns, 1)
	if len(b.data) != p.blockSize {
		return
	}
	b.reset()
	select {
	case p.free <- b:
	default:
	}
}

// Stats reports cumulative pool activity.
type Stats struct {
	Rents   int64
	Returns int64
	Allocs  int64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Rents:   atomic.LoadInt64(&p.rents),
		Returns: atomic.LoadInt64(&p.returns),
		Allocs:  atomic.LoadInt64(&p.allocs),
	}
}
