package memory

// Cursor identifies a byte position within a chain: a block and an index
// into the block's storage. Two cursors on the same chain bound a
// half-open range [begin, end). The zero Cursor addresses nothing.
type Cursor struct {
	block *Block
	index int
}

func (c Cursor) Block() *Block {
	return c.block
}

func (c Cursor) Index() int {
	return c.index
}

func (c Cursor) IsZero() bool {
	return c.block == nil
}

// Chain is an ordered, singly-linked run of blocks rented from one pool,
// holding the bytes currently buffered for one channel. Blocks join at
// the tail as the producer reserves space and leave at the head as the
// consumer drains them. Chain itself is not synchronized; the owning
// channel serializes access.
type Chain struct {
	pool *Pool
	head *Block
	tail *Block
}

func NewChain(pool *Pool) *Chain {
	return &Chain{pool: pool}
}

// HeadCursor returns the position of the first unconsumed byte, or the
// zero cursor when the chain is empty.
func (ch *Chain) HeadCursor() Cursor {
	if ch.head == nil {
		return Cursor{}
	}
	return Cursor{block: ch.head, index: ch.head.start}
}

// BeginWrite ensures the tail block has at least min free bytes, renting
// and linking a new block when it does not, and returns a cursor at the
// tail's End plus the raw writable range behind it. A min of zero is a
// no-op returning the current tail position.
func (ch *Chain) BeginWrite(min int) (Cursor, []byte) {
	if ch.tail == nil {
		if min == 0 {
			return Cursor{}, nil
		}
		b := ch.pool.RentSized(min)
		ch.head, ch.tail = b, b
	} else if min > 0 && len(ch.tail.Writable()) < min {
		b := ch.pool.RentSized(min)
		ch.tail.next = b
		ch.tail = b
	}
	return Cursor{block: ch.tail, index: ch.tail.end}, ch.tail.Writable()
}

// UpdateEnd records n bytes written into the range returned by BeginWrite
// and returns the advanced cursor. The caller must not exceed the
// reported range; overflowing a block is impossible by construction.
func (ch *Chain) UpdateEnd(c Cursor, n int) Cursor {
	if c.block == nil || n == 0 {
		return c
	}
	c.block.end += n
	return Cursor{block: c.block, index: c.block.end}
}

// Commit reports how many bytes were written through the reservation c
// and the new commit position at the addressed block's End.
func (ch *Chain) Commit(c Cursor) (int, Cursor) {
	if c.block == nil {
		return 0, c
	}
	return c.block.end - c.index, Cursor{block: c.block, index: c.block.end}
}

// CopyTo copies bytes of [from, to) into p, across block boundaries, up
// to len(p). Blocks fully consumed by the copy are unlinked and returned
// to the pool. It reports the bytes copied and the new consume position.
// An empty range copies nothing and is not an error.
func (ch *Chain) CopyTo(from, to Cursor, p []byte) (int, Cursor) {
	if from.block == nil || to.block == nil {
		return 0, from
	}
	n := 0
	for {
		limit := from.block.end
		last := from.block == to.block
		if last {
			limit = to.index
		}
		c := copy(p[n:], from.block.data[from.index:limit])
		n += c
		from.index += c
		from.block.start = from.index
		if from.index < limit || last {
			break
		}
		// block drained, hand it back before moving on
		next := from.block.next
		ch.unlink(from.block)
		if next == nil {
			from = Cursor{}
			break
		}
		from = Cursor{block: next, index: next.start}
		if n == len(p) {
			break
		}
	}
	return n, from
}

func (ch *Chain) unlink(b *Block) {
	if ch.head == b {
		ch.head = b.next
		if ch.head == nil {
			ch.tail = nil
		}
	}
	ch.pool.Return(b)
}

// Release returns every block still linked. Called once the channel is
// terminal; the chain is reusable but empty afterwards.
func (ch *Chain) Release() {
	for b := ch.head; b != nil; {
		next := b.next
		ch.pool.Return(b)
		b = next
	}
	ch.head, ch.tail = nil, nil
}
