package memory

// Block is a fixed-capacity byte buffer owned by a Pool. Start and End
// bound the valid bytes relative to the block's storage; the free tail
// [End, cap) is what Chain.BeginWrite hands out for in-place writes.
// A block belongs to at most one chain at a time.
type Block struct {
	data  []byte
	start int
	end   int
	next  *Block
	pool  *Pool
}

func (b *Block) Cap() int {
	return len(b.data)
}

func (b *Block) Start() int {
	return b.start
}

func (b *Block) End() int {
	return b.end
}

// Bytes returns the valid range [Start, End).
func (b *Block) Bytes() []byte {
	return b.data[b.start:b.end]
}

// Writable returns the free tail range [End, cap).
func (b *Block) Writable() []byte {
	return b.data[b.end:]
}

func (b *Block) reset() {
	b.start, b.end, b.next = 0, 0, nil
}
