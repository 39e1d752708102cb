package buffer

// Buffer accumulates lines of a single header block. Lines arrive in arbitrary fragments, so
// each of them is written streamingly as a segment, which is then finished and handed out.
// The total amount of memory is bounded, so is the header block it backs.
type Buffer struct {
	memory  []byte
	begin   int
	maxSize int
}

func New(initialSize, maxSize int) Buffer {
	return Buffer{
		memory:  make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// Append writes the data into the current segment. False is returned if the limit would be
// exceeded, in which case nothing is written.
func (b *Buffer) Append(elements []byte) (ok bool) {
	if len(b.memory)+len(elements) > b.maxSize {
		return false
	}

	b.memory = append(b.memory, elements...)
	return true
}

// SegmentLength returns the number of bytes written into the current segment.
func (b *Buffer) SegmentLength() int {
	return len(b.memory) - b.begin
}

// Used returns the number of bytes occupied by all the segments, including the current one.
func (b *Buffer) Used() int {
	return len(b.memory)
}

// Drop forgets the current segment, freeing the space it took.
func (b *Buffer) Drop() {
	b.memory = b.memory[:b.begin]
}

// Preview returns the current segment without finishing it.
func (b *Buffer) Preview() []byte {
	return b.memory[b.begin:]
}

// Finish completes the current segment and returns it. The returned slice stays valid
// until Clear is called.
func (b *Buffer) Finish() []byte {
	segment := b.memory[b.begin:]
	b.begin = len(b.memory)

	return segment
}

// Clear resets the buffer, so the memory may be reused by the next header block.
func (b *Buffer) Clear() {
	b.begin = 0
	b.memory = b.memory[:0]
}
