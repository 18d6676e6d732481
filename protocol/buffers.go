package protocol

// InputBuffer is a source of received bytes the Decoder consumes from the front
type InputBuffer interface {
	// Data returns the unread bytes
	Data() []byte

	// Available returns len(Data())
	Available() int

	// Pop drops n bytes from the front
	Pop(n int)
}

// OutputBuffer is a sink the Encoder assembles frames in. The length byte is
// only known once the payload is written, so the buffer must allow patching.
type OutputBuffer interface {
	// Output appends data, silently truncating when full
	Output(data []byte)

	// CurPosition returns the write offset
	CurPosition() int

	// Update overwrites the byte at pos
	Update(pos int, val byte)

	// DataSince returns the bytes written from pos to the write offset
	DataSince(pos int) []byte
}

// SliceInputBuffer reads from a fixed byte slice
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

// ScratchOutput collects encoded frames in a fixed array so the controller
// can flush them to the UART without allocating.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

// Reset discards the written frames
func (s *ScratchOutput) Reset() { s.pos = 0 }

// FifoBuffer accumulates a received byte stream for the Decoder. Unread
// bytes are always contiguous: a Write that would run off the end first
// moves them to the front.
type FifoBuffer struct {
	buf        []byte
	start, end int
}

// NewFifoBuffer creates a FifoBuffer holding at most capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count
func (f *FifoBuffer) Write(data []byte) int {
	if f.end+len(data) > len(f.buf) && f.start > 0 {
		f.end = copy(f.buf, f.buf[f.start:f.end])
		f.start = 0
	}
	n := copy(f.buf[f.end:], data)
	f.end += n
	return n
}

func (f *FifoBuffer) Data() []byte   { return f.buf[f.start:f.end] }
func (f *FifoBuffer) Available() int { return f.end - f.start }

// Free returns how many bytes the next Write accepts
func (f *FifoBuffer) Free() int { return len(f.buf) - f.Available() }

func (f *FifoBuffer) Pop(n int) {
	f.start += min(n, f.Available())
	if f.start == f.end {
		f.start, f.end = 0, 0
	}
}

// Reset discards all buffered bytes
func (f *FifoBuffer) Reset() {
	f.start, f.end = 0, 0
}
