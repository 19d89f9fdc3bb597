package gif

// Stream is the append-only byte reservoir a decode session parses from. Bytes
// before the cursor have been consumed by the parser; recorded LZW sub-blocks
// keep referring to them by position.
type Stream struct {
	buf         []byte
	consumed    int
	allReceived bool
}

// NewStream constructs an empty reservoir.
func NewStream() *Stream {
	return &Stream{}
}

// Append adds newly arrived bytes. Appending after SetAllDataReceived is ignored.
func (s *Stream) Append(p []byte) {
	if s.allReceived || len(p) == 0 {
		return
	}
	s.buf = append(s.buf, p...)
}

// SetAllDataReceived records that no more bytes will arrive.
func (s *Stream) SetAllDataReceived() { s.allReceived = true }

// AllDataReceived reports whether the producer has finished.
func (s *Stream) AllDataReceived() bool { return s.allReceived }

// Len returns the number of bytes received so far.
func (s *Stream) Len() int { return len(s.buf) }

// Consumed returns the cursor position.
func (s *Stream) Consumed() int { return s.consumed }

// BytesLeft returns how many received bytes lie past the cursor.
func (s *Stream) BytesLeft() int { return len(s.buf) - s.consumed }

// Peek returns the next n bytes without moving the cursor. It returns false
// when fewer than n bytes are available.
func (s *Stream) Peek(n int) ([]byte, bool) {
	if n < 0 || s.consumed+n > len(s.buf) {
		return nil, false
	}
	return s.buf[s.consumed : s.consumed+n], true
}

// Consume advances the cursor by n bytes, clamped to the received length.
func (s *Stream) Consume(n int) {
	s.consumed += n
	if s.consumed > len(s.buf) {
		s.consumed = len(s.buf)
	}
}

// Slice returns n bytes at an absolute position, or false if they have not
// arrived yet.
func (s *Stream) Slice(pos, n int) ([]byte, bool) {
	if pos < 0 || n < 0 || pos+n > len(s.buf) {
		return nil, false
	}
	return s.buf[pos : pos+n], true
}
