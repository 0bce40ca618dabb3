package flatecore

// windowSize is the size of the sliding window the match finder searches
// within (equal to the maximum back-reference distance).
const windowSize = 32768

// maxMatchLookahead is the longest match the match finder can ever
// report (258, with no slack added); until Close, the tokenizer stops
// this many bytes short of the buffered input so a full-length match is
// never cut off by the end of the buffer.
const maxMatchLookahead = 258

// dwindowCapacity sizes DeflateWindow's backing array at twice
// windowSize: new input accumulates in the upper half while the match
// finder still searches the lower half, and a slide compacts the upper
// half down to the start once the buffer fills, the same double-buffer
// discipline klauspost's compressor uses for fillWindow.
const dwindowCapacity = 2 * windowSize

// DeflateWindow is the encoder-side counterpart to HistoryWindow: a
// linear (non-ring) buffer holding the bytes currently reachable as
// match sources, plus whatever new input has been appended but not yet
// tokenized. Unlike the decoder's ring buffer, the encoder needs
// contiguous byte slices to run match comparisons over, so instead of
// wrapping indices it periodically slides the live region back to
// offset 0.
type DeflateWindow struct {
	buf []byte
	n   int // valid bytes in buf[0:n]

	// base is the absolute input offset corresponding to buf[0]; every
	// slide advances it by the number of bytes dropped.
	base int64
}

// Init (re)initializes the window, discarding any buffered bytes.
func (d *DeflateWindow) Init() {
	if d.buf == nil {
		d.buf = make([]byte, dwindowCapacity)
	}
	d.n = 0
	d.base = 0
}

// Bytes returns the currently valid window contents.
func (d *DeflateWindow) Bytes() []byte { return d.buf[:d.n] }

// Base returns the absolute input offset of Bytes()[0].
func (d *DeflateWindow) Base() int64 { return d.base }

// Available reports how many more bytes can be appended before a Slide
// is required.
func (d *DeflateWindow) Available() int { return len(d.buf) - d.n }

// Append copies p into the window; the caller must ensure Available()
// >= len(p) (call Slide first if not).
func (d *DeflateWindow) Append(p []byte) {
	copy(d.buf[d.n:], p)
	d.n += len(p)
}

// NeedsSlide reports whether fewer than maxMatchLookahead bytes of room
// remain for Append; pos is not consulted.
func (d *DeflateWindow) NeedsSlide(pos int) bool {
	return d.n+maxMatchLookahead > len(d.buf)
}

// Slide compacts the window: everything from keepFrom onward (normally
// the current tokenizer position minus windowSize, so match-finding can
// still reach back a full window) is moved down to the start of the
// buffer, and base is advanced to match. Returns the number of bytes
// the position space shifted by, so callers can adjust any absolute
// positions (e.g. hash-chain entries) they're tracking.
func (d *DeflateWindow) Slide(keepFrom int) int {
	if keepFrom <= 0 {
		return 0
	}
	if keepFrom > d.n {
		keepFrom = d.n
	}
	copy(d.buf, d.buf[keepFrom:d.n])
	d.n -= keepFrom
	d.base += int64(keepFrom)
	return keepFrom
}
