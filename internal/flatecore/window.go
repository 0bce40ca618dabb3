// Package flatecore implements the DEFLATE algorithm itself: the
// inflate (decompress) and deflate (compress) state machines, the
// sliding history window each side maintains, and the hash-chain match
// finder the encoder uses to locate LZ77 back-references.
package flatecore

import "errors"

// ErrCorruptInput is returned when decoded stream content violates a
// DEFLATE invariant that the Huffman and bit layers can't catch on
// their own — principally, a back-reference whose distance reaches
// further back than any byte the window has produced so far.
var ErrCorruptInput = errors.New("flatecore: corrupt input")

// historySize is the maximum back-reference distance DEFLATE allows
// (RFC 1951 §3.2.1): 32768 bytes.
const historySize = 32768

// HistoryWindow is the decoder-side sliding window: a power-of-two ring
// buffer over the most recently produced historySize bytes, supporting
// the copy-with-overlap semantics a back-reference needs (distance can
// be less than length, meaning the copy reads bytes it is itself still
// writing). Modeled directly on a dict-decoder pattern common to flate
// forks: WrPos/RdPos mark the write and read-out cursors into a single
// backing array. One byte of the array is always left unwritten, so
// equal cursors always mean "nothing to read"; full records that WrPos
// has wrapped at least once, so the whole array holds valid history.
type HistoryWindow struct {
	hist  []byte
	wrPos int
	rdPos int
	full  bool
}

// Init (re)initializes the window to hold up to size bytes of history,
// reusing the backing array when already large enough.
func (w *HistoryWindow) Init(size int) {
	if w.hist == nil || len(w.hist) != size {
		w.hist = make([]byte, size)
	}
	w.wrPos = 0
	w.rdPos = 0
	w.full = false
}

// HistSize returns the configured window size.
func (w *HistoryWindow) HistSize() int { return len(w.hist) }

// AvailRead reports the number of decoded bytes not yet drained by
// ReadFlush.
func (w *HistoryWindow) AvailRead() int {
	if w.wrPos >= w.rdPos {
		return w.wrPos - w.rdPos
	}
	return len(w.hist) - w.rdPos + w.wrPos
}

// AvailWrite reports how many bytes can be appended before the window
// must be flushed via ReadFlush to make room.
func (w *HistoryWindow) AvailWrite() int {
	return len(w.hist) - w.AvailRead() - 1
}

// WritableSlice returns a slice into the backing array at the current
// write position, sized to at most the contiguous space available
// before either the buffer end or the read cursor (whichever comes
// first). Callers append literal bytes directly into it, then call
// WriteMark with however many bytes they actually wrote.
func (w *HistoryWindow) WritableSlice() []byte {
	var n int
	if w.wrPos >= w.rdPos {
		n = len(w.hist) - w.wrPos
		if w.rdPos == 0 {
			n--
		}
	} else {
		n = w.rdPos - w.wrPos - 1
	}
	return w.hist[w.wrPos : w.wrPos+n]
}

// WriteMark advances the write cursor by n bytes, presumed already
// copied into the slice WritableSlice returned.
func (w *HistoryWindow) WriteMark(n int) {
	w.wrPos += n
	if w.wrPos == len(w.hist) {
		w.wrPos = 0
		w.full = true
	}
}

// WriteByte appends a single literal byte to the window.
func (w *HistoryWindow) WriteByte(b byte) {
	w.hist[w.wrPos] = b
	w.wrPos++
	if w.wrPos == len(w.hist) {
		w.wrPos = 0
		w.full = true
	}
}

// WriteSlice appends p to the window; the caller must have ensured
// AvailWrite() >= len(p).
func (w *HistoryWindow) WriteSlice(p []byte) {
	for len(p) > 0 {
		dst := w.WritableSlice()
		n := copy(dst, p)
		w.WriteMark(n)
		p = p[n:]
	}
}

// WriteCopy appends a length-distance back-reference's expansion to the
// window: length bytes, each copied from distance bytes behind the
// current write position. Overlapping copies (distance < length) are
// the common case for runs and must be resolved byte-by-byte or in
// growing strides, never via a single non-overlap-aware bulk copy.
// Returns the number of bytes actually written, which is less than
// length only if the window ran out of write room first (the caller is
// expected to flush and call WriteCopy again for the remainder).
func (w *HistoryWindow) WriteCopy(distance, length int) (int, error) {
	if distance <= 0 || distance > len(w.hist) || distance > w.histAvail() {
		return 0, ErrCorruptInput
	}

	avail := w.AvailWrite()
	if length > avail {
		length = avail
	}

	srcPos := w.wrPos - distance
	if srcPos < 0 {
		srcPos += len(w.hist)
	}

	written := 0
	for written < length {
		var dst, src []byte
		dstN := len(w.hist) - w.wrPos
		srcN := len(w.hist) - srcPos
		n := length - written
		if n > dstN {
			n = dstN
		}
		if n > srcN {
			n = srcN
		}
		if srcPos == w.wrPos {
			// Pure self-overlap within the just-written region: writing
			// byte-by-byte lets each new byte see the ones just emitted,
			// the expected behavior for distance < length runs.
			n = 1
		} else if srcPos < w.wrPos && srcPos+n > w.wrPos {
			n = w.wrPos - srcPos
		}
		dst = w.hist[w.wrPos : w.wrPos+n]
		src = w.hist[srcPos : srcPos+n]
		copy(dst, src)

		w.wrPos += n
		srcPos += n
		if w.wrPos == len(w.hist) {
			w.wrPos = 0
			w.full = true
		}
		if srcPos == len(w.hist) {
			srcPos = 0
		}
		written += n
	}
	return written, nil
}

// histAvail reports how much valid history (bytes ever written, capped
// at the window size) currently exists, for distance validation; unlike
// AvailRead this doesn't shrink as ReadFlush drains bytes out, since a
// back-reference may legally point at bytes already handed to the
// caller but still physically present in the ring.
func (w *HistoryWindow) histAvail() int {
	if w.full {
		return len(w.hist)
	}
	return w.wrPos
}

// ReadFlush returns a slice of newly available decoded bytes (from the
// read cursor up to either the write cursor or the buffer end) and
// advances the read cursor past them. Callers loop until AvailRead() is
// zero to drain everything currently available.
func (w *HistoryWindow) ReadFlush() []byte {
	var n int
	if w.wrPos >= w.rdPos {
		n = w.wrPos - w.rdPos
	} else {
		n = len(w.hist) - w.rdPos
	}
	p := w.hist[w.rdPos : w.rdPos+n]
	w.rdPos += n
	if w.rdPos == len(w.hist) {
		w.rdPos = 0
	}
	return p
}

// ReadInto copies as many available decoded bytes as fit into p,
// advancing the read cursor by exactly the number copied. Unlike
// ReadFlush it never advances past bytes the caller didn't actually
// receive, so it composes directly with io.Reader's "short read is
// fine" contract.
func (w *HistoryWindow) ReadInto(p []byte) int {
	var avail int
	if w.wrPos >= w.rdPos {
		avail = w.wrPos - w.rdPos
	} else {
		avail = len(w.hist) - w.rdPos
	}
	if avail > len(p) {
		avail = len(p)
	}
	n := copy(p, w.hist[w.rdPos:w.rdPos+avail])
	w.rdPos += n
	if w.rdPos == len(w.hist) {
		w.rdPos = 0
	}
	return n
}
