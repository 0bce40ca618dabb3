package flatecore

import (
	"io"

	"github.com/corenko/flatekit/internal/huffman"
)

// Deflate drives LZ77 tokenization over input fed to it via Write,
// handing completed token buffers off to a BlockWriter. It implements
// the lazy-matching strategy klauspost's deflateLazy loop uses: after
// finding a match at the current position, it defers emitting it for
// one byte and checks whether the next position yields a strictly
// better match; if so, the current position is emitted as a literal and
// the better match is taken instead.
type Deflate struct {
	win    DeflateWindow
	finder MatchFinder
	bw     *BlockWriter
	tok    huffman.Buffer
	params LevelParams

	// pos is the tokenizer's current position within win.Bytes(); bytes
	// before it have already been inserted into the match finder and
	// tokenized, bytes from it onward are pending.
	pos int

	// rawStart marks where, within win.Bytes(), the current token
	// buffer's raw literal bytes begin, so WriteTokenBlock's stored-block
	// fallback has the original bytes to hand even though they've been
	// tokenized.
	rawStart int

	// pendingMatch holds a deferred match awaiting the lazy-matching
	// one-byte lookahead.
	hasPending   bool
	pendingMatch Match
	pendingAt    int

	level int
	err   error
}

// NewDeflate returns a Deflate tokenizer writing blocks through bw at
// the given compression level (1..9; see level.go).
func NewDeflate(bw *BlockWriter, level int) *Deflate {
	d := &Deflate{bw: bw, level: level, params: LevelParamsFor(level)}
	d.win.Init()
	d.finder.Init(&d.win, dwindowCapacity)
	return d
}

// Reset rebinds the tokenizer to a new sink and clears all state.
func (d *Deflate) Reset(bw *BlockWriter, level int) {
	d.bw = bw
	d.level = level
	d.params = LevelParamsFor(level)
	d.win.Init()
	d.finder.Init(&d.win, dwindowCapacity)
	d.tok.Reset()
	d.pos = 0
	d.rawStart = 0
	d.hasPending = false
	d.err = nil
}

// Write feeds more input into the tokenizer, running lazy matching over
// any bytes that are now safely behind the required lookahead and
// flushing completed token buffers to the BlockWriter as they fill.
func (d *Deflate) Write(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	total := len(p)
	for len(p) > 0 {
		if d.win.Available() < len(p) {
			if d.win.Available() == 0 {
				if err := d.squeeze(); err != nil {
					d.err = err
					return total - len(p), err
				}
				continue
			}
		}
		n := d.win.Available()
		if n > len(p) {
			n = len(p)
		}
		d.win.Append(p[:n])
		p = p[n:]
		if err := d.tokenizeAvailable(false); err != nil {
			d.err = err
			return total - len(p), err
		}
	}
	return total, nil
}

// squeeze slides the window to make more room once it fills, adjusting
// the match finder and all position bookkeeping to match.
func (d *Deflate) squeeze() error {
	keepFrom := d.pos - windowSize
	if keepFrom <= 0 {
		// Nothing safe to drop yet but the buffer is full: flush what we
		// have so the caller isn't stuck.
		if err := d.flushBlock(false); err != nil {
			return err
		}
		keepFrom = d.pos - windowSize
		if keepFrom <= 0 {
			return nil
		}
	}
	delta := d.win.Slide(keepFrom)
	d.finder.Slide(delta)
	d.pos -= delta
	d.rawStart -= delta
	if d.rawStart < 0 {
		d.rawStart = 0
	}
	if d.pendingAt >= delta {
		d.pendingAt -= delta
	}
	return nil
}

// tokenizeAvailable runs lazy matching from d.pos up to the point where
// a full maxMatchLookahead window of lookahead is no longer available
// (or, if final, all the way to the end of buffered input).
func (d *Deflate) tokenizeAvailable(final bool) error {
	b := d.win.Bytes()
	limit := len(b) - maxMatchLookahead
	if final {
		limit = len(b)
	}

	for d.pos < limit {
		if d.pos+4 <= len(b) {
			d.finder.Insert(d.pos)
		}

		var m Match
		var ok bool
		if d.bw.mode == ModeNormal {
			m, ok = d.finder.Find(d.pos, d.params, pendingLen(d))
		}
		if d.hasPending {
			// We deferred a match at pendingAt; decide now whether this
			// position's match beats it.
			if ok && d.pendingMatch.Length < d.params.Lazy && m.Length > d.pendingMatch.Length {
				d.emitLiteral(d.pendingAt)
				d.hasPending = false
				if err := d.maybeFlush(); err != nil {
					return err
				}
				// Re-evaluate the current position as a fresh candidate below.
			} else {
				d.emitMatch(d.pendingAt, d.pendingMatch)
				d.hasPending = false
				skip := d.pendingMatch.Length - (d.pos - d.pendingAt) - 1
				for s := 0; s < skip && d.pos+1 < len(b); s++ {
					d.pos++
					if d.pos+4 <= len(b) {
						d.finder.Insert(d.pos)
					}
				}
				d.pos++
				if err := d.maybeFlush(); err != nil {
					return err
				}
				continue
			}
		}

		if ok && m.Length >= minMatch {
			d.pendingMatch = m
			d.pendingAt = d.pos
			d.hasPending = true
			d.pos++
			continue
		}

		d.emitLiteral(d.pos)
		d.pos++
		if err := d.maybeFlush(); err != nil {
			return err
		}
	}

	if final && d.hasPending {
		d.emitMatch(d.pendingAt, d.pendingMatch)
		d.hasPending = false
		d.pos = d.pendingAt + d.pendingMatch.Length
		if err := d.maybeFlush(); err != nil {
			return err
		}
	}
	return nil
}

func pendingLen(d *Deflate) int {
	if d.hasPending {
		return d.pendingMatch.Length
	}
	return 0
}

func (d *Deflate) emitLiteral(pos int) {
	d.tok.Append(huffman.LiteralToken(d.win.Bytes()[pos]))
}

func (d *Deflate) emitMatch(pos int, m Match) {
	d.tok.Append(huffman.MatchToken(m.Length, m.Distance))
}

func (d *Deflate) maybeFlush() error {
	if d.tok.Full() || d.pos-d.rawStart >= windowSize {
		return d.flushBlock(false)
	}
	return nil
}

// flushBlock hands the current token buffer to the BlockWriter and
// starts a new one. final marks the very last block of the stream.
func (d *Deflate) flushBlock(final bool) error {
	raw := d.win.Bytes()[d.rawStart:d.pos]
	if err := d.bw.WriteTokenBlock(final, &d.tok, raw); err != nil {
		return err
	}
	d.tok.Reset()
	d.rawStart = d.pos
	return nil
}

// Close finishes tokenizing any buffered-but-not-yet-processed input,
// flushes the final token block with bfinal=1, and flushes the
// underlying bit writer out to a byte boundary.
func (d *Deflate) Close() error {
	if d.err != nil {
		return d.err
	}
	if err := d.tokenizeAvailable(true); err != nil {
		d.err = err
		return err
	}
	if err := d.flushBlock(true); err != nil {
		d.err = err
		return err
	}
	return d.bw.Flush()
}

var _ io.Writer = (*Deflate)(nil)
