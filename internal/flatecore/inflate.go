package flatecore

import (
	"errors"
	"io"

	"github.com/corenko/flatekit/internal/bitio"
	"github.com/corenko/flatekit/internal/huffman"
)

// blockStored, blockFixed, and blockDynamic are the three 2-bit block
// type codes RFC 1951 §3.2.3 defines; blockReserved (3) is never legal.
const (
	blockStored = iota
	blockFixed
	blockDynamic
	blockReserved
)

// Inflate decodes a raw DEFLATE stream (no gzip/zlib framing — that's
// the wrap package's job) read from an underlying bitio.Reader into a
// HistoryWindow, and exposes the result through the standard io.Reader
// contract. Decoding proceeds one step at a time — a stored-block copy,
// or a single Huffman symbol — pausing whenever the window fills up so
// the caller can drain it via Read before more is produced; inStored/
// inHuffman and the pending* fields record exactly where a block was
// paused so the next call resumes without re-reading its header.
type Inflate struct {
	br  *bitio.Reader
	win HistoryWindow

	fixedLit  *huffman.Decoder
	fixedDist *huffman.Decoder
	fixedInit bool

	litDec  *huffman.Decoder
	distDec *huffman.Decoder

	final bool // saw the bfinal=1 block
	done  bool // final block fully drained

	// storedRemaining tracks an in-progress stored block's remaining byte
	// count across successive Read calls, rather than decoding the whole
	// block into the window at once, so a single huge stored block never
	// forces an equally huge intermediate copy.
	storedRemaining int
	inStored        bool

	// A huffman block (fixed or dynamic) can likewise pause mid-block when
	// the window fills up, either between symbols or partway through
	// writing out a single match's expansion. curLit/curDist pin down
	// which pair of tables the in-progress block uses so resumption
	// doesn't need to re-derive that from the block header.
	inHuffman           bool
	curLit, curDist     *huffman.Decoder
	pendingDistance     int
	pendingMatchLenLeft int

	err error
}

// NewInflate returns an Inflate decoding DEFLATE bits from br. Callers
// that also need to parse bytes surrounding the DEFLATE stream itself
// (a gzip or zlib header/footer) construct br themselves and share it,
// so header, stream, and footer all read through the same buffered byte
// source instead of each needing their own.
func NewInflate(br *bitio.Reader) *Inflate {
	inf := &Inflate{
		br:        br,
		fixedLit:  huffman.NewDecoder(9),
		fixedDist: huffman.NewDecoder(9),
		litDec:    huffman.NewDecoder(9),
		distDec:   huffman.NewDecoder(9),
	}
	inf.win.Init(historySize)
	return inf
}

// Reset rebinds the decoder to a new bit source, as if newly
// constructed.
func (inf *Inflate) Reset(br *bitio.Reader) {
	inf.br = br
	inf.win.Init(historySize)
	inf.final = false
	inf.done = false
	inf.storedRemaining = 0
	inf.inStored = false
	inf.inHuffman = false
	inf.curLit = nil
	inf.curDist = nil
	inf.pendingDistance = 0
	inf.pendingMatchLenLeft = 0
	inf.err = nil
}

// Read implements io.Reader, decoding as many DEFLATE blocks as needed
// to satisfy the request (or until the final block is exhausted).
func (inf *Inflate) Read(p []byte) (int, error) {
	if inf.err != nil {
		return 0, inf.err
	}
	total := 0
	for total < len(p) {
		if inf.win.AvailRead() == 0 {
			if inf.done {
				if total > 0 {
					return total, nil
				}
				return 0, io.EOF
			}
			if err := inf.advance(); err != nil {
				inf.err = err
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
			continue
		}
		total += inf.win.ReadInto(p[total:])
	}
	return total, nil
}

// advance decodes one block's worth of work into the window: either a
// whole stored/huffman block, or, for a large stored block, one bounded
// slice of it.
func (inf *Inflate) advance() error {
	if inf.inStored {
		return inf.continueStored()
	}
	if inf.inHuffman {
		return inf.huffmanBlock()
	}
	if inf.final && inf.done {
		return io.EOF
	}

	bfinal, err := inf.br.ReadBits(1)
	if err != nil {
		return err
	}
	btype, err := inf.br.ReadBits(2)
	if err != nil {
		return err
	}
	if bfinal == 1 {
		inf.final = true
	}

	switch btype {
	case blockStored:
		if err := inf.startStoredBlock(); err != nil {
			return err
		}
		return inf.continueStored()
	case blockFixed:
		if err := inf.ensureFixedTables(); err != nil {
			return err
		}
		inf.curLit, inf.curDist = inf.fixedLit, inf.fixedDist
		inf.inHuffman = true
		return inf.huffmanBlock()
	case blockDynamic:
		if err := inf.readDynamicTables(); err != nil {
			return err
		}
		inf.curLit, inf.curDist = inf.litDec, inf.distDec
		inf.inHuffman = true
		return inf.huffmanBlock()
	default:
		return ErrCorruptInput
	}
}

func (inf *Inflate) ensureFixedTables() error {
	if inf.fixedInit {
		return nil
	}
	if err := inf.fixedLit.Build(huffman.FixedLiteralLengths()); err != nil {
		return err
	}
	if err := inf.fixedDist.Build(huffman.FixedDistLengths()); err != nil {
		return err
	}
	inf.fixedInit = true
	return nil
}

func (inf *Inflate) startStoredBlock() error {
	inf.br.AlignToByte()
	lenLE, err := inf.br.ReadUint16LE()
	if err != nil {
		return err
	}
	nlenLE, err := inf.br.ReadUint16LE()
	if err != nil {
		return err
	}
	if lenLE != ^nlenLE {
		return ErrCorruptInput
	}
	inf.storedRemaining = int(lenLE)
	inf.inStored = true
	return nil
}

func (inf *Inflate) continueStored() error {
	for inf.storedRemaining > 0 {
		dst := inf.win.WritableSlice()
		if len(dst) == 0 {
			return nil // window full for now; caller will drain and retry
		}
		if len(dst) > inf.storedRemaining {
			dst = dst[:inf.storedRemaining]
		}
		if err := inf.br.ReadFull(dst); err != nil {
			return err
		}
		inf.win.WriteMark(len(dst))
		inf.storedRemaining -= len(dst)
	}
	inf.inStored = false
	if inf.final {
		inf.done = true
	}
	return nil
}

// huffmanBlock decodes symbols from inf.curLit/inf.curDist until it
// reaches end-of-block, writing literals and back-reference expansions
// into the window. It may return early with inf.inHuffman still true if
// the window fills up — either between symbols, or partway through
// writing out a single match's expansion (pendingDistance/
// pendingMatchLenLeft carry the remainder across the pause) — in which
// case the next advance() call resumes exactly where it left off rather
// than re-reading the block header.
func (inf *Inflate) huffmanBlock() error {
	if inf.pendingMatchLenLeft > 0 {
		done, err := inf.drainPendingMatch()
		if err != nil {
			return err
		}
		if !done {
			return nil // still full; try again on the next call
		}
	}

	for {
		if inf.win.AvailWrite() == 0 {
			return nil // pause between symbols until the caller drains
		}

		if err := inf.br.Fill(uint(huffman.MaxCodeLen)); err != nil {
			if !errors.Is(err, bitio.ErrEndOfStream) {
				return err
			}
			// Fewer than MaxCodeLen bits remain; still try the decode since
			// the final symbols of a stream can be shorter than that.
		}
		peek := inf.br.Peek(uint(huffman.MaxCodeLen))
		sym, length, err := inf.curLit.Decode(peek)
		if err != nil {
			return err
		}
		if err := inf.br.Fill(uint(length)); err != nil {
			return err
		}
		inf.br.Consume(uint(length))

		switch {
		case sym < 256:
			inf.win.WriteByte(byte(sym))
		case sym == huffman.EndOfBlock:
			inf.inHuffman = false
			if inf.final {
				inf.done = true
			}
			return nil
		default:
			matchLen, err := inf.decodeLength(sym)
			if err != nil {
				return err
			}
			distance, err := inf.decodeDistance(inf.curDist)
			if err != nil {
				return err
			}
			inf.pendingDistance = distance
			inf.pendingMatchLenLeft = matchLen
			done, err := inf.drainPendingMatch()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
		}
	}
}

// drainPendingMatch writes as much of the pending match as the window
// currently has room for. It reports whether the match was fully
// written; if not, pendingMatchLenLeft holds what remains for next time.
func (inf *Inflate) drainPendingMatch() (bool, error) {
	for inf.pendingMatchLenLeft > 0 {
		n, err := inf.win.WriteCopy(inf.pendingDistance, inf.pendingMatchLenLeft)
		if err != nil {
			inf.pendingMatchLenLeft = 0
			return false, err
		}
		inf.pendingMatchLenLeft -= n
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (inf *Inflate) decodeLength(code int) (int, error) {
	extraBits, err := huffman.LengthExtraBits(code)
	if err != nil {
		return 0, err
	}
	var extraVal int
	if extraBits > 0 {
		v, err := inf.br.ReadBits(extraBits)
		if err != nil {
			return 0, err
		}
		extraVal = int(v)
	}
	return huffman.LengthForCode(code, extraVal)
}

func (inf *Inflate) decodeDistance(dist *huffman.Decoder) (int, error) {
	if err := inf.br.Fill(uint(huffman.MaxCodeLen)); err != nil && !errors.Is(err, bitio.ErrEndOfStream) {
		return 0, err
	}
	peek := inf.br.Peek(uint(huffman.MaxCodeLen))
	code, length, err := dist.Decode(peek)
	if err != nil {
		return 0, err
	}
	if err := inf.br.Fill(uint(length)); err != nil {
		return 0, err
	}
	inf.br.Consume(uint(length))

	extraBits, err := huffman.DistExtraBits(code)
	if err != nil {
		return 0, err
	}
	var extraVal int
	if extraBits > 0 {
		v, err := inf.br.ReadBits(extraBits)
		if err != nil {
			return 0, err
		}
		extraVal = int(v)
	}
	return huffman.DistForCode(code, extraVal)
}

// readDynamicTables parses a dynamic block's header (§3.2.7): the
// HLIT/HDIST/HCLEN counts, the code-length alphabet's own lengths (in
// the fixed CodeLengthOrder permutation), and then the RLE-encoded
// literal/length and distance code lengths those describe.
func (inf *Inflate) readDynamicTables() error {
	hlit, err := inf.br.ReadBits(5)
	if err != nil {
		return err
	}
	hdist, err := inf.br.ReadBits(5)
	if err != nil {
		return err
	}
	hclen, err := inf.br.ReadBits(4)
	if err != nil {
		return err
	}
	nlit := int(hlit) + 257
	ndist := int(hdist) + 1
	nclen := int(hclen) + 4

	var clLengths [huffman.MaxCLenSyms]int
	for i := 0; i < nclen; i++ {
		v, err := inf.br.ReadBits(3)
		if err != nil {
			return err
		}
		clLengths[huffman.CodeLengthOrder[i]] = int(v)
	}

	clDec := huffman.NewDecoder(7)
	if err := clDec.Build(clLengths[:]); err != nil {
		return err
	}

	all := make([]int, nlit+ndist)
	i := 0
	var prev int
	for i < len(all) {
		if err := inf.br.Fill(uint(huffman.MaxCLenBits)); err != nil && !errors.Is(err, bitio.ErrEndOfStream) {
			return err
		}
		peek := inf.br.Peek(uint(huffman.MaxCLenBits))
		sym, length, err := clDec.Decode(peek)
		if err != nil {
			return err
		}
		if err := inf.br.Fill(uint(length)); err != nil {
			return err
		}
		inf.br.Consume(uint(length))

		switch {
		case sym <= 15:
			all[i] = sym
			prev = sym
			i++
		case sym == 16:
			if i == 0 {
				return ErrCorruptInput
			}
			v, err := inf.br.ReadBits(2)
			if err != nil {
				return err
			}
			repeat := int(v) + 3
			if i+repeat > len(all) {
				return ErrCorruptInput
			}
			for r := 0; r < repeat; r++ {
				all[i] = prev
				i++
			}
		case sym == 17:
			v, err := inf.br.ReadBits(3)
			if err != nil {
				return err
			}
			repeat := int(v) + 3
			if i+repeat > len(all) {
				return ErrCorruptInput
			}
			for r := 0; r < repeat; r++ {
				all[i] = 0
				i++
			}
			prev = 0
		case sym == 18:
			v, err := inf.br.ReadBits(7)
			if err != nil {
				return err
			}
			repeat := int(v) + 11
			if i+repeat > len(all) {
				return ErrCorruptInput
			}
			for r := 0; r < repeat; r++ {
				all[i] = 0
				i++
			}
			prev = 0
		default:
			return ErrCorruptInput
		}
	}

	litLengths := all[:nlit]
	distLengths := all[nlit:]
	if err := inf.litDec.Build(litLengths); err != nil {
		return err
	}
	if err := inf.distDec.Build(distLengths); err != nil {
		return err
	}
	return nil
}
