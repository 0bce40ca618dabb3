package flatecore

import (
	"io"

	"github.com/corenko/flatekit/internal/bitio"
	"github.com/corenko/flatekit/internal/huffman"
)

// maxStoredBlockSize is the largest payload a single stored block can
// carry: LEN is a 16-bit field (§3.2.4).
const maxStoredBlockSize = 65535

// Mode selects which block encodings BlockWriter is allowed to choose
// between, letting the façade offer the HuffmanOnlyWriter/StoreOnlyWriter
// variants alongside ordinary level-driven compression.
type Mode int

const (
	// ModeNormal picks whichever of stored, fixed, and dynamic Huffman
	// produces the fewest bits for the block at hand.
	ModeNormal Mode = iota
	// ModeHuffmanOnly never emits a stored block, even when one would be
	// smaller; useful for streams that must stay entropy-coded.
	ModeHuffmanOnly
	// ModeStoreOnly emits every block as stored, skipping Huffman coding
	// entirely — equivalent to "compression level 0".
	ModeStoreOnly
)

// BlockWriter writes DEFLATE blocks to an underlying bit stream: it owns
// the bfinal/btype header, picks between stored/fixed/dynamic encodings
// per Mode, and performs the dynamic table's code-length RLE encoding.
type BlockWriter struct {
	bw *bitio.Writer

	fixedLitCodes  []huffman.Code
	fixedDistCodes []huffman.Code
	fixedInit      bool

	mode Mode
}

// NewBlockWriter returns a BlockWriter emitting to w in the given mode.
func NewBlockWriter(w io.Writer, mode Mode) *BlockWriter {
	return &BlockWriter{bw: bitio.NewWriter(w), mode: mode}
}

// Reset rebinds the writer to a new sink.
func (bw *BlockWriter) Reset(w io.Writer) {
	bw.bw.Reset(w)
}

// Err returns the first I/O error encountered while flushing bits.
func (bw *BlockWriter) Err() error { return bw.bw.Err() }

// Flush pads out to a byte boundary and flushes all buffered bits.
func (bw *BlockWriter) Flush() error { return bw.bw.Flush() }

func (bw *BlockWriter) ensureFixedTables() {
	if bw.fixedInit {
		return
	}
	bw.fixedLitCodes = huffman.AssignCanonicalCodes(huffman.FixedLiteralLengths())
	bw.fixedDistCodes = huffman.AssignCanonicalCodes(huffman.FixedDistLengths())
	bw.fixedInit = true
}

// WriteStoredBlock emits data as one or more stored blocks (splitting if
// it exceeds maxStoredBlockSize), with final marking the very last one.
func (bw *BlockWriter) WriteStoredBlock(final bool, data []byte) error {
	if len(data) == 0 {
		bw.writeHeader(final, blockStored)
		bw.bw.Flush()
		bw.writeStoredLen(0)
		return bw.bw.Err()
	}
	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxStoredBlockSize {
			chunk = chunk[:maxStoredBlockSize]
		}
		last := final && len(chunk) == len(data)
		bw.writeHeader(last, blockStored)
		bw.bw.Flush()
		bw.writeStoredLen(len(chunk))
		if err := bw.bw.WriteBytes(chunk); err != nil {
			return err
		}
		data = data[len(chunk):]
	}
	return bw.bw.Err()
}

func (bw *BlockWriter) writeStoredLen(n int) {
	bw.bw.WriteBits(uint32(n), 8)
	bw.bw.WriteBits(uint32(n>>8), 8)
	bw.bw.WriteBits(uint32(^n)&0xff, 8)
	bw.bw.WriteBits(uint32(^n>>8)&0xff, 8)
}

func (bw *BlockWriter) writeHeader(final bool, btype int) {
	var b uint32
	if final {
		b = 1
	}
	bw.bw.WriteBits(b, 1)
	bw.bw.WriteBits(uint32(btype), 2)
}

// WriteTokenBlock emits tok as either a fixed or dynamic Huffman block
// (or, in ModeNormal, as a stored block if that's smaller still), based
// on the literal/distance frequencies tok.Tally() reports. raw is the
// literal byte sequence the tokens decode to, needed only if a stored
// block ends up being the cheapest choice.
func (bw *BlockWriter) WriteTokenBlock(final bool, tok *huffman.Buffer, raw []byte) error {
	if bw.mode == ModeStoreOnly {
		return bw.WriteStoredBlock(final, raw)
	}

	litFreq, distFreq := tok.Tally()
	litLengths, litCodes := huffman.BuildLengthLimited(litFreq[:], huffman.MaxCodeLen)
	distLengths, distCodes := huffman.BuildLengthLimited(distFreq[:], huffman.MaxCodeLen)

	dynHeader := estimateDynamicHeaderBits(litLengths, distLengths)
	dynBits := dynHeader + huffman.EstimateBits(litFreq[:], litLengths) + huffman.EstimateBits(distFreq[:], distLengths)

	bw.ensureFixedTables()
	fixedLitLengths := huffman.FixedLiteralLengths()
	fixedDistLengths := huffman.FixedDistLengths()
	fixedBits := huffman.EstimateBits(litFreq[:], fixedLitLengths) + huffman.EstimateBits(distFreq[:], fixedDistLengths)

	useDynamic := dynBits <= fixedBits

	if bw.mode == ModeNormal {
		storedBits := int64(len(raw)+5) * 8
		if storedBits <= dynBits && storedBits <= fixedBits {
			return bw.WriteStoredBlock(final, raw)
		}
	}

	if useDynamic {
		return bw.writeDynamicBlock(final, tok, litLengths, litCodes, distLengths, distCodes)
	}
	return bw.writeFixedBlock(final, tok)
}

func (bw *BlockWriter) writeFixedBlock(final bool, tok *huffman.Buffer) error {
	bw.writeHeader(final, blockFixed)
	bw.emitTokens(tok, bw.fixedLitCodes, bw.fixedDistCodes)
	return bw.bw.Err()
}

func (bw *BlockWriter) writeDynamicBlock(final bool, tok *huffman.Buffer, litLengths []int, litCodes []huffman.Code, distLengths []int, distCodes []huffman.Code) error {
	bw.writeHeader(final, blockDynamic)

	hlit := trimmedLength(litLengths, 257) - 257
	hdist := trimmedLength(distLengths, 1) - 1
	clLengths, clSyms := encodeCodeLengths(litLengths[:hlit+257], distLengths[:hdist+1])
	clCodeLengths, hclen := buildCodeLengthTable(clLengths)
	clCodes := huffman.AssignCanonicalCodes(clCodeLengths)

	bw.bw.WriteBits(uint32(hlit), 5)
	bw.bw.WriteBits(uint32(hdist), 5)
	bw.bw.WriteBits(uint32(hclen-4), 4)
	for i := 0; i < hclen; i++ {
		bw.bw.WriteBits(uint32(clCodeLengths[huffman.CodeLengthOrder[i]]), 3)
	}
	for _, s := range clSyms {
		c := clCodes[s.sym]
		bw.bw.WriteBits(uint32(c.Bits), uint(c.Len))
		if s.extraBits > 0 {
			bw.bw.WriteBits(uint32(s.extraVal), s.extraBits)
		}
	}

	bw.emitTokens(tok, litCodes, distCodes)
	return bw.bw.Err()
}

func (bw *BlockWriter) emitTokens(tok *huffman.Buffer, litCodes, distCodes []huffman.Code) {
	for _, t := range tok.Tokens() {
		if t.IsMatch() {
			code, extra, extraVal := huffman.LengthCodeForLength(t.Length())
			c := litCodes[code]
			bw.bw.WriteBits(uint32(c.Bits), uint(c.Len))
			if extra > 0 {
				bw.bw.WriteBits(uint32(extraVal), extra)
			}
			dcode, dextra, dextraVal := huffman.DistCodeForDistance(t.Distance())
			dc := distCodes[dcode]
			bw.bw.WriteBits(uint32(dc.Bits), uint(dc.Len))
			if dextra > 0 {
				bw.bw.WriteBits(uint32(dextraVal), dextra)
			}
		} else {
			c := litCodes[t.Literal()]
			bw.bw.WriteBits(uint32(c.Bits), uint(c.Len))
		}
	}
	eob := litCodes[huffman.EndOfBlock]
	bw.bw.WriteBits(uint32(eob.Bits), uint(eob.Len))
}

// trimmedLength returns the index one past the last non-zero entry in
// lengths, but never less than min — HLIT/HDIST must each describe at
// least the mandatory minimum count of codes (257 literal/length, 1
// distance) even if most of them are unused.
func trimmedLength(lengths []int, min int) int {
	n := len(lengths)
	for n > min && lengths[n-1] == 0 {
		n--
	}
	return n
}

type clSymbol struct {
	sym       int
	extraBits uint
	extraVal  int
}

// encodeCodeLengths produces the code-length alphabet's RLE-encoded
// symbol sequence (§3.2.7) describing the literal/length and distance
// length vectors back to back, plus the raw frequency-countable length
// values for building the code-length Huffman table itself.
func encodeCodeLengths(litLengths, distLengths []int) ([]int, []clSymbol) {
	all := make([]int, 0, len(litLengths)+len(distLengths))
	all = append(all, litLengths...)
	all = append(all, distLengths...)

	var clLengths []int
	var syms []clSymbol

	i := 0
	for i < len(all) {
		v := all[i]
		run := 1
		for i+run < len(all) && all[i+run] == v {
			run++
		}
		origRun := run
		if v == 0 {
			for run > 0 {
				switch {
				case run >= 11:
					n := run
					if n > 138 {
						n = 138
					}
					clLengths = append(clLengths, 18)
					syms = append(syms, clSymbol{sym: 18, extraBits: 7, extraVal: n - 11})
					run -= n
				case run >= 3:
					n := run
					if n > 10 {
						n = 10
					}
					clLengths = append(clLengths, 17)
					syms = append(syms, clSymbol{sym: 17, extraBits: 3, extraVal: n - 3})
					run -= n
				default:
					clLengths = append(clLengths, 0)
					syms = append(syms, clSymbol{sym: 0})
					run--
				}
			}
		} else {
			clLengths = append(clLengths, v)
			syms = append(syms, clSymbol{sym: v})
			run--
			// Repeats of a non-zero length (code 16) must follow at least
			// one literal occurrence of that length, which was just emitted
			// above; only runs of 3+ additional repeats are worth the
			// extra symbol over repeating the literal length code.
			for run > 0 {
				n := run
				if n > 6 {
					n = 6
				}
				if n < 3 {
					for ; n > 0; n-- {
						clLengths = append(clLengths, v)
						syms = append(syms, clSymbol{sym: v})
					}
					run -= run
					continue
				}
				clLengths = append(clLengths, 16)
				syms = append(syms, clSymbol{sym: 16, extraBits: 2, extraVal: n - 3})
				run -= n
			}
		}
		i += origRun
	}

	return clLengths, syms
}

// buildCodeLengthTable builds length-limited canonical codes for the
// 19-symbol code-length alphabet itself and returns the per-symbol
// lengths (indexed by symbol 0..18, in symbol order — the caller
// permutes via CodeLengthOrder when writing) along with HCLEN, the
// count of leading CodeLengthOrder entries that must be transmitted (at
// least 4).
func buildCodeLengthTable(clLengthSeq []int) ([]int, int) {
	var freq [huffman.MaxCLenSyms]int32
	for _, l := range clLengthSeq {
		freq[l]++
	}
	lengths, _ := huffman.BuildLengthLimited(freq[:], huffman.MaxCLenBits)

	hclen := huffman.MaxCLenSyms
	for hclen > 4 && lengths[huffman.CodeLengthOrder[hclen-1]] == 0 {
		hclen--
	}
	return lengths, hclen
}

// estimateDynamicHeaderBits approximates the bit cost of a dynamic
// block's header (code-length table plus RLE-encoded length vectors),
// used only to compare against the fixed and stored alternatives; it
// does not need to be exact, only consistent.
func estimateDynamicHeaderBits(litLengths, distLengths []int) int64 {
	hlit := trimmedLength(litLengths, 257)
	hdist := trimmedLength(distLengths, 1)
	clLengths, syms := encodeCodeLengths(litLengths[:hlit], distLengths[:hdist])
	clCodeLengths, hclen := buildCodeLengthTable(clLengths)

	var total int64 = int64(5 + 5 + 4 + hclen*3)
	clCodes := huffman.AssignCanonicalCodes(clCodeLengths)
	for _, s := range syms {
		total += int64(clCodes[s.sym].Len) + int64(s.extraBits)
	}
	return total
}
