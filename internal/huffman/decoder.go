package huffman

import "math/bits"

// Decoder is a two-level canonical Huffman lookup table: a primary
// table indexed by the next primaryBits bits resolves codes up to
// primaryBits long in one lookup, and an overflow "links" table
// resolves the rare longer codes with a second lookup.
//
// A primary entry packs (symbol<<4 | length) for a resolved code. An
// entry of 0 is either unused or, for codes that exceed primaryBits, a
// link: links at the same index then holds the second-level table.
type Decoder struct {
	primaryBits uint
	primary     []uint32
	links       [][]uint32
	linkMask    uint32
	min         int // length of the shortest code
}

const (
	maxChunkLen = 0xf // length field is overloaded into 4 bits of the chunk
)

// NewDecoder returns a Decoder whose primary table is indexed by the low
// primaryBits of a reversed code. Use 9 for the literal/length and
// distance alphabets and 7 for the 19-symbol code-length alphabet.
func NewDecoder(primaryBits uint) *Decoder {
	return &Decoder{primaryBits: primaryBits}
}

// Build assigns canonical codes to lengths (indexed by symbol) and
// constructs the lookup tables. It returns ErrIncompleteTree if lengths
// don't form a valid prefix code, with one exception: a single
// non-zero-length symbol is accepted (as zlib/DEFLATE streams
// legitimately emit a degenerate one-symbol dynamic table) and treated
// as a 1-bit code.
func (d *Decoder) Build(lengths []int) error {
	const maxLen = MaxCodeLen

	var count [maxLen + 1]int
	for _, l := range lengths {
		if l > maxLen {
			return ErrIncompleteTree
		}
		count[l]++
	}

	// Degenerate case: at most one symbol has a non-zero length. DEFLATE
	// implementations (and the RFC's reference decompressor) treat this as
	// a single 1-bit code so the stream can still reference that symbol.
	nonzero := count[0]
	total := len(lengths)
	if total-nonzero <= 1 {
		d.min = 1
		size := 1 << d.primaryBits
		d.primary = make([]uint32, size)
		d.links = nil
		for sym, l := range lengths {
			if l != 0 {
				for i := range d.primary {
					d.primary[i] = uint32(sym)<<4 | 1
				}
			}
		}
		if nonzero == total {
			// All lengths zero: no symbols at all, used for an empty
			// distance table. Leave the table empty; any lookup is corrupt.
			d.primary = make([]uint32, size)
		}
		return nil
	}

	// Verify the lengths form a complete prefix code (Kraft's inequality
	// with equality).
	left := 1
	for l := 1; l <= maxLen; l++ {
		left <<= 1
		left -= count[l]
		if left < 0 {
			return ErrIncompleteTree
		}
	}
	if left != 0 {
		return ErrIncompleteTree
	}

	// nextCode[l] is the next unused canonical code of length l, assigned
	// in order of increasing length and, within a length, increasing
	// symbol — the standard canonical-code construction (RFC 1951 §3.2.2).
	count[0] = 0 // zero-length symbols take no code space
	var nextCode [maxLen + 1]uint32
	var code uint32
	minLen := 0
	for l := 1; l <= maxLen; l++ {
		code = (code + uint32(count[l-1])) << 1
		nextCode[l] = code
		if minLen == 0 && count[l] > 0 {
			minLen = l
		}
	}
	d.min = minLen

	size := 1 << d.primaryBits
	d.primary = make([]uint32, size)
	d.links = nil
	d.linkMask = 0

	// Count codes longer than primaryBits so we know how many link slots
	// the overflow table at each primary index needs.
	type overflowSym struct {
		sym  int
		l    int
		code uint32
	}
	var overflow []overflowSym

	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		c := nextCode[l]
		nextCode[l]++
		if l <= int(d.primaryBits) {
			// Reverse the low l bits of c (canonical codes are assigned
			// MSB-first; the bit stream delivers LSB-first) so a direct
			// bits-from-stream peek indexes this slot.
			rev := reverse(c, l)
			chunk := uint32(sym)<<4 | uint32(l)
			step := 1 << uint(l)
			for i := int(rev); i < size; i += step {
				d.primary[i] = chunk
			}
		} else {
			overflow = append(overflow, overflowSym{sym, l, c})
		}
	}

	if len(overflow) == 0 {
		return nil
	}

	// Build the overflow structure: d.links is indexed by the low
	// primaryBits of the reversed code; each slot holds a table indexed
	// by the remaining (l - primaryBits) bits, also reversed.
	extraBits := maxLen - d.primaryBits
	d.linkMask = uint32(1<<extraBits) - 1
	d.links = make([][]uint32, size)

	for _, ov := range overflow {
		lowLen := d.primaryBits
		highLen := uint(ov.l) - lowLen
		revLow := reverse(ov.code>>highLen, int(lowLen))
		revHigh := reverse(ov.code&(1<<highLen-1), int(highLen))

		if d.links[revLow] == nil {
			// Mark this primary slot as a link: length field 0 distinguishes
			// it from an unused (also-zero) slot at decode time by virtue of
			// links[revLow] being non-nil.
			d.links[revLow] = make([]uint32, 1<<extraBits)
		}
		tbl := d.links[revLow]
		chunk := uint32(ov.sym)<<4 | uint32(ov.l)
		step := 1 << highLen
		for i := int(revHigh); i < len(tbl); i += step {
			tbl[i] = chunk
		}
	}

	return nil
}

// reverse reverses the low n bits of v.
func reverse(v uint32, n int) uint32 {
	return uint32(bits.Reverse16(uint16(v))) >> (16 - n)
}

// MinCodeLen returns the length of the shortest code in the table, the
// minimum number of bits a caller must have buffered before calling
// Decode.
func (d *Decoder) MinCodeLen() int { return d.min }

// Decode consumes a canonical code from peek (the next bits of the
// stream, LSB first, with at least MaxCodeLen bits available — or
// fewer at the very end of the stream, in which case a false positive
// over-read only matters if it would have resolved to a valid code) and
// returns the decoded symbol and the number of bits the code occupied.
// It returns ErrCorruptInput if peek doesn't resolve to a valid code.
func (d *Decoder) Decode(peek uint32) (sym int, length int, err error) {
	chunk := d.primary[peek&(1<<d.primaryBits-1)]
	if chunk&maxChunkLen != 0 {
		return int(chunk >> 4), int(chunk & maxChunkLen), nil
	}
	if d.links == nil || d.links[peek&(1<<d.primaryBits-1)] == nil {
		return 0, 0, ErrCorruptInput
	}
	tbl := d.links[peek&(1<<d.primaryBits-1)]
	idx := (peek >> d.primaryBits) & d.linkMask
	chunk = tbl[idx]
	if chunk&maxChunkLen == 0 {
		return 0, 0, ErrCorruptInput
	}
	return int(chunk >> 4), int(chunk & maxChunkLen), nil
}
