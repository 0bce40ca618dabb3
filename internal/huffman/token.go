package huffman

// Token is the literal-or-match record that flows between the
// tokenizer (MatchFinder/Deflate) and the BlockWriter. It is packed into
// a 32-bit value: a match stores length-3 in the low 8 bits and
// distance-1 in the next 15 bits; a literal stores the raw byte in the
// low 8 bits. The high bits distinguish the two kinds.
type Token uint32

const (
	matchTokenFlag = 1 << 30
	lengthShift    = 0
	lengthMask     = 0xff
	distShift      = 8
	distMask       = 0x7fff
)

// LiteralToken returns a Token carrying a literal byte.
func LiteralToken(b byte) Token {
	return Token(b)
}

// MatchToken returns a Token carrying a match of the given length
// (3..258) and distance (1..32768).
func MatchToken(length, dist int) Token {
	return Token(matchTokenFlag | uint32(length-BaseMatchLength)<<lengthShift | uint32(dist-BaseMatchDist)<<distShift)
}

// IsMatch reports whether t encodes a match (as opposed to a literal).
func (t Token) IsMatch() bool { return t&matchTokenFlag != 0 }

// Literal returns the literal byte; only meaningful if !IsMatch().
func (t Token) Literal() byte { return byte(t) }

// Length returns the match length (3..258); only meaningful if IsMatch().
func (t Token) Length() int {
	return int(t>>lengthShift&lengthMask) + BaseMatchLength
}

// Distance returns the match distance (1..32768); only meaningful if
// IsMatch().
func (t Token) Distance() int {
	return int(t>>distShift&distMask) + BaseMatchDist
}

// MaxTokensPerBlock bounds the size of a TokenBuffer so a single block
// never grows unreasonably large.
const MaxTokensPerBlock = 1 << 14

// Buffer is a fixed-capacity, append-only token accumulator. Flushing a
// block resets it; Tally derives the per-block literal/distance
// frequency vectors needed to build the block's Huffman tables.
type Buffer struct {
	tokens [MaxTokensPerBlock]Token
	n      int
}

// Append adds a token; precondition: !Full().
func (b *Buffer) Append(t Token) {
	b.tokens[b.n] = t
	b.n++
}

// Full reports whether the buffer has reached capacity.
func (b *Buffer) Full() bool { return b.n == MaxTokensPerBlock }

// Len reports the number of buffered tokens.
func (b *Buffer) Len() int { return b.n }

// Tokens returns the buffered tokens.
func (b *Buffer) Tokens() []Token { return b.tokens[:b.n] }

// Reset drops all buffered tokens.
func (b *Buffer) Reset() { b.n = 0 }

// Tally walks the buffered tokens and returns the literal-frequency
// vector (286 entries, including the synthetic end-of-block increment)
// and the distance-frequency vector (30 entries).
func (b *Buffer) Tally() (litFreq [MaxLitSyms]int32, distFreq [MaxDistSyms]int32) {
	for _, t := range b.tokens[:b.n] {
		if t.IsMatch() {
			code, _, _ := LengthCodeForLength(t.Length())
			litFreq[code]++
			dcode, _, _ := DistCodeForDistance(t.Distance())
			distFreq[dcode]++
		} else {
			litFreq[t.Literal()]++
		}
	}
	litFreq[EndOfBlock]++
	return litFreq, distFreq
}
