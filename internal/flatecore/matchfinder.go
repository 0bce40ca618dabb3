package flatecore

// hashBits and the hash multiplier below reproduce klauspost's hash4:
// a 4-byte prefix is hashed with a multiply-shift (Fibonacci hashing)
// into a table index, giving a cheap but well-distributed hash without
// needing a division.
const (
	hashBits = 17
	hashSize = 1 << hashBits
	hashMul  = 0x1e35a7bd
	minMatch = 4
)

func hash4(b []byte) uint32 {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return (v * hashMul) >> (32 - hashBits)
}

// MatchFinder locates LZ77 back-references in a DeflateWindow using hash
// chains: head[h] is the most recent position whose 4-byte prefix hashed
// to h, and chain[pos] links back to the previous position with the same
// hash, so searching a hash bucket means walking chain[] until it
// bottoms out or the configured chain limit is reached.
type MatchFinder struct {
	head  [hashSize]int32
	chain []int32
	win   *DeflateWindow
}

// Init binds the match finder to a window and resets all hash state.
// maxPositions bounds the chain array (the window's capacity).
func (m *MatchFinder) Init(win *DeflateWindow, maxPositions int) {
	m.win = win
	for i := range m.head {
		m.head[i] = -1
	}
	if cap(m.chain) < maxPositions {
		m.chain = make([]int32, maxPositions)
	} else {
		m.chain = m.chain[:maxPositions]
	}
	for i := range m.chain {
		m.chain[i] = -1
	}
}

// Insert records position pos (an index into win.Bytes()) in the hash
// chain for the 4 bytes starting there. Precondition: pos+4 <=
// len(win.Bytes()).
func (m *MatchFinder) Insert(pos int) {
	b := m.win.Bytes()
	h := hash4(b[pos : pos+4])
	m.chain[pos] = m.head[h]
	m.head[h] = int32(pos)
}

// Slide shifts every recorded position back by delta (called after
// DeflateWindow.Slide so positions stay consistent with the compacted
// buffer), dropping any that would go negative.
func (m *MatchFinder) Slide(delta int) {
	// chain is indexed by position too, so its entries move down with
	// the buffer before their values are adjusted.
	copy(m.chain, m.chain[delta:])
	for i := len(m.chain) - delta; i < len(m.chain); i++ {
		m.chain[i] = -1
	}
	for i := range m.head {
		if m.head[i] >= int32(delta) {
			m.head[i] -= int32(delta)
		} else {
			m.head[i] = -1
		}
	}
	for i := range m.chain {
		if m.chain[i] >= int32(delta) {
			m.chain[i] -= int32(delta)
		} else {
			m.chain[i] = -1
		}
	}
}

// Match is a candidate LZ77 back-reference: Length bytes available by
// copying from Distance bytes behind pos.
type Match struct {
	Length   int
	Distance int
}

// Find searches for the best match starting at pos, subject to the
// level's Nice/Chain/Good parameters (§4.8's lazy-matching tuning). It
// returns ok == false if no match of at least minMatch length exists.
// prevLength is the length of an already-held candidate match from the
// previous position (0 if none); when it is at least Good, only a
// quarter of the Chain budget is walked, matching the lazy-matching
// shortcut klauspost's deflateLazy loop takes.
func (m *MatchFinder) Find(pos int, params LevelParams, prevLength int) (Match, bool) {
	b := m.win.Bytes()
	maxLen := len(b) - pos
	if maxLen > maxMatchLookahead {
		maxLen = maxMatchLookahead
	}
	if maxLen < minMatch {
		return Match{}, false
	}

	h := hash4(b[pos : pos+4])
	cand := m.head[h]
	if int(cand) == pos {
		// pos itself was just inserted; start from the entry before it.
		cand = m.chain[pos]
	}
	chainLen := params.Chain
	if prevLength >= params.Good {
		chainLen >>= 2
	}

	best := Match{}
	for cand >= 0 && chainLen > 0 {
		c := int(cand)
		dist := pos - c
		if dist <= 0 || dist > windowSize {
			break
		}
		length := matchLength(b, c, pos, maxLen)
		if length > best.Length {
			best = Match{Length: length, Distance: dist}
			if length >= params.Nice {
				break
			}
		}
		cand = m.chain[c]
		chainLen--
	}

	if best.Length < minMatch {
		return Match{}, false
	}
	return best, true
}

// matchLength returns how many bytes starting at candidate and at pos
// agree, up to maxLen.
func matchLength(b []byte, candidate, pos, maxLen int) int {
	n := 0
	for n < maxLen && b[candidate+n] == b[pos+n] {
		n++
	}
	return n
}
