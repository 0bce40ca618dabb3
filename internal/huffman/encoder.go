package huffman

import "sort"

// Code is an assigned canonical Huffman code: Bits holds the code value
// with bit 0 first in transmission order (i.e. already reversed, ready
// to hand to bitio.Writer.WriteBits), and Len is its length in bits.
type Code struct {
	Bits uint16
	Len  uint8
}

// BuildLengthLimited derives length-limited canonical code lengths for
// the given symbol frequencies, then assigns canonical codes from them.
// maxLen bounds the longest code (15 for literal/length and distance
// tables, 7 for the code-length alphabet, per §4.5). Symbols with zero
// frequency get length 0 (unused). At least two non-zero-frequency
// symbols are required to produce a valid prefix code; a single
// non-zero symbol is still accepted and assigned length 1, matching the
// degenerate case Decoder.Build tolerates on the read side.
func BuildLengthLimited(freq []int32, maxLen int) ([]int, []Code) {
	lengths := buildLengths(freq, maxLen)
	codes := AssignCanonicalCodes(lengths)
	return lengths, codes
}

// buildLengths computes per-symbol code lengths from freq using the
// standard Huffman construction (repeatedly merge the two least frequent
// nodes), then applies a length-limiting correction pass so no code
// exceeds maxLen, mirroring the approach commercial DEFLATE encoders use
// to keep the table representable in a 15-bit (or 7-bit) field.
func buildLengths(freq []int32, maxLen int) []int {
	n := len(freq)
	lengths := make([]int, n)

	type item = struct {
		freq int64
		idx  int // >=0: leaf symbol; <0: -(internal node id)-1
	}
	var items []item
	for sym, f := range freq {
		if f > 0 {
			items = append(items, item{freq: int64(f), idx: sym})
		}
	}
	if len(items) == 0 {
		return lengths
	}
	if len(items) == 1 {
		lengths[items[0].idx] = 1
		return lengths
	}

	// depth[i] accumulates tree depth per original item index (by
	// position in items, not by symbol) as nodes are merged.
	depth := make([]int, len(items))

	type pqEntry struct {
		freq    int64
		members []int // indices into items/depth belonging to this merged group
	}
	pq := make([]pqEntry, len(items))
	for i, it := range items {
		pq[i] = pqEntry{freq: it.freq, members: []int{i}}
	}

	for len(pq) > 1 {
		sort.Slice(pq, func(a, b int) bool { return pq[a].freq < pq[b].freq })
		a, b := pq[0], pq[1]
		for _, m := range a.members {
			depth[m]++
		}
		for _, m := range b.members {
			depth[m]++
		}
		merged := pqEntry{
			freq:    a.freq + b.freq,
			members: append(append([]int{}, a.members...), b.members...),
		}
		pq = append(pq[2:], merged)
	}

	for i, it := range items {
		d := depth[i]
		if d == 0 {
			d = 1
		}
		lengths[it.idx] = d
	}

	limitLengths(lengths, items, maxLen)
	return lengths
}

// limitLengths applies the classic overflow-redistribution correction:
// while any code exceeds maxLen, repeatedly pull two leaves from the
// deepest non-empty level below the limit, merge them one level deeper,
// and push the freed length back down to the shallowest overflowing
// level. This keeps the code length sum consistent with Kraft's equality
// while capping every length at maxLen.
func limitLengths(lengths []int, items []struct {
	freq int64
	idx  int
}, maxLen int) {
	overflow := false
	for _, l := range lengths {
		if l > maxLen {
			overflow = true
			break
		}
	}
	if !overflow {
		return
	}

	var counts [64]int
	for _, l := range lengths {
		if l > 0 {
			counts[l]++
		}
	}

	// Move every over-limit code down to maxLen, tracking the resulting
	// Kraft-sum deficit.
	for l := maxLen + 1; l < len(counts); l++ {
		counts[maxLen] += counts[l]
		counts[l] = 0
	}

	// Compute how far over/under Kraft's equality (sum 2^-len == 1) the
	// current counts put us, in units of 1/2^maxLen, and correct by
	// shortening the deepest codes and lengthening shallower ones one
	// step at a time until balanced.
	for {
		var over int64
		for l := 1; l <= maxLen; l++ {
			over += int64(counts[l]) << uint(maxLen-l)
		}
		target := int64(1) << uint(maxLen)
		if over <= target {
			break
		}
		l := maxLen - 1
		for l > 0 && counts[l] == 0 {
			l--
		}
		if l == 0 {
			break
		}
		counts[l]--
		counts[l+1] += 2
		counts[maxLen]--
	}

	// Re-emit lengths in nondecreasing order of original length (stable
	// per symbol order), filling from the corrected counts table.
	type ls struct {
		idx int
		l   int
	}
	var entries []ls
	for _, it := range items {
		entries = append(entries, ls{idx: it.idx, l: lengths[it.idx]})
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].l < entries[b].l })

	l := 1
	for l <= maxLen && counts[l] == 0 {
		l++
	}
	remaining := 0
	if l <= maxLen {
		remaining = counts[l]
	}
	for _, e := range entries {
		for remaining == 0 && l < maxLen {
			l++
			remaining = counts[l]
		}
		lengths[e.idx] = l
		remaining--
	}
}

// AssignCanonicalCodes turns a length vector into canonical codes, using
// the same nextCode construction as Decoder.Build, with the bits stored
// already reversed (MSB-first assignment, LSB-first transmission) so
// callers can feed Bits straight to bitio.Writer.WriteBits. It is the
// building block BuildLengthLimited uses internally, exposed directly
// for callers (like the fixed Huffman tables) that already have fixed
// lengths and don't need the frequency-driven construction.
func AssignCanonicalCodes(lengths []int) []Code {
	const maxLen = MaxCodeLen
	var count [maxLen + 1]int
	for _, l := range lengths {
		if l > 0 {
			count[l]++
		}
	}
	var nextCode [maxLen + 1]uint32
	var code uint32
	for l := 1; l <= maxLen; l++ {
		code = (code + uint32(count[l-1])) << 1
		nextCode[l] = code
	}

	codes := make([]Code, len(lengths))
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		c := nextCode[l]
		nextCode[l]++
		codes[sym] = Code{Bits: uint16(reverse(c, l)), Len: uint8(l)}
	}
	return codes
}

// EstimateBits returns the number of bits emitting codes built from
// lengths over freq would take — used by BlockWriter to compare dynamic,
// fixed, and stored encodings for a block before committing to one.
func EstimateBits(freq []int32, lengths []int) int64 {
	var total int64
	for sym, f := range freq {
		if f > 0 {
			total += int64(f) * int64(lengths[sym])
		}
	}
	return total
}
