package huffman

import "testing"

func TestBuildLengthLimitedRoundTrips(t *testing.T) {
	freq := make([]int32, MaxLitSyms)
	// A skewed distribution so the tree has real structure.
	for i := range freq {
		freq[i] = int32((i%17 + 1))
	}
	freq[EndOfBlock] += 100

	lengths, codes := BuildLengthLimited(freq, MaxCodeLen)

	d := NewDecoder(9)
	if err := d.Build(lengths); err != nil {
		t.Fatalf("Build: %v", err)
	}
	for sym, f := range freq {
		if f == 0 {
			continue
		}
		c := codes[sym]
		if c.Len == 0 {
			t.Fatalf("symbol %d has frequency but zero length", sym)
		}
		gotSym, gotLen, err := d.Decode(uint32(c.Bits))
		if err != nil {
			t.Fatalf("symbol %d: Decode: %v", sym, err)
		}
		if gotSym != sym || gotLen != int(c.Len) {
			t.Errorf("symbol %d: got (%d,%d) want (%d,%d)", sym, gotSym, gotLen, sym, c.Len)
		}
	}
}

func TestBuildLengthLimitedRespectsMax(t *testing.T) {
	// A Fibonacci-like frequency skew is the classic adversarial input
	// for unlimited Huffman construction: it wants codes far longer than
	// the format allows.
	freq := make([]int32, 40)
	a, b := int32(1), int32(1)
	for i := range freq {
		freq[i] = a
		a, b = b, a+b
	}
	lengths, _ := BuildLengthLimited(freq, 7)
	for sym, l := range lengths {
		if l > 7 {
			t.Errorf("symbol %d has length %d, exceeds limit of 7", sym, l)
		}
	}

	d := NewDecoder(7)
	if err := d.Build(lengths); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestBuildLengthLimitedSingleSymbol(t *testing.T) {
	freq := make([]int32, 10)
	freq[3] = 5
	lengths, codes := BuildLengthLimited(freq, MaxCodeLen)
	if lengths[3] != 1 {
		t.Errorf("single symbol should get length 1, got %d", lengths[3])
	}
	if codes[3].Len != 1 {
		t.Errorf("single symbol code length = %d, want 1", codes[3].Len)
	}
}

func TestEstimateBits(t *testing.T) {
	freq := []int32{0, 5, 0, 3}
	lengths := []int{0, 2, 0, 3}
	got := EstimateBits(freq, lengths)
	want := int64(5*2 + 3*3)
	if got != want {
		t.Errorf("EstimateBits = %d, want %d", got, want)
	}
}
