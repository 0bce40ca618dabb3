package huffman

import "testing"

func TestDecoderFixedLiteralTable(t *testing.T) {
	d := NewDecoder(9)
	if err := d.Build(FixedLiteralLengths()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	codes := AssignCanonicalCodes(FixedLiteralLengths())
	for sym, c := range codes {
		if c.Len == 0 {
			continue
		}
		peek := uint32(c.Bits)
		gotSym, gotLen, err := d.Decode(peek)
		if err != nil {
			t.Fatalf("symbol %d: Decode: %v", sym, err)
		}
		if gotSym != sym {
			t.Errorf("symbol %d: got sym %d", sym, gotSym)
		}
		if gotLen != int(c.Len) {
			t.Errorf("symbol %d: got len %d, want %d", sym, gotLen, c.Len)
		}
	}
}

func TestDecoderFixedDistTable(t *testing.T) {
	d := NewDecoder(9)
	if err := d.Build(FixedDistLengths()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	codes := AssignCanonicalCodes(FixedDistLengths())
	for sym, c := range codes {
		gotSym, gotLen, err := d.Decode(uint32(c.Bits))
		if err != nil {
			t.Fatalf("symbol %d: Decode: %v", sym, err)
		}
		if gotSym != sym || gotLen != int(c.Len) {
			t.Errorf("symbol %d: got (%d,%d) want (%d,%d)", sym, gotSym, gotLen, sym, c.Len)
		}
	}
}

func TestDecoderDegenerateSingleSymbol(t *testing.T) {
	lengths := make([]int, 5)
	lengths[2] = 1
	d := NewDecoder(9)
	if err := d.Build(lengths); err != nil {
		t.Fatalf("Build: %v", err)
	}
	sym, length, err := d.Decode(0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sym != 2 || length != 1 {
		t.Errorf("got (%d,%d), want (2,1)", sym, length)
	}
}

func TestDecoderOverSubscribed(t *testing.T) {
	lengths := []int{1, 1, 1}
	d := NewDecoder(9)
	if err := d.Build(lengths); err == nil {
		t.Fatal("expected ErrIncompleteTree for over-subscribed lengths")
	}
}

func TestDecoderUnderSubscribed(t *testing.T) {
	lengths := []int{1, 2, 3}
	d := NewDecoder(9)
	if err := d.Build(lengths); err == nil {
		t.Fatal("expected ErrIncompleteTree for under-subscribed lengths")
	}
}

func TestDecoderLongCodesUseOverflow(t *testing.T) {
	// Construct a length set that forces some codes past a small
	// primaryBits, exercising the links table.
	lengths := make([]int, 20)
	lengths[0] = 2
	lengths[1] = 2
	lengths[2] = 2
	lengths[3] = 3
	for i := 4; i < 20; i++ {
		lengths[i] = 7
	}
	d := NewDecoder(4) // forces symbols at length 7 into overflow
	if err := d.Build(lengths); err != nil {
		t.Fatalf("Build: %v", err)
	}
	codes := AssignCanonicalCodes(lengths)
	for sym, c := range codes {
		if c.Len == 0 {
			continue
		}
		gotSym, gotLen, err := d.Decode(uint32(c.Bits))
		if err != nil {
			t.Fatalf("symbol %d (len %d): Decode: %v", sym, c.Len, err)
		}
		if gotSym != sym || gotLen != int(c.Len) {
			t.Errorf("symbol %d: got (%d,%d) want (%d,%d)", sym, gotSym, gotLen, sym, c.Len)
		}
	}
}
