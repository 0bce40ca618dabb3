package wrap

import (
	"bytes"
	"io"
	"testing"

	"github.com/corenko/flatekit/internal/flatecore"
)

func roundTripRaw(t *testing.T, data []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewRawWriter(&buf, level, flatecore.ModeNormal)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r := NewRawReader(&buf)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return got
}

func TestRawRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("Hello world\n"),
		bytes.Repeat([]byte("ABCDEABCD ABCDEABCD"), 50),
		bytes.Repeat([]byte{0, 1, 2, 3}, 20000),
	}
	for _, c := range cases {
		for _, level := range []int{1, 6, 9} {
			got := roundTripRaw(t, c, level)
			if !bytes.Equal(got, c) {
				t.Errorf("level %d: round trip mismatch for %d-byte input", level, len(c))
			}
		}
	}
}

func TestGzipRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly, repeatedly")
	var buf bytes.Buffer
	w, err := NewGzipWriter(&buf, 6, flatecore.ModeNormal, Header{Name: "test.txt"})
	if err != nil {
		t.Fatalf("NewGzipWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewGzipReader(&buf)
	if err != nil {
		t.Fatalf("NewGzipReader: %v", err)
	}
	if r.Header.Name != "test.txt" {
		t.Errorf("Name = %q, want test.txt", r.Header.Name)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch")
	}
}

func TestGzipConcatenatedMembers(t *testing.T) {
	var buf bytes.Buffer
	parts := [][]byte{[]byte("first member\n"), []byte("second member\n")}
	for _, p := range parts {
		w, err := NewGzipWriter(&buf, 6, flatecore.ModeNormal, Header{})
		if err != nil {
			t.Fatalf("NewGzipWriter: %v", err)
		}
		if _, err := w.Write(p); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	r, err := NewGzipReader(&buf)
	if err != nil {
		t.Fatalf("NewGzipReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := append(append([]byte{}, parts[0]...), parts[1]...)
	if !bytes.Equal(got, want) {
		t.Errorf("concatenated round trip mismatch: got %q, want %q", got, want)
	}
}

func TestGzipChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewGzipWriter(&buf, 6, flatecore.ModeNormal, Header{})
	if err != nil {
		t.Fatalf("NewGzipWriter: %v", err)
	}
	if _, err := w.Write([]byte("corrupt me")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b := buf.Bytes()
	b[len(b)-1] ^= 0xff // flip the bits of ISIZE's last byte

	r, err := NewGzipReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("NewGzipReader: %v", err)
	}
	if _, err := io.ReadAll(r); err != ErrChecksum {
		t.Errorf("got err %v, want ErrChecksum", err)
	}
}

func TestZlibRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("zlib round trip payload "), 200)
	var buf bytes.Buffer
	w, err := NewZlibWriter(&buf, 9, flatecore.ModeNormal)
	if err != nil {
		t.Fatalf("NewZlibWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	header := buf.Bytes()[:2]
	if header[0] != zlibDeflateMethod {
		t.Errorf("CMF = %#x, want %#x", header[0], zlibDeflateMethod)
	}

	r, err := NewZlibReader(&buf)
	if err != nil {
		t.Fatalf("NewZlibReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch")
	}
}

func TestZlibBadHeader(t *testing.T) {
	if _, err := NewZlibReader(bytes.NewReader([]byte{0x08, 0x1d})); err != ErrZlibHeader {
		t.Errorf("got %v, want ErrZlibHeader", err)
	}
}

func TestGzipWriterReaderReset(t *testing.T) {
	streams := [][]byte{[]byte("first"), bytes.Repeat([]byte("second, longer "), 100)}

	var buf1 bytes.Buffer
	w, err := NewGzipWriter(&buf1, 6, flatecore.ModeNormal, Header{Name: "a.txt"})
	if err != nil {
		t.Fatalf("NewGzipWriter: %v", err)
	}
	if _, err := w.Write(streams[0]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var buf2 bytes.Buffer
	if err := w.Reset(&buf2, 6, Header{Name: "b.txt"}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := w.Write(streams[1]); err != nil {
		t.Fatalf("Write after Reset: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close after Reset: %v", err)
	}

	r, err := NewGzipReader(&buf1)
	if err != nil {
		t.Fatalf("NewGzipReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, streams[0]) || r.Header.Name != "a.txt" {
		t.Fatalf("first stream mismatch: got %q name %q", got, r.Header.Name)
	}

	if err := r.Reset(&buf2); err != nil {
		t.Fatalf("Reader Reset: %v", err)
	}
	got, err = io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll after Reset: %v", err)
	}
	if !bytes.Equal(got, streams[1]) || r.Header.Name != "b.txt" {
		t.Fatalf("second stream mismatch: got %d bytes name %q", len(got), r.Header.Name)
	}
}

func TestStoreOnlyMode(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 1000)
	var buf bytes.Buffer
	w := NewRawWriter(&buf, 6, flatecore.ModeStoreOnly)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r := NewRawReader(&buf)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch under store-only mode")
	}
}
