package flatekit_test

import (
	"bytes"
	compressflate "compress/flate"
	compressgzip "compress/gzip"
	compresszlib "compress/zlib"
	"io"
	"math/rand"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/corenko/flatekit"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("Hello world\n"),
		[]byte("ABCDEABCD ABCDEABCD"),
		bytes.Repeat([]byte("the quick brown fox "), 500),
		randomBytes(50000, 1),
	}
	kinds := []flatekit.Kind{flatekit.Raw, flatekit.Gzip, flatekit.Zlib}
	levels := []flatekit.Level{flatekit.Store, flatekit.HuffmanOnly, flatekit.Fastest, flatekit.Default, flatekit.Best}

	for _, kind := range kinds {
		for _, level := range levels {
			for _, in := range inputs {
				var compressed bytes.Buffer
				if err := flatekit.Compress(kind, &compressed, bytes.NewReader(in), level); err != nil {
					t.Fatalf("Compress(%v, level %d): %v", kind, level, err)
				}
				var out bytes.Buffer
				if err := flatekit.Decompress(kind, &out, &compressed); err != nil {
					t.Fatalf("Decompress(%v, level %d): %v", kind, level, err)
				}
				if !bytes.Equal(out.Bytes(), in) {
					t.Fatalf("%v level %d: round trip mismatch, got %d bytes want %d", kind, level, out.Len(), len(in))
				}
			}
		}
	}
}

// TestDecodesStdlibOutput confirms flatekit's decoders accept streams
// produced by the standard library's own implementations of the same
// formats, run concurrently across kinds with errgroup the way a
// multi-format verification suite naturally wants to.
func TestDecodesStdlibOutput(t *testing.T) {
	payload := bytes.Repeat([]byte("cross-implementation compatibility payload "), 300)

	var g errgroup.Group

	g.Go(func() error {
		var buf bytes.Buffer
		fw, err := compressflate.NewWriter(&buf, compressflate.BestCompression)
		if err != nil {
			return err
		}
		if _, err := fw.Write(payload); err != nil {
			return err
		}
		if err := fw.Close(); err != nil {
			return err
		}
		var out bytes.Buffer
		if err := flatekit.Decompress(flatekit.Raw, &out, &buf); err != nil {
			return err
		}
		if !bytes.Equal(out.Bytes(), payload) {
			t.Error("raw: flatekit failed to decode stdlib compress/flate output")
		}
		return nil
	})

	g.Go(func() error {
		var buf bytes.Buffer
		gw := compressgzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return err
		}
		if err := gw.Close(); err != nil {
			return err
		}
		var out bytes.Buffer
		if err := flatekit.Decompress(flatekit.Gzip, &out, &buf); err != nil {
			return err
		}
		if !bytes.Equal(out.Bytes(), payload) {
			t.Error("gzip: flatekit failed to decode stdlib compress/gzip output")
		}
		return nil
	})

	g.Go(func() error {
		var buf bytes.Buffer
		zw := compresszlib.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		var out bytes.Buffer
		if err := flatekit.Decompress(flatekit.Zlib, &out, &buf); err != nil {
			return err
		}
		if !bytes.Equal(out.Bytes(), payload) {
			t.Error("zlib: flatekit failed to decode stdlib compress/zlib output")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// TestStdlibDecodesOurOutput checks the reverse direction: the standard
// library's decoders must accept what flatekit produces.
func TestStdlibDecodesOurOutput(t *testing.T) {
	payload := randomBytes(20000, 7)

	t.Run("raw", func(t *testing.T) {
		var buf bytes.Buffer
		if err := flatekit.Compress(flatekit.Raw, &buf, bytes.NewReader(payload), flatekit.Default); err != nil {
			t.Fatalf("Compress: %v", err)
		}
		fr := compressflate.NewReader(&buf)
		got, err := io.ReadAll(fr)
		if err != nil {
			t.Fatalf("compress/flate ReadAll: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Error("round trip mismatch via stdlib flate reader")
		}
	})

	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		if err := flatekit.Compress(flatekit.Gzip, &buf, bytes.NewReader(payload), flatekit.Default); err != nil {
			t.Fatalf("Compress: %v", err)
		}
		gr, err := compressgzip.NewReader(&buf)
		if err != nil {
			t.Fatalf("compress/gzip NewReader: %v", err)
		}
		got, err := io.ReadAll(gr)
		if err != nil {
			t.Fatalf("compress/gzip ReadAll: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Error("round trip mismatch via stdlib gzip reader")
		}
	})

	t.Run("zlib", func(t *testing.T) {
		var buf bytes.Buffer
		if err := flatekit.Compress(flatekit.Zlib, &buf, bytes.NewReader(payload), flatekit.Default); err != nil {
			t.Fatalf("Compress: %v", err)
		}
		zr, err := compresszlib.NewReader(&buf)
		if err != nil {
			t.Fatalf("compress/zlib NewReader: %v", err)
		}
		got, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("compress/zlib ReadAll: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Error("round trip mismatch via stdlib zlib reader")
		}
	})
}

func TestDecompressChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := flatekit.Compress(flatekit.Gzip, &buf, bytes.NewReader([]byte("tamper target")), flatekit.Default); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	b := buf.Bytes()
	b[len(b)-1] ^= 0xff

	var out bytes.Buffer
	err := flatekit.Decompress(flatekit.Gzip, &out, bytes.NewReader(b))
	if err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestGzipHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c, err := flatekit.NewCompressorWithHeader(flatekit.Gzip, &buf, flatekit.Default, flatekit.Header{Name: "report.csv"})
	if err != nil {
		t.Fatalf("NewCompressorWithHeader: %v", err)
	}
	if _, err := c.Write([]byte("a,b,c\n1,2,3\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d, err := flatekit.NewDecompressor(flatekit.Gzip, &buf)
	if err != nil {
		t.Fatalf("NewDecompressor: %v", err)
	}
	if _, err := io.ReadAll(d); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if d.Header() == nil || d.Header().Name != "report.csv" {
		t.Errorf("Header = %+v, want Name=report.csv", d.Header())
	}
}

// TestCompressorDecompressorReset confirms Reset lets a single
// Compressor/Decompressor pair serve multiple independent streams
// without reallocating their underlying codecs.
func TestCompressorDecompressorReset(t *testing.T) {
	inputs := [][]byte{
		[]byte("first stream"),
		bytes.Repeat([]byte("second stream, much longer "), 200),
		[]byte(""),
	}

	for _, kind := range []flatekit.Kind{flatekit.Raw, flatekit.Gzip, flatekit.Zlib} {
		var first bytes.Buffer
		if err := flatekit.Compress(kind, &first, bytes.NewReader(inputs[0]), flatekit.Default); err != nil {
			t.Fatalf("%v: Compress: %v", kind, err)
		}

		c, err := flatekit.NewCompressor(kind, io.Discard, flatekit.Default)
		if err != nil {
			t.Fatalf("%v: NewCompressor: %v", kind, err)
		}
		d, err := flatekit.NewDecompressor(kind, &first)
		if err != nil {
			t.Fatalf("%v: NewDecompressor: %v", kind, err)
		}
		out, err := io.ReadAll(d)
		if err != nil {
			t.Fatalf("%v: ReadAll: %v", kind, err)
		}
		if !bytes.Equal(out, inputs[0]) {
			t.Errorf("%v: initial round trip mismatch, got %d bytes want %d", kind, len(out), len(inputs[0]))
		}

		for _, in := range inputs[1:] {
			var compressed bytes.Buffer
			if err := c.Reset(&compressed, flatekit.Default); err != nil {
				t.Fatalf("%v: Compressor.Reset: %v", kind, err)
			}
			if _, err := c.Write(in); err != nil {
				t.Fatalf("%v: Write: %v", kind, err)
			}
			if err := c.Close(); err != nil {
				t.Fatalf("%v: Close: %v", kind, err)
			}

			if err := d.Reset(bytes.NewReader(compressed.Bytes())); err != nil {
				t.Fatalf("%v: Decompressor.Reset: %v", kind, err)
			}
			out, err := io.ReadAll(d)
			if err != nil {
				t.Fatalf("%v: ReadAll: %v", kind, err)
			}
			if !bytes.Equal(out, in) {
				t.Errorf("%v: reset round trip mismatch, got %d bytes want %d", kind, len(out), len(in))
			}
		}
	}
}

func randomBytes(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return b
}
