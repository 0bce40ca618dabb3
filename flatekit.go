// Package flatekit implements DEFLATE (RFC 1951), gzip (RFC 1952), and
// zlib (RFC 1950) compression and decompression from scratch: no part
// of the codec delegates to compress/flate, compress/gzip, or
// compress/zlib. Kind selects the container; Level selects the
// compression/speed tradeoff. The one-shot Compress/Decompress
// functions cover the common case, while NewCompressor/NewDecompressor
// expose streaming Reader/Writer types for callers who need to pipeline
// compression with I/O instead of buffering a whole payload.
package flatekit

import (
	"errors"
	"fmt"
	"io"

	"github.com/corenko/flatekit/internal/flatecore"
	"github.com/corenko/flatekit/internal/huffman"
	"github.com/corenko/flatekit/internal/wrap"
)

// Kind selects which container format wraps the DEFLATE stream.
type Kind int

const (
	// Raw is headerless DEFLATE with no checksum.
	Raw Kind = iota
	// Gzip is RFC 1952 framing with a CRC-32/ISIZE trailer.
	Gzip
	// Zlib is RFC 1950 framing with an Adler-32 trailer.
	Zlib
)

func (k Kind) String() string {
	switch k {
	case Raw:
		return "raw"
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	default:
		return "unknown"
	}
}

// Level selects a compression/speed tradeoff. Fastest through Best span
// levels 4..9 of the same tuning table gzip/zlib implementations
// conventionally use; every level 1..9 is accepted, other levels below 1
// fall back to Default and levels above 9 are treated as Best. Store and
// HuffmanOnly are the two special modes BlockWriter's Mode exposes
// directly.
type Level int

const (
	Fastest     Level = 4
	Default     Level = 6
	Best        Level = 9
	Store       Level = -1 // no LZ77, no Huffman coding: every block stored
	HuffmanOnly Level = -2 // no LZ77 matching, but still Huffman-coded
)

// ErrCorruptInput wraps any error flatekit's decoders return when the
// input stream violates a DEFLATE/gzip/zlib invariant: a malformed
// Huffman table, an out-of-range back-reference, a bad block-type code,
// or a header/footer whose fields don't parse.
var ErrCorruptInput = errors.New("flatekit: corrupt input")

// ErrChecksumMismatch wraps a gzip CRC-32 or zlib Adler-32 trailer that
// doesn't match the data actually decompressed.
var ErrChecksumMismatch = errors.New("flatekit: checksum mismatch")

func (k Kind) newWriter(w io.Writer, level int, mode flatecore.Mode, hdr Header) (io.WriteCloser, error) {
	switch k {
	case Raw:
		return wrap.NewRawWriter(w, level, mode), nil
	case Gzip:
		return wrap.NewGzipWriter(w, level, mode, wrap.Header{Name: hdr.Name, Comment: hdr.Comment})
	case Zlib:
		return wrap.NewZlibWriter(w, level, mode)
	default:
		return nil, fmt.Errorf("flatekit: unknown Kind %d", k)
	}
}

func (k Kind) newReader(r io.Reader) (io.ReadCloser, error) {
	switch k {
	case Raw:
		return wrap.NewRawReader(r), nil
	case Gzip:
		gr, err := wrap.NewGzipReader(r)
		return wrapReader{gr, err}.resolve()
	case Zlib:
		zr, err := wrap.NewZlibReader(r)
		return wrapReader{zr, err}.resolve()
	default:
		return nil, fmt.Errorf("flatekit: unknown Kind %d", k)
	}
}

// wrapReader defers the nil-interface-vs-nil-pointer footgun of
// returning a typed nil (*wrap.GzipReader)(nil) as a non-nil
// io.ReadCloser.
type wrapReader struct {
	r   io.ReadCloser
	err error
}

func (w wrapReader) resolve() (io.ReadCloser, error) {
	if w.err != nil {
		return nil, translateWrapErr(w.err)
	}
	return w.r, nil
}

func translateWrapErr(err error) error {
	switch {
	case errors.Is(err, wrap.ErrHeader), errors.Is(err, wrap.ErrZlibHeader):
		return fmt.Errorf("%w: %v", ErrCorruptInput, err)
	case errors.Is(err, wrap.ErrChecksum), errors.Is(err, wrap.ErrZlibChecksum):
		return fmt.Errorf("%w: %v", ErrChecksumMismatch, err)
	case errors.Is(err, flatecore.ErrCorruptInput),
		errors.Is(err, huffman.ErrCorruptInput), errors.Is(err, huffman.ErrIncompleteTree):
		return fmt.Errorf("%w: %v", ErrCorruptInput, err)
	default:
		return err
	}
}

func levelToModeAndInt(level Level) (int, flatecore.Mode) {
	switch level {
	case Store:
		return 1, flatecore.ModeStoreOnly
	case HuffmanOnly:
		return 1, flatecore.ModeHuffmanOnly
	default:
		l := int(level)
		if l < 1 {
			l = int(Default)
		}
		if l > 9 {
			l = 9
		}
		return l, flatecore.ModeNormal
	}
}

// Header carries the optional gzip member metadata Compress/NewCompressor
// can set when kind is Gzip; it is ignored for Raw and Zlib.
type Header struct {
	Name    string
	Comment string
}

// Compress reads all of r, compresses it as kind at the given level, and
// writes the result to w.
func Compress(kind Kind, w io.Writer, r io.Reader, level Level) error {
	c, err := NewCompressor(kind, w, level)
	if err != nil {
		return err
	}
	if _, err := io.Copy(c, r); err != nil {
		c.Close()
		return err
	}
	return c.Close()
}

// Decompress reads all of r as a kind-framed stream and writes the
// decompressed result to w.
func Decompress(kind Kind, w io.Writer, r io.Reader) error {
	d, err := NewDecompressor(kind, r)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, d); err != nil {
		return err
	}
	return d.Close()
}

// Compressor is a streaming io.WriteCloser: every Write call compresses
// its input incrementally, and Close flushes the final block and any
// container footer (checksum/length trailer).
type Compressor struct {
	kind  Kind
	level Level
	wc    io.WriteCloser
}

// NewCompressor returns a Compressor writing a kind-framed stream to w
// at the given level. For Gzip, use NewCompressorWithHeader to attach
// member metadata.
func NewCompressor(kind Kind, w io.Writer, level Level) (*Compressor, error) {
	return NewCompressorWithHeader(kind, w, level, Header{})
}

// NewCompressorWithHeader is NewCompressor with gzip member metadata.
func NewCompressorWithHeader(kind Kind, w io.Writer, level Level, hdr Header) (*Compressor, error) {
	l, mode := levelToModeAndInt(level)
	wc, err := kind.newWriter(w, l, mode, hdr)
	if err != nil {
		return nil, err
	}
	return &Compressor{kind: kind, level: level, wc: wc}, nil
}

// Write implements io.Writer.
func (c *Compressor) Write(p []byte) (int, error) { return c.wc.Write(p) }

// Flush is a no-op. It does not emit buffered data: the last input bytes
// Write keeps as match lookahead, the tokens of the block in progress,
// and output bits short of a full staging buffer all stay buffered until
// later writes or Close push them out. Flush exists so callers written
// against a conventional streaming-compressor interface still compile.
func (c *Compressor) Flush() error { return nil }

// Close flushes the final DEFLATE block (bfinal=1) and any container
// footer.
func (c *Compressor) Close() error { return c.wc.Close() }

// Reset rebinds the Compressor to emit a new kind-framed stream to w at
// level, reusing the underlying codec's buffers instead of allocating a
// fresh one — useful for a server compressing many responses back to
// back. Reset requires the Compressor's kind to support reuse in place;
// all three kinds do.
func (c *Compressor) Reset(w io.Writer, level Level) error {
	return c.ResetWithHeader(w, level, Header{})
}

// ResetWithHeader is Reset with gzip member metadata.
func (c *Compressor) ResetWithHeader(w io.Writer, level Level, hdr Header) error {
	// Mode (store/huffman-only/normal) is fixed at construction time;
	// Reset only rebinds the sink and adjusts the level within that mode.
	l, _ := levelToModeAndInt(level)
	switch wc := c.wc.(type) {
	case *wrap.RawWriter:
		wc.Reset(w, l)
	case *wrap.GzipWriter:
		if err := wc.Reset(w, l, wrap.Header{Name: hdr.Name, Comment: hdr.Comment}); err != nil {
			return err
		}
	case *wrap.ZlibWriter:
		if err := wc.Reset(w, l); err != nil {
			return err
		}
	default:
		return fmt.Errorf("flatekit: Compressor.Reset: unsupported underlying writer %T", c.wc)
	}
	c.level = level
	return nil
}

// HuffmanOnlyWriter returns a Compressor that never performs LZ77
// matching (every token is a literal) but still Huffman-codes its
// output — useful for already-compressed or encrypted payloads where a
// match search would waste time without ever paying off.
func HuffmanOnlyWriter(kind Kind, w io.Writer) (*Compressor, error) {
	return NewCompressor(kind, w, HuffmanOnly)
}

// StoreOnlyWriter returns a Compressor that emits every block as a
// stored (uncompressed) block: the fastest possible mode, and a useful
// baseline for comparing against real compression.
func StoreOnlyWriter(kind Kind, w io.Writer) (*Compressor, error) {
	return NewCompressor(kind, w, Store)
}

// Decompressor is a streaming io.ReadCloser: Read decompresses
// incrementally and, for Gzip/Zlib, verifies the container footer's
// checksum when it reaches the end of the stream.
type Decompressor struct {
	kind Kind
	rc   io.ReadCloser
	hdr  *Header
}

// NewDecompressor returns a Decompressor reading a kind-framed stream
// from r. For Gzip, the member's Name/Comment (if present) are available
// via Decompressor.Header once decoding starts.
func NewDecompressor(kind Kind, r io.Reader) (*Decompressor, error) {
	rc, err := kind.newReader(r)
	if err != nil {
		return nil, err
	}
	d := &Decompressor{kind: kind, rc: rc}
	if gr, ok := rc.(*wrap.GzipReader); ok {
		d.hdr = &Header{Name: gr.Header.Name, Comment: gr.Header.Comment}
	}
	return d, nil
}

// Read implements io.Reader.
func (d *Decompressor) Read(p []byte) (int, error) {
	n, err := d.rc.Read(p)
	if err != nil && err != io.EOF {
		return n, translateWrapErr(err)
	}
	return n, err
}

// Close does no verification of its own: Read has already checked any
// container footer at end of stream, and the underlying readers' Close
// methods are no-ops.
func (d *Decompressor) Close() error {
	if err := d.rc.Close(); err != nil {
		return translateWrapErr(err)
	}
	return nil
}

// Header returns the first gzip member's metadata, parsed when the
// Decompressor is constructed (or Reset), or nil for Raw/Zlib streams,
// which carry none.
func (d *Decompressor) Header() *Header { return d.hdr }

// Reset rebinds the Decompressor to decode a new kind-framed stream
// from r, reusing the underlying decoder's history window and tables
// instead of allocating fresh ones.
func (d *Decompressor) Reset(r io.Reader) error {
	switch rc := d.rc.(type) {
	case *wrap.RawReader:
		rc.Reset(r)
	case *wrap.GzipReader:
		if err := rc.Reset(r); err != nil {
			return translateWrapErr(err)
		}
		d.hdr = &Header{Name: rc.Header.Name, Comment: rc.Header.Comment}
	case *wrap.ZlibReader:
		if err := rc.Reset(r); err != nil {
			return translateWrapErr(err)
		}
	default:
		return fmt.Errorf("flatekit: Decompressor.Reset: unsupported underlying reader %T", d.rc)
	}
	return nil
}
