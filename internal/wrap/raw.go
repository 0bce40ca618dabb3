// Package wrap implements the three container formats flatekit reads
// and writes around a raw DEFLATE stream: headerless raw DEFLATE itself,
// gzip (RFC 1952), and zlib (RFC 1950). Each format pairs a header/
// footer codec with the appropriate running checksum.
package wrap

import (
	"io"

	"github.com/corenko/flatekit/internal/bitio"
	"github.com/corenko/flatekit/internal/flatecore"
)

// RawReader is the degenerate wrapper: no header, no footer, no
// checksum, just the DEFLATE stream itself.
type RawReader struct {
	br  *bitio.Reader
	inf *flatecore.Inflate
}

// NewRawReader returns a Reader decoding a headerless DEFLATE stream.
func NewRawReader(r io.Reader) *RawReader {
	br := bitio.NewReader(r)
	return &RawReader{br: br, inf: flatecore.NewInflate(br)}
}

func (r *RawReader) Read(p []byte) (int, error) { return r.inf.Read(p) }

// Close for Raw is a no-op: there is no footer checksum to verify.
func (r *RawReader) Close() error { return nil }

// Reset rebinds the Reader to decode a new headerless DEFLATE stream
// from r.
func (r *RawReader) Reset(src io.Reader) {
	r.br.Reset(src)
	r.inf.Reset(r.br)
}

// RawWriter is the degenerate wrapper on the write side.
type RawWriter struct {
	*flatecore.Deflate
	bw *flatecore.BlockWriter
}

// NewRawWriter returns a Writer emitting a headerless DEFLATE stream at
// the given level through mode.
func NewRawWriter(w io.Writer, level int, mode flatecore.Mode) *RawWriter {
	bw := flatecore.NewBlockWriter(w, mode)
	return &RawWriter{Deflate: flatecore.NewDeflate(bw, level), bw: bw}
}

// Reset rebinds the Writer to emit a new headerless DEFLATE stream to w
// at level, reusing the existing BlockWriter/Deflate pair.
func (r *RawWriter) Reset(w io.Writer, level int) {
	r.bw.Reset(w)
	r.Deflate.Reset(r.bw, level)
}
