package wrap

import (
	"encoding/binary"
	"errors"
	"hash"
	"hash/adler32"
	"io"

	"github.com/corenko/flatekit/internal/bitio"
	"github.com/corenko/flatekit/internal/flatecore"
)

// zlibDeflateMethod is CM=8 (DEFLATE) with CINFO=7 (32K window), the
// only combination flatekit emits or accepts (RFC 1950 §2.2).
const zlibDeflateMethod = 0x78

// ErrZlibHeader is returned when a zlib stream's CMF/FLG byte pair is
// invalid: a bad check value, an unsupported compression method, or a
// preset dictionary (FDICT), which flatekit does not support.
var ErrZlibHeader = errors.New("wrap: invalid zlib header")

// ErrZlibChecksum is returned when the Adler-32 trailer doesn't match
// the decompressed data actually produced.
var ErrZlibChecksum = errors.New("wrap: zlib checksum mismatch")

// ZlibReader decodes a zlib stream: a 2-byte header, a raw DEFLATE
// stream, and a 4-byte big-endian Adler-32 trailer.
type ZlibReader struct {
	br  *bitio.Reader
	inf *flatecore.Inflate

	adler hash.Hash32
	err   error
}

// NewZlibReader returns a Reader for r, validating the zlib header
// immediately.
func NewZlibReader(r io.Reader) (*ZlibReader, error) {
	br := bitio.NewReader(r)
	cmf, err := br.ReadByteAligned()
	if err != nil {
		return nil, err
	}
	flg, err := br.ReadByteAligned()
	if err != nil {
		return nil, err
	}
	if cmf != zlibDeflateMethod {
		return nil, ErrZlibHeader
	}
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return nil, ErrZlibHeader
	}
	if flg&0x20 != 0 { // FDICT
		return nil, ErrZlibHeader
	}
	return &ZlibReader{br: br, inf: flatecore.NewInflate(br), adler: adler32.New()}, nil
}

// Read implements io.Reader.
func (z *ZlibReader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	n, err := z.inf.Read(p)
	if n > 0 {
		z.adler.Write(p[:n])
	}
	if err == io.EOF {
		if verr := z.verifyFooter(); verr != nil {
			z.err = verr
			return n, verr
		}
	}
	if err != nil {
		z.err = err
	}
	return n, err
}

func (z *ZlibReader) verifyFooter() error {
	z.br.AlignToByte()
	var footer [4]byte
	if err := z.br.ReadFull(footer[:]); err != nil {
		return err
	}
	if binary.BigEndian.Uint32(footer[:]) != z.adler.Sum32() {
		return ErrZlibChecksum
	}
	return nil
}

// Close is a no-op beyond what Read already verified.
func (z *ZlibReader) Close() error { return nil }

// Reset rebinds the Reader to decode a new zlib stream from r.
func (z *ZlibReader) Reset(r io.Reader) error {
	z.br.Reset(r)
	cmf, err := z.br.ReadByteAligned()
	if err != nil {
		return err
	}
	flg, err := z.br.ReadByteAligned()
	if err != nil {
		return err
	}
	if cmf != zlibDeflateMethod {
		return ErrZlibHeader
	}
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return ErrZlibHeader
	}
	if flg&0x20 != 0 {
		return ErrZlibHeader
	}
	z.adler = adler32.New()
	z.err = nil
	z.inf.Reset(z.br)
	return nil
}

// ZlibWriter wraps a flatecore.Deflate with a zlib header/trailer and a
// running Adler-32.
type ZlibWriter struct {
	w     io.Writer
	def   *flatecore.Deflate
	bw    *flatecore.BlockWriter
	adler hash.Hash32
}

// NewZlibWriter returns a Writer that has already emitted the 2-byte
// zlib header to w.
func NewZlibWriter(w io.Writer, level int, mode flatecore.Mode) (*ZlibWriter, error) {
	flg := zlibCompressionFlag(level)
	header := uint16(zlibDeflateMethod)<<8 | uint16(flg)
	header += uint16(31 - header%31)
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], header)
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, err
	}
	bw := flatecore.NewBlockWriter(w, mode)
	return &ZlibWriter{w: w, def: flatecore.NewDeflate(bw, level), bw: bw, adler: adler32.New()}, nil
}

// zlibCompressionFlag maps a level to the informational 2-bit FLEVEL
// field RFC 1950 defines (0=fastest .. 3=maximum); it does not affect
// decoding, only the hint an encoder leaves behind.
func zlibCompressionFlag(level int) byte {
	switch {
	case level <= 1:
		return 0
	case level <= 5:
		return 1 << 6
	case level == 6:
		return 2 << 6
	default:
		return 3 << 6
	}
}

// Write compresses p, accumulating the running Adler-32.
func (z *ZlibWriter) Write(p []byte) (int, error) {
	n, err := z.def.Write(p)
	if n > 0 {
		z.adler.Write(p[:n])
	}
	return n, err
}

// Close flushes the final DEFLATE block and appends the big-endian
// Adler-32 trailer.
func (z *ZlibWriter) Close() error {
	if err := z.def.Close(); err != nil {
		return err
	}
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], z.adler.Sum32())
	_, err := z.w.Write(trailer[:])
	return err
}

// Reset rebinds the Writer to emit a new zlib stream to w at level,
// reusing the existing BlockWriter/Deflate pair and the Mode it was
// constructed with.
func (z *ZlibWriter) Reset(w io.Writer, level int) error {
	flg := zlibCompressionFlag(level)
	header := uint16(zlibDeflateMethod)<<8 | uint16(flg)
	header += uint16(31 - header%31)
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], header)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	z.w = w
	z.bw.Reset(w)
	z.def.Reset(z.bw, level)
	z.adler = adler32.New()
	return nil
}
