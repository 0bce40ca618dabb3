// Package bitio implements the bit-accurate stream reader and writer that
// the DEFLATE decoder and encoder are built on top of. DEFLATE packs bits
// least-significant-bit first within a byte, but canonical Huffman codes
// are conventionally written most-significant-bit first within their code
// length, so a reversed peek is provided for reading such a field
// directly; the DEFLATE decoder does not call it, because its Huffman
// tables (the fixed distance table included) bake the reversal in at
// build time instead.
package bitio

import (
	"bufio"
	"errors"
	"io"
	"math/bits"
)

// ErrEndOfStream is returned when fewer bits remain in the underlying
// reader than were requested.
var ErrEndOfStream = errors.New("bitio: unexpected end of stream")

// ErrUnfinishedBits is returned by Writer.WriteBytes when called off a
// byte boundary.
var ErrUnfinishedBits = errors.New("bitio: write of raw bytes requires byte alignment")

// byteReader is the minimal reader contract a Reader needs directly; if
// the supplied io.Reader doesn't already provide ReadByte, NewReader
// wraps it in a bufio.Reader.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// Reader adapts a byte stream into a stream of bits with a 64-bit refill
// buffer. The contract (§4.1): buffered peek/consume calls never refill;
// callers must call Fill with the maximum number of bits they intend to
// consume before a run of Peek/Consume calls.
type Reader struct {
	rd     byteReader
	bits   uint64 // low nbits bits are the next bits to consume, LSB first
	nbits  uint
	offset int64 // bytes read from the underlying source
}

// NewReader returns a Reader over r. If r does not already implement
// io.ByteReader, it is wrapped in a bufio.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{rd: makeByteReader(r)}
}

func makeByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// Reset discards any buffered bits and rebinds r to read from src,
// letting a caller reuse the Reader (and its refill buffer) across
// streams instead of allocating a new one per request.
func (r *Reader) Reset(src io.Reader) {
	r.rd = makeByteReader(src)
	r.bits = 0
	r.nbits = 0
	r.offset = 0
}

// Offset reports the number of bytes consumed from the underlying reader.
func (r *Reader) Offset() int64 { return r.offset }

// Fill ensures at least n bits (n <= 57) are available in the buffer,
// reading whole bytes from the underlying source as needed. It returns
// ErrEndOfStream if the source is exhausted before n bits are available.
func (r *Reader) Fill(n uint) error {
	for r.nbits < n {
		c, err := r.rd.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrEndOfStream
			}
			return err
		}
		r.bits |= uint64(c) << r.nbits
		r.nbits += 8
		r.offset++
	}
	return nil
}

// Peek returns the next n bits (n <= 32) without consuming them. The
// caller must have already called Fill(n) or greater.
func (r *Reader) Peek(n uint) uint32 {
	return uint32(r.bits & (1<<n - 1))
}

// PeekReverse returns the next n bits (n <= 16), bit-reversed within the
// n-bit field. Canonical Huffman codes (outside the table-driven decoder,
// e.g. the raw 5-bit distance code in a fixed block) are transmitted
// MSB-first within their length even though the stream itself is
// LSB-first; this performs that boundary conversion.
func (r *Reader) PeekReverse(n uint) uint32 {
	v := uint16(r.Peek(n))
	return uint32(bits.Reverse16(v) >> (16 - n))
}

// Consume discards n bits from the buffer. Precondition: n <= available
// bits (i.e. Fill(n) must have succeeded).
func (r *Reader) Consume(n uint) {
	r.bits >>= n
	r.nbits -= n
}

// ReadBits fills, peeks, and consumes n bits (n <= 15) in one call.
func (r *Reader) ReadBits(n uint) (uint16, error) {
	if err := r.Fill(n); err != nil {
		return 0, err
	}
	v := uint16(r.Peek(n))
	r.Consume(n)
	return v, nil
}

// ReadReverseBits fills, peeks (reversed), and consumes n bits (n <= 16).
func (r *Reader) ReadReverseBits(n uint) (uint32, error) {
	if err := r.Fill(n); err != nil {
		return 0, err
	}
	v := r.PeekReverse(n)
	r.Consume(n)
	return v, nil
}

// AlignToByte discards the 0-7 low bits needed to reach the next byte
// boundary of the underlying stream.
func (r *Reader) AlignToByte() {
	n := r.nbits % 8
	r.Consume(n)
}

// ReadUint16LE reads a 16-bit little-endian value directly from the
// underlying byte stream. Precondition: byte-aligned (callers call
// AlignToByte first, per the stored-block and gzip/zlib header formats).
func (r *Reader) ReadUint16LE() (uint16, error) {
	lo, err := r.ReadBits(8)
	if err != nil {
		return 0, err
	}
	hi, err := r.ReadBits(8)
	if err != nil {
		return 0, err
	}
	return lo | hi<<8, nil
}

// ReadByteAligned reads a single raw byte; precondition: byte-aligned.
func (r *Reader) ReadByteAligned() (byte, error) {
	v, err := r.ReadBits(8)
	return byte(v), err
}

// ReadFull reads len(p) raw bytes directly from the underlying stream,
// bypassing the bit buffer except to drain any buffered bytes first.
// Precondition: byte-aligned.
func (r *Reader) ReadFull(p []byte) error {
	i := 0
	for r.nbits > 0 && i < len(p) {
		p[i] = byte(r.bits)
		r.bits >>= 8
		r.nbits -= 8
		i++
	}
	if i == len(p) {
		return nil
	}
	n, err := io.ReadFull(r.rd, p[i:])
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrEndOfStream
		}
		return err
	}
	return nil
}

// SkipBytes discards n raw bytes; precondition: byte-aligned.
func (r *Reader) SkipBytes(n int) error {
	var buf [64]byte
	for n > 0 {
		k := n
		if k > len(buf) {
			k = len(buf)
		}
		if err := r.ReadFull(buf[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

// SkipZString discards a NUL-terminated string, as used by gzip header
// FNAME/FCOMMENT fields; precondition: byte-aligned.
func (r *Reader) SkipZString() error {
	for {
		b, err := r.ReadByteAligned()
		if err != nil {
			return err
		}
		if b == 0 {
			return nil
		}
	}
}

// ReadString reads a NUL-terminated string and returns its bytes
// unchanged; no Latin-1 to UTF-8 conversion is done. Precondition:
// byte-aligned.
func (r *Reader) ReadString() (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByteAligned()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}
