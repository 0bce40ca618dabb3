package wrap

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"time"

	"github.com/corenko/flatekit/internal/bitio"
	"github.com/corenko/flatekit/internal/flatecore"
)

// Gzip member header constants (RFC 1952 §2.3).
const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8

	flagText    = 1 << 0
	flagHdrCRC  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// ErrHeader is returned when a gzip member's magic bytes or compression
// method don't match RFC 1952.
var ErrHeader = errors.New("wrap: invalid gzip header")

// ErrChecksum is returned when a footer's CRC-32 or ISIZE field doesn't
// match the decompressed data actually produced.
var ErrChecksum = errors.New("wrap: gzip checksum mismatch")

// Header carries the informational fields a gzip member may declare;
// all are optional, and a zero ModTime is written as 0 (meaning "not
// set", per RFC 1952 §2.3.1).
type Header struct {
	Name    string
	Comment string
	ModTime time.Time
	OS      byte
}

// GzipReader decodes a gzip stream: one member, or (per the supplemental
// multi-member behavior real gzip implementations support) several
// concatenated members read back to back as one logical stream.
type GzipReader struct {
	r   io.Reader
	br  *bitio.Reader
	inf *flatecore.Inflate

	Header Header

	crc     uint32
	size    uint32
	started bool
	err     error
}

// NewGzipReader returns a Reader for r, which must begin with a valid
// gzip member header; the header's metadata is parsed immediately and
// available via the Header field.
func NewGzipReader(r io.Reader) (*GzipReader, error) {
	g := &GzipReader{r: r, br: bitio.NewReader(r)}
	if err := g.readHeader(); err != nil {
		return nil, err
	}
	g.inf = flatecore.NewInflate(g.br)
	g.started = true
	return g, nil
}

func (g *GzipReader) readHeader() error {
	id1, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	id2, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	method, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	if id1 != gzipID1 || id2 != gzipID2 || method != gzipDeflate {
		return ErrHeader
	}
	flags, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	var mtime [4]byte
	if err := g.br.ReadFull(mtime[:]); err != nil {
		return err
	}
	if _, err := g.br.ReadByteAligned(); err != nil { // XFL
		return err
	}
	osByte, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	g.Header.OS = osByte

	sec := binary.LittleEndian.Uint32(mtime[:])
	if sec != 0 {
		g.Header.ModTime = time.Unix(int64(sec), 0)
	}

	if flags&flagExtra != 0 {
		xlen, err := g.br.ReadUint16LE()
		if err != nil {
			return err
		}
		if err := g.br.SkipBytes(int(xlen)); err != nil {
			return err
		}
	}
	if flags&flagName != 0 {
		name, err := g.br.ReadString()
		if err != nil {
			return err
		}
		g.Header.Name = name
	}
	if flags&flagComment != 0 {
		comment, err := g.br.ReadString()
		if err != nil {
			return err
		}
		g.Header.Comment = comment
	}
	if flags&flagHdrCRC != 0 {
		if _, err := g.br.ReadUint16LE(); err != nil {
			return err
		}
	}
	return nil
}

// Read implements io.Reader, decompressing the current member and
// transparently advancing into the next one if the underlying stream
// has additional concatenated members once the current one's footer is
// verified — the behavior real-world gzip tooling (and archives like
// .tar.gz split across members) depends on.
func (g *GzipReader) Read(p []byte) (int, error) {
	if g.err != nil {
		return 0, g.err
	}
	n, err := g.inf.Read(p)
	if n > 0 {
		g.crc = crc32.Update(g.crc, crc32.IEEETable, p[:n])
		g.size += uint32(n)
	}
	if err == io.EOF {
		if verr := g.verifyFooter(); verr != nil {
			g.err = verr
			return n, verr
		}
		if nerr := g.startNextMember(); nerr != nil {
			if errors.Is(nerr, io.EOF) {
				g.err = io.EOF
				return n, io.EOF
			}
			g.err = nerr
			return n, nerr
		}
		if n > 0 {
			return n, nil
		}
		return g.Read(p)
	}
	if err != nil {
		g.err = err
	}
	return n, err
}

func (g *GzipReader) verifyFooter() error {
	g.br.AlignToByte()
	var footer [8]byte
	if err := g.br.ReadFull(footer[:]); err != nil {
		return err
	}
	crc := binary.LittleEndian.Uint32(footer[0:4])
	size := binary.LittleEndian.Uint32(footer[4:8])
	if crc != g.crc || size != g.size {
		return ErrChecksum
	}
	return nil
}

func (g *GzipReader) startNextMember() error {
	id1, err := g.br.ReadByteAligned()
	if err != nil {
		if errors.Is(err, bitio.ErrEndOfStream) {
			return io.EOF
		}
		return err
	}
	// A byte was available, so this is a new member; the probe consumed
	// its id1 byte, which is checked here, and readHeaderWithFirstByte
	// carries on from id2.
	if id1 != gzipID1 {
		return ErrHeader
	}
	return g.readHeaderWithFirstByte()
}

// readHeaderWithFirstByte re-runs readHeader's logic after the id1 byte
// of the next member has already been consumed by startNextMember's
// probe read, to detect end-of-stream without an extra peek abstraction.
func (g *GzipReader) readHeaderWithFirstByte() error {
	id2, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	method, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	if id2 != gzipID2 || method != gzipDeflate {
		return ErrHeader
	}
	flags, err := g.br.ReadByteAligned()
	if err != nil {
		return err
	}
	var mtime [4]byte
	if err := g.br.ReadFull(mtime[:]); err != nil {
		return err
	}
	if _, err := g.br.ReadByteAligned(); err != nil {
		return err
	}
	if _, err := g.br.ReadByteAligned(); err != nil {
		return err
	}
	if flags&flagExtra != 0 {
		xlen, err := g.br.ReadUint16LE()
		if err != nil {
			return err
		}
		if err := g.br.SkipBytes(int(xlen)); err != nil {
			return err
		}
	}
	if flags&flagName != 0 {
		if err := g.br.SkipZString(); err != nil {
			return err
		}
	}
	if flags&flagComment != 0 {
		if err := g.br.SkipZString(); err != nil {
			return err
		}
	}
	if flags&flagHdrCRC != 0 {
		if _, err := g.br.ReadUint16LE(); err != nil {
			return err
		}
	}
	g.crc = 0
	g.size = 0
	g.inf.Reset(g.br)
	return nil
}

// Close is a no-op beyond what Read already verified; provided for
// symmetry with GzipWriter.Close and the Decompressor façade.
func (g *GzipReader) Close() error { return nil }

// Reset rebinds the Reader to decode a new gzip stream from r, reusing
// the existing Inflate state (and its history window) instead of
// allocating a fresh decoder — useful for a server decoding many
// short-lived request bodies back to back.
func (g *GzipReader) Reset(r io.Reader) error {
	g.r = r
	g.br.Reset(r)
	g.Header = Header{}
	g.crc = 0
	g.size = 0
	g.err = nil
	if err := g.readHeader(); err != nil {
		return err
	}
	g.inf.Reset(g.br)
	g.started = true
	return nil
}

// GzipWriter wraps a flatecore.Deflate with a gzip header/footer and a
// running CRC-32, writing the member header immediately on construction.
type GzipWriter struct {
	w    io.Writer
	def  *flatecore.Deflate
	bw   *flatecore.BlockWriter
	crc  uint32
	size uint32
}

// NewGzipWriter returns a Writer that has already emitted hdr's header
// bytes to w.
func NewGzipWriter(w io.Writer, level int, mode flatecore.Mode, hdr Header) (*GzipWriter, error) {
	if err := writeGzipHeader(w, hdr); err != nil {
		return nil, err
	}
	bw := flatecore.NewBlockWriter(w, mode)
	return &GzipWriter{w: w, def: flatecore.NewDeflate(bw, level), bw: bw}, nil
}

func writeGzipHeader(w io.Writer, hdr Header) error {
	buf := make([]byte, 10)
	buf[0] = gzipID1
	buf[1] = gzipID2
	buf[2] = gzipDeflate
	var flags byte
	if hdr.Name != "" {
		flags |= flagName
	}
	if hdr.Comment != "" {
		flags |= flagComment
	}
	buf[3] = flags
	if !hdr.ModTime.IsZero() {
		binary.LittleEndian.PutUint32(buf[4:8], uint32(hdr.ModTime.Unix()))
	}
	buf[8] = 0 // XFL
	buf[9] = hdr.OS
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if hdr.Name != "" {
		if err := writeZString(w, hdr.Name); err != nil {
			return err
		}
	}
	if hdr.Comment != "" {
		if err := writeZString(w, hdr.Comment); err != nil {
			return err
		}
	}
	return nil
}

func writeZString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

// Write compresses p, accumulating the running CRC-32 and total size
// needed for the footer.
func (g *GzipWriter) Write(p []byte) (int, error) {
	n, err := g.def.Write(p)
	if n > 0 {
		g.crc = crc32.Update(g.crc, crc32.IEEETable, p[:n])
		g.size += uint32(n)
	}
	return n, err
}

// Close flushes the final DEFLATE block and appends the gzip footer
// (CRC-32 then ISIZE, both little-endian).
func (g *GzipWriter) Close() error {
	if err := g.def.Close(); err != nil {
		return err
	}
	var footer [8]byte
	binary.LittleEndian.PutUint32(footer[0:4], g.crc)
	binary.LittleEndian.PutUint32(footer[4:8], g.size)
	_, err := g.w.Write(footer[:])
	return err
}

// Reset rebinds the Writer to emit a new gzip member to w, reusing the
// Deflate/BlockWriter pair (and their match-finder and window buffers)
// instead of reallocating them.
func (g *GzipWriter) Reset(w io.Writer, level int, hdr Header) error {
	if err := writeGzipHeader(w, hdr); err != nil {
		return err
	}
	g.w = w
	g.bw.Reset(w)
	g.def.Reset(g.bw, level)
	g.crc = 0
	g.size = 0
	return nil
}
