package huffman

import "errors"

// ErrCorruptInput is returned when a Huffman table lookup or a
// length/distance code falls outside its valid range.
var ErrCorruptInput = errors.New("huffman: corrupt input")

// ErrIncompleteTree is returned by Decoder.Build when the supplied code
// lengths don't form a complete prefix code (over- or under-subscribed),
// except for the zlib-compatible degenerate single-code exception.
var ErrIncompleteTree = errors.New("huffman: incomplete or over-subscribed code-length set")
