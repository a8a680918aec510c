// Package png decodes a PNG-encoded byte slice into a flat, uncompressed,
// channel-interleaved pixel buffer.
//
// The decoder implements its own chunk parser, DEFLATE inflater, and
// scanline reconstructor rather than delegating to compress/zlib or
// compress/flate: the three are byte-coupled (the inflater yields one
// decoded byte at a time, straight into the reconstructor, without ever
// materializing the full decompressed stream), which the standard
// library's io.Reader-shaped API does not let a caller express.
//
// Color management, gamma application, progressive display, and
// animation are out of scope; gAMA is parsed and recorded but never
// applied to pixel data.
package png

import (
	"github.com/pkg/errors"
)

var pngSignature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Image is the decoded result: a tightly packed, row-major,
// top-to-bottom, left-to-right, channel-interleaved pixel buffer.
//
// len(Pix) == Width * Height * Channels * max(Depth/8, 1). Multi-byte
// samples (Depth == 16) are stored little-endian regardless of PNG's
// on-wire big-endian representation.
type Image struct {
	Width, Height uint32
	Channels      uint32
	Depth         uint8
	Pix           []byte
}

// palette holds up to 256 RGBA entries for color type 3 (indexed).
// Alpha defaults to fully opaque; tRNS overrides a prefix of it.
type palette struct {
	r, g, b, a [256]uint8
	length     int
}

// decoder aggregates parsed header fields and in-progress state across
// the lifetime of one Decode call.
type decoder struct {
	img Image

	colorType   uint8
	interlaced  bool
	hasPalette  bool
	pal         palette
	hasTRNS     bool
	trnsAlpha   [3]uint16 // only meaningful for color types 0 and 2
	gamma       float32
	hasGamma    bool
	seenPLTE    bool
	seenTRNS    bool
	seenGAMA    bool
	seenPHYS    bool
	seenIDAT    bool
	seenIEND    bool
	onWireDepth uint8

	recon *reconstructor
}

// Decode parses buf as a PNG image and returns the decoded pixel buffer.
// It is the package's sole entry point and the single pure function the
// rest of the package exists to support: no I/O, no global state, no
// suspension points.
func Decode(buf []byte) (*Image, error) {
	if len(buf) < len(pngSignature) || [8]byte(buf[:8]) != pngSignature {
		return nil, UnknownFormatError("missing PNG signature")
	}

	d := &decoder{}
	ds := newDatastream(buf)
	if err := ds.skip(len(pngSignature)); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := d.decodeChunks(ds); err != nil {
		return nil, errors.WithStack(err)
	}

	return &d.img, nil
}
