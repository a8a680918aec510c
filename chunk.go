package png

var ihdrTag = [4]byte{'I', 'H', 'D', 'R'}
var plteTag = [4]byte{'P', 'L', 'T', 'E'}
var idatTag = [4]byte{'I', 'D', 'A', 'T'}
var iendTag = [4]byte{'I', 'E', 'N', 'D'}
var trnsTag = [4]byte{'t', 'R', 'N', 'S'}
var gamaTag = [4]byte{'g', 'A', 'M', 'A'}
var physTag = [4]byte{'p', 'H', 'Y', 's'}

// decodeChunks drives the chunk loop that Decode hands off to once the
// 8-byte signature has been consumed: read length, type, payload, CRC;
// dispatch known types; skip unknown ancillary ones; enforce the
// ordering rules the PNG format requires. An unknown critical chunk
// (uppercase first letter) is not skipped: it fails the decode with an
// UnsupportedError.
func (d *decoder) decodeChunks(ds *datastream) error {
	for {
		if d.seenIEND {
			if !ds.eof() {
				return FormatError("data after IEND")
			}
			break
		}
		if ds.eof() {
			return FormatError("missing IEND")
		}

		length, err := ds.readU32()
		if err != nil {
			return err
		}
		ds.resetCRC()
		name, err := ds.readChunkName()
		if err != nil {
			return err
		}

		// strict '>' bound: the payload plus trailing CRC must fit
		// within what remains; a chunk that ends exactly at the end
		// of the input is accepted, only one that overruns it is not.
		if ds.cursor+int(length)+4 > len(ds.buf) {
			return FormatError("chunk runs past end of input")
		}

		if name != ihdrTag && !d.seenIHDR() {
			return FormatError("IHDR must be the first chunk")
		}

		switch name {
		case ihdrTag:
			if d.seenIHDR() {
				return FormatError("duplicate IHDR")
			}
			if err := d.decodeIHDR(ds, length); err != nil {
				return err
			}
		case plteTag:
			if d.seenPLTE {
				return FormatError("duplicate PLTE")
			}
			if d.seenIDAT {
				return FormatError("PLTE after IDAT")
			}
			if d.colorType == 0 || d.colorType == 4 {
				return FormatError("PLTE forbidden for this color type")
			}
			if err := d.decodePLTE(ds, length); err != nil {
				return err
			}
			d.seenPLTE = true
		case trnsTag:
			if d.seenTRNS {
				return FormatError("duplicate tRNS")
			}
			if d.seenIDAT {
				return FormatError("tRNS after IDAT")
			}
			if err := d.decodeTRNS(ds, length); err != nil {
				return err
			}
			d.seenTRNS = true
		case gamaTag:
			if d.seenGAMA {
				return FormatError("duplicate gAMA")
			}
			if d.seenIDAT {
				return FormatError("gAMA after IDAT")
			}
			if err := d.decodeGAMA(ds, length); err != nil {
				return err
			}
			d.seenGAMA = true
		case physTag:
			if d.seenPHYS {
				return FormatError("duplicate pHYs")
			}
			if d.seenIDAT {
				return FormatError("pHYs after IDAT")
			}
			if err := d.decodePHYS(ds, length); err != nil {
				return err
			}
			d.seenPHYS = true
		case idatTag:
			if d.colorType == 3 && !d.seenPLTE {
				return FormatError("indexed color requires PLTE before IDAT")
			}
			if !d.seenIDAT {
				if err := d.decodeIDAT(ds, length); err != nil {
					return err
				}
			} else {
				if err := d.continueIDAT(ds, length); err != nil {
					return err
				}
			}
			d.seenIDAT = true
			continue
		case iendTag:
			if length != 0 {
				return FormatError("IEND must be empty")
			}
			if !d.seenIDAT {
				return FormatError("missing IDAT")
			}
			if !d.recon.done() {
				return FormatError("image data ends before IHDR dimensions are satisfied")
			}
			if err := ds.consumeCRC(); err != nil {
				return err
			}
			d.seenIEND = true
			continue
		default:
			if name[0]&0x20 == 0 {
				return UnsupportedError("unrecognized critical chunk: " + string(name[:]))
			}
			if err := ds.skipBounded(int(length)); err != nil {
				return err
			}
			if err := ds.consumeCRC(); err != nil {
				return err
			}
			continue
		}

		if err := ds.consumeCRC(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) seenIHDR() bool { return d.img.Width != 0 || d.img.Height != 0 }

// decodeIHDR parses the 13-byte image header and validates the
// (color type, bit depth) combination, recording the output image's
// dimensions (channel count and sample depth are finalized, and the
// pixel buffer allocated, once tRNS, if any, has been seen, at the
// first IDAT chunk).
func (d *decoder) decodeIHDR(ds *datastream, length uint32) error {
	if length != 13 {
		return FormatError("IHDR must be 13 bytes")
	}
	width, err := ds.readU32()
	if err != nil {
		return err
	}
	height, err := ds.readU32()
	if err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return FormatError("zero-sized image")
	}
	depth, err := ds.readU8()
	if err != nil {
		return err
	}
	colorType, err := ds.readU8()
	if err != nil {
		return err
	}
	compression, err := ds.readU8()
	if err != nil {
		return err
	}
	filter, err := ds.readU8()
	if err != nil {
		return err
	}
	interlace, err := ds.readU8()
	if err != nil {
		return err
	}

	if compression != 0 {
		return UnsupportedError("compression method")
	}
	if filter != 0 {
		return UnsupportedError("filter method")
	}
	if interlace > 1 {
		return UnsupportedError("interlace method")
	}

	if !validColorDepth(colorType, depth) {
		return FormatError("invalid color type/bit depth combination")
	}

	d.img.Width = width
	d.img.Height = height
	d.onWireDepth = depth
	d.colorType = colorType
	d.interlaced = interlace == 1
	return nil
}

// validColorDepth enforces PNG's fixed table of legal (color type, bit
// depth) pairs.
func validColorDepth(colorType, depth uint8) bool {
	switch colorType {
	case 0:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case 2, 4, 6:
		return depth == 8 || depth == 16
	case 3:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	default:
		return false
	}
}

func (d *decoder) decodePLTE(ds *datastream, length uint32) error {
	if length%3 != 0 {
		return FormatError("PLTE length not a multiple of 3")
	}
	n := int(length / 3)
	if n == 0 || n > 256 {
		return FormatError("PLTE entry count out of range")
	}
	if n > 1<<d.onWireDepth {
		return FormatError("PLTE entry count exceeds 2^depth")
	}
	for i := 0; i < n; i++ {
		r, err := ds.readU8()
		if err != nil {
			return err
		}
		g, err := ds.readU8()
		if err != nil {
			return err
		}
		b, err := ds.readU8()
		if err != nil {
			return err
		}
		d.pal.r[i], d.pal.g[i], d.pal.b[i] = r, g, b
		d.pal.a[i] = 0xFF
	}
	d.pal.length = n
	d.hasPalette = true
	return nil
}

func (d *decoder) decodeTRNS(ds *datastream, length uint32) error {
	switch d.colorType {
	case 3:
		if !d.hasPalette {
			return FormatError("tRNS before PLTE for indexed color")
		}
		if int(length) > d.pal.length {
			return FormatError("tRNS longer than PLTE")
		}
		for i := 0; i < int(length); i++ {
			a, err := ds.readU8()
			if err != nil {
				return err
			}
			d.pal.a[i] = a
		}
	case 0:
		if length != 2 {
			return FormatError("tRNS for grayscale must be 2 bytes")
		}
		v, err := ds.readU16()
		if err != nil {
			return err
		}
		d.trnsAlpha[0] = v
		d.hasTRNS = true
	case 2:
		if length != 6 {
			return FormatError("tRNS for RGB must be 6 bytes")
		}
		for i := 0; i < 3; i++ {
			v, err := ds.readU16()
			if err != nil {
				return err
			}
			d.trnsAlpha[i] = v
		}
		d.hasTRNS = true
	default:
		return FormatError("tRNS forbidden for this color type")
	}
	return nil
}

// decodeGAMA reads the image's gamma value and records it; nothing in
// this package ever applies gamma correction to pixel data.
func (d *decoder) decodeGAMA(ds *datastream, length uint32) error {
	if length != 4 {
		return FormatError("gAMA must be 4 bytes")
	}
	v, err := ds.readU32Unchecked()
	if err != nil {
		return err
	}
	d.gamma = float32(v) / 100000.0
	d.hasGamma = true
	return nil
}

// decodePHYS validates and consumes the physical pixel dimensions
// chunk. The values are not retained on decoder state: nothing in this
// package's output format (a flat pixel buffer) has a use for them.
func (d *decoder) decodePHYS(ds *datastream, length uint32) error {
	if length != 9 {
		return FormatError("pHYs must be 9 bytes")
	}
	if _, err := ds.readU32Unchecked(); err != nil {
		return err
	}
	if _, err := ds.readU32Unchecked(); err != nil {
		return err
	}
	unit, err := ds.readU8()
	if err != nil {
		return err
	}
	if unit > 1 {
		return FormatError("invalid pHYs unit specifier")
	}
	return nil
}

// finalize computes the output channel count and sample depth now that
// tRNS status (if any) is settled, and allocates the pixel buffer.
func (d *decoder) finalize() {
	switch d.colorType {
	case 0:
		d.img.Channels = 1
		if d.hasTRNS {
			d.img.Channels = 2
		}
		d.img.Depth = d.onWireDepth
		if d.img.Depth < 8 {
			d.img.Depth = 8
		}
	case 2:
		d.img.Channels = 3
		if d.hasTRNS {
			d.img.Channels = 4
		}
		d.img.Depth = d.onWireDepth
	case 3:
		d.img.Channels = 4
		d.img.Depth = 8
	case 4:
		d.img.Channels = 2
		d.img.Depth = d.onWireDepth
	case 6:
		d.img.Channels = 4
		d.img.Depth = d.onWireDepth
	}

	bytesPerSample := uint32(1)
	if d.img.Depth == 16 {
		bytesPerSample = 2
	}
	d.img.Pix = make([]byte, uint64(d.img.Width)*uint64(d.img.Height)*uint64(d.img.Channels)*uint64(bytesPerSample))

	if d.colorType == 3 {
		for i := d.pal.length; i < 256; i++ {
			d.pal.a[i] = 0xFF
		}
	}
}

// decodeIDAT handles the first IDAT chunk: it finalizes the output
// buffer, then drives the inflater through the entire IDAT run (which
// may span multiple chunks, spliced in transparently by bitStream).
func (d *decoder) decodeIDAT(ds *datastream, length uint32) error {
	d.finalize()
	d.recon = newReconstructor(d)

	bs := newBitStream(length)
	inf := newInflater(ds, bs, d.recon)
	return inf.run()
}

// continueIDAT is reached only if an IDAT chunk follows the one that
// satisfied bitStream's internal splicing already — i.e. the inflater
// finished (hit BFINAL) while chunk bytes from a later IDAT remained
// unread. That is malformed: every byte of every IDAT chunk must belong
// to the single DEFLATE stream.
func (d *decoder) continueIDAT(ds *datastream, length uint32) error {
	return FormatError("trailing data after end of DEFLATE stream")
}
