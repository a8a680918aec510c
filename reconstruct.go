package png

// adam7StartX, adam7StartY, adam7StepX, adam7StepY describe the 7 Adam7
// interlacing passes. Index 0 is the degenerate "single pass, no
// interlacing" case, so non-interlaced images can share the same pass
// loop as interlaced ones.
var adam7StartX = [8]uint32{0, 0, 4, 0, 2, 0, 1, 0}
var adam7StartY = [8]uint32{0, 0, 0, 4, 0, 2, 0, 1}
var adam7StepX = [8]uint32{1, 8, 8, 4, 4, 2, 2, 1}
var adam7StepY = [8]uint32{1, 8, 8, 8, 4, 4, 2, 2}

// paethPredictor is the PNG Paeth filter predictor. It always returns
// one of a, b, or c.
func paethPredictor(a, b, c uint8) uint8 {
	pa := absInt(int(b) - int(c))
	pb := absInt(int(a) - int(c))
	pc := absInt(int(a) + int(b) - 2*int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// defilterRow reverses the PNG filter applied to cur, using prev (the
// already-defiltered previous scanline, or all zeros for the first row
// of a pass) and bpp (bytes per complete pixel, minimum 1).
func defilterRow(filterType uint8, cur, prev []byte, bpp int) error {
	switch filterType {
	case 0: // None
	case 1: // Sub
		for i := range cur {
			var a uint8
			if i >= bpp {
				a = cur[i-bpp]
			}
			cur[i] += a
		}
	case 2: // Up
		for i := range cur {
			cur[i] += prev[i]
		}
	case 3: // Average
		for i := range cur {
			var a, b uint16
			if i >= bpp {
				a = uint16(cur[i-bpp])
			}
			b = uint16(prev[i])
			cur[i] += uint8((a + b) / 2)
		}
	case 4: // Paeth
		for i := range cur {
			var a, c uint8
			if i >= bpp {
				a = cur[i-bpp]
				c = prev[i-bpp]
			}
			cur[i] += paethPredictor(a, prev[i], c)
		}
	default:
		return FormatError("invalid scanline filter type")
	}
	return nil
}

// msbBitReader extracts fixed-width samples from a packed scanline,
// most-significant-bit first, per PNG's sub-byte sample packing (the
// opposite bit order from DEFLATE's bitStream).
type msbBitReader struct {
	row    []byte
	bitPos uint32
}

func (r *msbBitReader) read(depth uint8) uint16 {
	var v uint16
	for i := uint8(0); i < depth; i++ {
		byteIdx := r.bitPos / 8
		bitIdx := 7 - r.bitPos%8
		bit := (r.row[byteIdx] >> bitIdx) & 1
		v = v<<1 | uint16(bit)
		r.bitPos++
	}
	return v
}

// scaleSample expands a depth-bit sample to the full 8-bit range using
// exact bit replication for the PNG sub-byte depths.
func scaleSample(raw uint16, depth uint8) uint8 {
	switch depth {
	case 1:
		return uint8(raw) * 255
	case 2:
		return uint8(raw) * 85
	case 4:
		return uint8(raw) * 17
	default:
		return uint8(raw)
	}
}

// passGeometry computes the pixel dimensions of Adam7 pass p (0 for the
// non-interlaced case) against a full image of the given size.
func passGeometry(p int, width, height uint32) (w, h uint32) {
	startX, startY := adam7StartX[p], adam7StartY[p]
	stepX, stepY := adam7StepX[p], adam7StepY[p]
	if width > startX {
		w = (width - startX + stepX - 1) / stepX
	}
	if height > startY {
		h = (height - startY + stepY - 1) / stepY
	}
	return w, h
}

// reconstructor is the byteSink that turns the inflater's raw decoded
// bytes into the decoder's final pixel buffer: it tracks scanline
// framing (filter-type byte, then packed row), defilters each row as it
// completes, expands samples to the output representation, scatters
// pixels into their final position (identity placement when
// non-interlaced, Adam7 placement otherwise), and advances through
// passes.
type reconstructor struct {
	d *decoder

	onWireChannels uint32
	bpp            int // bytes per complete pixel, for filter purposes

	passes    []int // pass indices to process, in order
	passIdx   int    // index into passes of the pass currently in progress
	passW     uint32
	passH     uint32
	rowBytes  int
	rowInPass uint32

	prev    []byte
	cur     []byte
	cursor  int // 0 means "awaiting filter-type byte"
	filterB uint8
}

func newReconstructor(d *decoder) *reconstructor {
	r := &reconstructor{d: d}

	switch d.colorType {
	case 0:
		r.onWireChannels = 1
	case 2:
		r.onWireChannels = 3
	case 3:
		r.onWireChannels = 1
	case 4:
		r.onWireChannels = 2
	case 6:
		r.onWireChannels = 4
	}

	bitsPerPixel := r.onWireChannels * uint32(d.onWireDepth)
	r.bpp = int((bitsPerPixel + 7) / 8)
	if r.bpp < 1 {
		r.bpp = 1
	}

	if d.interlaced {
		r.passes = []int{1, 2, 3, 4, 5, 6, 7}
	} else {
		r.passes = []int{0}
	}
	r.passIdx = -1
	r.advancePass()
	return r
}

// advancePass moves to the next non-empty pass, allocating fresh
// scanline buffers for it. It leaves r.passW == 0 once every pass has
// been exhausted.
func (r *reconstructor) advancePass() {
	for {
		r.passIdx++
		if r.passIdx >= len(r.passes) {
			r.passW, r.passH = 0, 0
			return
		}
		w, h := passGeometry(r.passes[r.passIdx], r.d.img.Width, r.d.img.Height)
		if w == 0 || h == 0 {
			continue
		}
		r.passW, r.passH = w, h
		r.rowInPass = 0
		bitsPerPixel := r.onWireChannels * uint32(r.d.onWireDepth)
		r.rowBytes = int((uint64(w)*uint64(bitsPerPixel) + 7) / 8)
		r.prev = make([]byte, r.rowBytes)
		r.cur = make([]byte, r.rowBytes)
		r.cursor = 0
		return
	}
}

// done reports whether every pass has produced all of its scanlines.
func (r *reconstructor) done() bool {
	return r.passW == 0
}

// consumeByte implements byteSink: it is called once per DEFLATE output
// byte, in stream order.
func (r *reconstructor) consumeByte(b byte) error {
	if r.done() {
		return FormatError("more image data than IHDR dimensions allow")
	}
	if r.cursor == 0 {
		if b > 4 {
			return FormatError("invalid scanline filter type")
		}
		r.filterB = b
		r.cursor = 1
		return nil
	}
	r.cur[r.cursor-1] = b
	r.cursor++
	if r.cursor-1 < r.rowBytes {
		return nil
	}

	if err := defilterRow(r.filterB, r.cur, r.prev, r.bpp); err != nil {
		return err
	}
	r.expandRow()

	r.prev, r.cur = r.cur, r.prev
	r.cursor = 0
	r.rowInPass++
	if r.rowInPass == r.passH {
		r.advancePass()
	}
	return nil
}

// expandRow scatters the samples of the just-defiltered scanline in
// r.cur into the decoder's output pixel buffer at their final image
// coordinates. It runs before consumeByte swaps cur and prev.
func (r *reconstructor) expandRow() {
	d := r.d
	pass := r.passes[r.passIdx]
	startX, stepX := adam7StartX[pass], adam7StepX[pass]
	y := adam7StartY[pass] + r.rowInPass*adam7StepY[pass]

	br := &msbBitReader{row: r.cur}
	outChannels := d.img.Channels
	outBytesPerSample := uint32(1)
	if d.img.Depth == 16 {
		outBytesPerSample = 2
	}
	stride := d.img.Width * outChannels * outBytesPerSample

	for col := uint32(0); col < r.passW; col++ {
		x := startX + col*stepX
		pixOff := y*stride + x*outChannels*outBytesPerSample

		switch d.colorType {
		case 3:
			i := int(br.read(d.onWireDepth))
			d.img.Pix[pixOff+0] = d.pal.r[i]
			d.img.Pix[pixOff+1] = d.pal.g[i]
			d.img.Pix[pixOff+2] = d.pal.b[i]
			d.img.Pix[pixOff+3] = d.pal.a[i]

		case 0:
			raw := br.read(d.onWireDepth)
			writeSample(d.img.Pix[pixOff:], raw, d.onWireDepth)
			if d.hasTRNS {
				writeAlpha(d.img.Pix[pixOff+outBytesPerSample:], raw == d.trnsAlpha[0], outBytesPerSample)
			}

		case 2:
			var raw [3]uint16
			for c := 0; c < 3; c++ {
				raw[c] = br.read(d.onWireDepth)
				writeSample(d.img.Pix[pixOff+uint32(c)*outBytesPerSample:], raw[c], d.onWireDepth)
			}
			if d.hasTRNS {
				transparent := raw[0] == d.trnsAlpha[0] && raw[1] == d.trnsAlpha[1] && raw[2] == d.trnsAlpha[2]
				writeAlpha(d.img.Pix[pixOff+3*outBytesPerSample:], transparent, outBytesPerSample)
			}

		case 4, 6:
			for c := uint32(0); c < r.onWireChannels; c++ {
				raw := br.read(d.onWireDepth)
				writeSample(d.img.Pix[pixOff+c*outBytesPerSample:], raw, d.onWireDepth)
			}
		}
	}
}

// writeSample stores one sample into dst in the Image's output
// representation: a scaled single byte for depths below 16, or a
// little-endian uint16 for depth 16 (reversing PNG's on-wire
// big-endian order).
func writeSample(dst []byte, raw uint16, onWireDepth uint8) {
	if onWireDepth == 16 {
		dst[0] = byte(raw)
		dst[1] = byte(raw >> 8)
		return
	}
	dst[0] = scaleSample(raw, onWireDepth)
}

// writeAlpha stores a tRNS-derived alpha value (fully opaque or fully
// transparent, never partial) in the output sample width.
func writeAlpha(dst []byte, transparent bool, bytesPerSample uint32) {
	if transparent {
		dst[0] = 0
		if bytesPerSample == 2 {
			dst[1] = 0
		}
		return
	}
	dst[0] = 0xFF
	if bytesPerSample == 2 {
		dst[1] = 0xFF
	}
}
