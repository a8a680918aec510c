package png

// byteSink receives decoded bytes from the inflater one at a time, in
// stream order. The scanline reconstructor is the only implementation;
// keeping it as an interface is what lets inflate.go stay ignorant of
// scanlines, filters, and geometry.
type byteSink interface {
	consumeByte(b byte) error
}

const windowSize = 1 << 15 // fixed 32 KiB ring, independent of the ZLIB header's CINFO
const windowMask = windowSize - 1

// codeLengthOrder is the fixed permutation in which the HCLEN code
// -length-code lengths are transmitted.
var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// fixedLitLenLengths and fixedDistLengths are the code lengths RFC 1951
// §3.2.6 fixes for BTYPE==1 blocks.
var fixedLitLenLengths = func() [288]uint8 {
	var l [288]uint8
	for i := 0; i <= 143; i++ {
		l[i] = 8
	}
	for i := 144; i <= 255; i++ {
		l[i] = 9
	}
	for i := 256; i <= 279; i++ {
		l[i] = 7
	}
	for i := 280; i <= 287; i++ {
		l[i] = 8
	}
	return l
}()

var fixedDistLengths = func() [32]uint8 {
	var l [32]uint8
	for i := range l {
		l[i] = 5
	}
	return l
}()

// lengthOffset is the base length for length symbols 265..284 (their
// extra-bit count is computed in readLength); symbols 257..264 and 285
// are handled without a table (see readLength).
var lengthOffset = [20]uint16{11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227}

// distOffset is the base distance for distance codes 4..29 (their
// extra-bit count is computed in readDistance).
var distOffset = [26]uint32{5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}

// inflater drives a bitStream through a ZLIB-wrapped DEFLATE stream,
// emitting decoded bytes to a sink as it goes while maintaining a 32 KiB
// ring buffer for LZ77 back-references. It never materializes the full
// decompressed stream.
type inflater struct {
	bs     *bitStream
	ds     *datastream
	sink   byteSink
	window [windowSize]byte
	pos    int
}

func newInflater(ds *datastream, bs *bitStream, sink byteSink) *inflater {
	return &inflater{bs: bs, ds: ds, sink: sink}
}

// run consumes the ZLIB header, every DEFLATE block through BFINAL, and
// the trailing ADLER32 (read but not verified).
func (f *inflater) run() error {
	if err := f.bs.ensure(f.ds, 16); err != nil {
		return err
	}
	cmf := f.bs.read(8)
	flg := f.bs.read(8)
	cm := cmf & 0xF
	cinfo := cmf >> 4
	if cm != 8 || cinfo > 7 {
		return FormatError("bad ZLIB compression method/info")
	}
	if flg&0x20 != 0 {
		return FormatError("ZLIB preset dictionary not supported")
	}
	if (cmf<<8|flg)%31 != 0 {
		return FormatError("bad ZLIB header checksum")
	}

	for {
		if err := f.bs.ensure(f.ds, 3); err != nil {
			return err
		}
		header := f.bs.read(3)
		bfinal := header & 1
		btype := header >> 1

		switch btype {
		case 0:
			if err := f.storedBlock(); err != nil {
				return err
			}
		case 1:
			litLen, err := buildHuffmanTable(fixedLitLenLengths[:], 16)
			if err != nil {
				return err
			}
			dist, err := buildHuffmanTable(fixedDistLengths[:], 16)
			if err != nil {
				return err
			}
			if err := f.huffmanBlock(litLen, dist); err != nil {
				return err
			}
		case 2:
			litLen, dist, err := f.readDynamicTables()
			if err != nil {
				return err
			}
			if err := f.huffmanBlock(litLen, dist); err != nil {
				return err
			}
		default:
			return FormatError("reserved DEFLATE block type")
		}

		if bfinal != 0 {
			break
		}
	}

	skip := 32 + f.bs.bitsLeft%8
	if err := f.bs.ensure(f.ds, skip); err != nil {
		return err
	}
	f.bs.skip(skip)

	return f.ds.consumeCRC()
}

// emit pushes one decoded byte both to the sliding window and the sink.
func (f *inflater) emit(b byte) error {
	f.window[f.pos] = b
	f.pos = (f.pos + 1) & windowMask
	return f.sink.consumeByte(b)
}

func (f *inflater) storedBlock() error {
	f.bs.skip(f.bs.bitsLeft % 8)
	if err := f.bs.ensure(f.ds, 32); err != nil {
		return err
	}
	lenNlen := f.bs.read(32)
	length := uint16(lenNlen)
	nlen := uint16(lenNlen >> 16)
	if nlen != ^length {
		return FormatError("stored block LEN/NLEN mismatch")
	}
	for ; length > 0; length-- {
		if err := f.bs.ensure(f.ds, 8); err != nil {
			return err
		}
		if err := f.emit(byte(f.bs.read(8))); err != nil {
			return err
		}
	}
	return nil
}

func (f *inflater) readDynamicTables() (litLen, dist *huffmanTable, err error) {
	if err = f.bs.ensure(f.ds, 14); err != nil {
		return nil, nil, err
	}
	hlit := uint32(f.bs.read(5))
	hdist := uint32(f.bs.read(5))
	hclen := uint32(f.bs.read(4))

	if err = f.bs.ensure(f.ds, (hclen+4)*3); err != nil {
		return nil, nil, err
	}
	var clCodeLengths [19]uint8
	for i := uint32(0); i < hclen+4; i++ {
		clCodeLengths[codeLengthOrder[i]] = uint8(f.bs.read(3))
	}
	clTable, err := buildHuffmanTable(clCodeLengths[:], 8)
	if err != nil {
		return nil, nil, err
	}

	allLengths, err := f.decodeCodeLengths(clTable, 257+hlit+1+hdist)
	if err != nil {
		return nil, nil, err
	}

	litLen, err = buildHuffmanTable(allLengths[:257+hlit], 16)
	if err != nil {
		return nil, nil, err
	}
	dist, err = buildHuffmanTable(allLengths[257+hlit:257+hlit+1+hdist], 16)
	if err != nil {
		return nil, nil, err
	}
	return litLen, dist, nil
}

// decodeCodeLengths decodes total code lengths (for the concatenated
// literal/length and distance alphabets) using the code-length Huffman
// code, expanding the 16/17/18 repeat symbols.
func (f *inflater) decodeCodeLengths(clTable *huffmanTable, total uint32) ([288 + 32]uint8, error) {
	var out [288 + 32]uint8
	var sym uint32
	for sym < total {
		cl, err := f.readSymbol(clTable)
		if err != nil {
			return out, err
		}
		switch {
		case cl < 16:
			out[sym] = uint8(cl)
			sym++
		case cl == 16:
			if sym == 0 {
				return out, FormatError("repeat code with no previous length")
			}
			if err := f.bs.ensure(f.ds, 2); err != nil {
				return out, err
			}
			reps := 3 + f.bs.read(2)
			if sym+uint32(reps) > total {
				return out, FormatError("repeat code overruns code length table")
			}
			for range reps {
				out[sym] = out[sym-1]
				sym++
			}
		case cl == 17:
			if err := f.bs.ensure(f.ds, 3); err != nil {
				return out, err
			}
			reps := 3 + f.bs.read(3)
			if sym+uint32(reps) > total {
				return out, FormatError("repeat code overruns code length table")
			}
			sym += uint32(reps)
		case cl == 18:
			if err := f.bs.ensure(f.ds, 7); err != nil {
				return out, err
			}
			reps := 11 + f.bs.read(7)
			if sym+uint32(reps) > total {
				return out, FormatError("repeat code overruns code length table")
			}
			sym += uint32(reps)
		default:
			return out, FormatError("bad code-length symbol")
		}
	}
	return out, nil
}

// readSymbol ensures enough bits are buffered, decodes one symbol from
// t, and advances the bit stream past its code.
func (f *inflater) readSymbol(t *huffmanTable) (uint16, error) {
	if err := f.bs.ensure(f.ds, t.maxLen-1); err != nil {
		return 0, err
	}
	sym := t.decode(f.bs)
	l := t.codeLen[sym]
	if l == 0 {
		return 0, FormatError("invalid Huffman code")
	}
	f.bs.skip(uint32(l))
	return sym, nil
}

// huffmanBlock decodes symbols from litLen/dist until the end-of-block
// marker, emitting literal bytes directly and expanding back-references
// against the sliding window.
func (f *inflater) huffmanBlock(litLen, dist *huffmanTable) error {
	for {
		sym, err := f.readSymbol(litLen)
		if err != nil {
			return err
		}
		switch {
		case sym < 256:
			if err := f.emit(byte(sym)); err != nil {
				return err
			}
		case sym == 256:
			return nil
		case sym <= 285:
			length, err := f.readLength(sym)
			if err != nil {
				return err
			}
			distSym, err := f.readSymbol(dist)
			if err != nil {
				return err
			}
			if distSym > 29 {
				return FormatError("bad distance symbol")
			}
			distance, err := f.readDistance(uint32(distSym))
			if err != nil {
				return err
			}
			if distance > windowSize {
				return FormatError("back-reference distance exceeds window")
			}
			p := (f.pos - distance) & windowMask
			for ; length > 0; length-- {
				b := f.window[p]
				if err := f.emit(b); err != nil {
					return err
				}
				p = (p + 1) & windowMask
			}
		default:
			return FormatError("bad length/literal symbol")
		}
	}
}

func (f *inflater) readLength(sym uint16) (int, error) {
	switch {
	case sym < 265:
		return int(sym) - 254, nil
	case sym == 285:
		return 258, nil
	default:
		extra := uint32(sym-261) / 4
		if err := f.bs.ensure(f.ds, extra); err != nil {
			return 0, err
		}
		return int(f.bs.read(extra)) + int(lengthOffset[sym-265]), nil
	}
}

func (f *inflater) readDistance(code uint32) (int, error) {
	if code < 4 {
		return int(code) + 1, nil
	}
	extra := (code - 2) / 2
	if err := f.bs.ensure(f.ds, extra); err != nil {
		return 0, err
	}
	return int(f.bs.read(extra)) + int(distOffset[code-4]), nil
}
