package png

import "math/bits"

// huffmanTable is a flat lookup table for a canonical Huffman code with
// maximum code length maxLen: size 2^(maxLen-1), indexed by the
// reversed (maxLen-1)-bit prefix of the bit stream. Each slot holds the
// decoded symbol; codeLen[symbol] holds how many bits to actually
// advance by once the symbol is known (shorter codes occupy multiple
// slots, since the lookup reads one bit-width's worth of prefix
// regardless of the matched code's true length).
//
// This is a single flat table keyed by reversed prefix bits, rather
// than the two-level chunked design Go's compress/flate uses
// internally; see DESIGN.md for why.
type huffmanTable struct {
	maxLen  uint32
	lut     []uint16
	codeLen []uint8
}

// buildHuffmanTable constructs the canonical Huffman decode table for
// the given per-symbol code lengths (0 meaning "unused"), following the
// standard bl_count / next_code construction. Lookups read maxLen-1
// bits, so maxLen is one more than the longest code the table decodes
// (8 for the code-length alphabet, whose codes are at most 7 bits; 16
// for literal/length and distance, at most 15). It returns an error if
// the lengths over-subscribe the code space.
func buildHuffmanTable(lengths []uint8, maxLen uint32) (*huffmanTable, error) {
	var blCount [17]uint16
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		blCount[l]++
	}

	var nextCode [17]uint16
	code := uint16(0)
	for l := uint32(1); l <= maxLen; l++ {
		code = (code + blCount[l-1]) << 1
		nextCode[l] = code
		if uint32(nextCode[l])+uint32(blCount[l]) > 1<<l {
			return nil, FormatError("over-subscribed Huffman code")
		}
	}

	size := 1 << (maxLen - 1)
	t := &huffmanTable{
		maxLen:  maxLen,
		lut:     make([]uint16, size),
		codeLen: make([]uint8, len(lengths)),
	}
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		t.codeLen[sym] = l
		c := nextCode[l]
		nextCode[l]++
		reversed := bits.Reverse16(c) >> (16 - l)
		for off := int(reversed); off < size; off += 1 << l {
			t.lut[off] = uint16(sym)
		}
	}
	return t, nil
}

// decode reads the next symbol off bs using the table, without
// consuming the bits — the caller must skip codeLen[symbol] bits once
// it knows the symbol's code length.
func (t *huffmanTable) decode(bs *bitStream) uint16 {
	code := bs.peek(t.maxLen - 1)
	return t.lut[code]
}
