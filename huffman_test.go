package png

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitStreamFromBits packs a string of '0'/'1' characters into a fresh
// bitStream, character i becoming bit i (so the first character is the
// first bit the stream yields), so tests can drive huffmanTable.decode
// directly.
func bitStreamFromBits(bitsLSBFirst string) *bitStream {
	bs := &bitStream{}
	for i, r := range bitsLSBFirst {
		if r == '1' {
			bs.buf |= 1 << uint(i)
		}
	}
	bs.bitsLeft = uint32(len(bitsLSBFirst))
	return bs
}

func TestBuildHuffmanTable_RFC1951Example(t *testing.T) {
	// RFC 1951 §3.2.2's worked example: symbols A-D with lengths
	// 2,1,3,3 get codes 10,0,110,111. The longest code is 3 bits, so
	// maxLen is 4 (lookups read maxLen-1 bits).
	lengths := []uint8{2, 1, 3, 3} // A, B, C, D
	table, err := buildHuffmanTable(lengths, 4)
	require.NoError(t, err)

	cases := []struct {
		bits string
		sym  uint16
	}{
		{"0", 1},   // B: code 0
		{"10", 0},  // A: code 10, sent most-significant code bit first
		{"110", 2}, // C: code 110
		{"111", 3}, // D: code 111
	}
	for _, c := range cases {
		bs := bitStreamFromBits(c.bits + "0000000")
		sym := table.decode(bs)
		assert.Equal(t, c.sym, sym, "bits=%s", c.bits)
		assert.Equal(t, lengths[sym], table.codeLen[sym])
	}
}

func TestBuildHuffmanTable_OverSubscribed(t *testing.T) {
	_, err := buildHuffmanTable([]uint8{1, 1, 1}, 3)
	assert.Error(t, err)
}

func TestBuildHuffmanTable_SingleSymbol(t *testing.T) {
	table, err := buildHuffmanTable([]uint8{0, 1}, 1)
	require.NoError(t, err)
	bs := bitStreamFromBits("0")
	assert.Equal(t, uint16(1), table.decode(bs))
}
