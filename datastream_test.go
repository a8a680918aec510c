package png

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRCTableInvariant(t *testing.T) {
	for i := 0; i < 256; i++ {
		c := uint32(i)
		for range 8 {
			if c&1 != 0 {
				c = 0xEDB88320 ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		assert.Equal(t, c, crcTable[i], "crcTable[%d]", i)
	}
}

func TestDatastreamReadsAndCRC(t *testing.T) {
	// "abcd" as a chunk type, followed by one data byte, followed by
	// the correct trailing CRC over "abcd"+data.
	buf := []byte{'a', 'b', 'c', 'd', 0x42}
	d := newDatastream(append(append([]byte{}, buf...), 0, 0, 0, 0))
	d.resetCRC()
	name, err := d.readChunkName()
	require.NoError(t, err)
	assert.Equal(t, [4]byte{'a', 'b', 'c', 'd'}, name)
	b, err := d.readU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), b)

	want := d.crc ^ 0xFFFFFFFF
	d.buf[d.cursor] = byte(want >> 24)
	d.buf[d.cursor+1] = byte(want >> 16)
	d.buf[d.cursor+2] = byte(want >> 8)
	d.buf[d.cursor+3] = byte(want)
	require.NoError(t, d.consumeCRC())
}

func TestDatastreamRejectsLengthWithHighBitSet(t *testing.T) {
	d := newDatastream([]byte{0x80, 0, 0, 0})
	_, err := d.readU32()
	require.Error(t, err)
}

func TestDatastreamTruncatedInput(t *testing.T) {
	d := newDatastream([]byte{1, 2})
	_, err := d.readU32()
	assert.Error(t, err)
}
