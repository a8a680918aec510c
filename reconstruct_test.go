package png

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaethPredictor_AlwaysReturnsAnInput(t *testing.T) {
	for a := 0; a < 256; a += 17 {
		for b := 0; b < 256; b += 17 {
			for c := 0; c < 256; c += 17 {
				got := paethPredictor(uint8(a), uint8(b), uint8(c))
				assert.True(t, got == uint8(a) || got == uint8(b) || got == uint8(c))
			}
		}
	}
}

func TestPaethPredictor_KnownCases(t *testing.T) {
	// a == b == c: predictor picks a (tie-break order is a, b, c).
	assert.Equal(t, uint8(5), paethPredictor(5, 5, 5))
	// c far away from a and b: predictor should favor whichever of a,b is closer.
	assert.Equal(t, uint8(10), paethPredictor(10, 10, 0))
}

func TestDefilterRow_None(t *testing.T) {
	cur := []byte{1, 2, 3}
	prev := []byte{9, 9, 9}
	require := assert.New(t)
	err := defilterRow(0, cur, prev, 1)
	require.NoError(err)
	require.Equal([]byte{1, 2, 3}, cur)
}

func TestDefilterRow_Sub(t *testing.T) {
	// bpp=1: each byte adds the previous (already-defiltered) byte in
	// the same row.
	cur := []byte{1, 1, 1, 1}
	prev := make([]byte, 4)
	err := defilterRow(1, cur, prev, 1)
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, cur)
}

func TestDefilterRow_Up(t *testing.T) {
	cur := []byte{1, 2, 3}
	prev := []byte{10, 20, 30}
	err := defilterRow(2, cur, prev, 1)
	assert.NoError(t, err)
	assert.Equal(t, []byte{11, 22, 33}, cur)
}

func TestDefilterRow_InvalidType(t *testing.T) {
	err := defilterRow(5, []byte{0}, []byte{0}, 1)
	assert.Error(t, err)
}

func TestPassGeometry_NonInterlaced(t *testing.T) {
	w, h := passGeometry(0, 37, 53)
	assert.Equal(t, uint32(37), w)
	assert.Equal(t, uint32(53), h)
}

func TestPassGeometry_Adam7CoversEveryPixelExactlyOnce(t *testing.T) {
	const width, height = 23, 17
	covered := make([][]bool, height)
	for i := range covered {
		covered[i] = make([]bool, width)
	}
	for pass := 1; pass <= 7; pass++ {
		w, h := passGeometry(pass, width, height)
		for row := uint32(0); row < h; row++ {
			y := adam7StartY[pass] + row*adam7StepY[pass]
			for col := uint32(0); col < w; col++ {
				x := adam7StartX[pass] + col*adam7StepX[pass]
				if covered[y][x] {
					t.Fatalf("pixel (%d,%d) covered twice", x, y)
				}
				covered[y][x] = true
			}
		}
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !covered[y][x] {
				t.Fatalf("pixel (%d,%d) never covered", x, y)
			}
		}
	}
}

func TestMsbBitReader(t *testing.T) {
	r := &msbBitReader{row: []byte{0b10110100}}
	assert.Equal(t, uint16(1), r.read(1))
	assert.Equal(t, uint16(0), r.read(1))
	assert.Equal(t, uint16(0b1101), r.read(4))
	assert.Equal(t, uint16(0b00), r.read(2))
}

func TestScaleSample(t *testing.T) {
	assert.Equal(t, uint8(0), scaleSample(0, 1))
	assert.Equal(t, uint8(255), scaleSample(1, 1))
	assert.Equal(t, uint8(0), scaleSample(0, 4))
	assert.Equal(t, uint8(255), scaleSample(15, 4))
}
