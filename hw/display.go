package hw

const (
	DisplayWidth  = 64
	DisplayHeight = 32
)

// Pixel values, sampled as-is by the renderers.
const (
	PixelOff uint32 = 0xc8c8c8c8
	PixelOn  uint32 = 0x0a0a0a0a
)

// Display is the row-major framebuffer. Every cell holds either PixelOff or
// PixelOn.
type Display [DisplayWidth * DisplayHeight]uint32

// Clear turns every pixel off.
func (d *Display) Clear() {
	for i := range d {
		d[i] = PixelOff
	}
}

// At returns the pixel at column x, row y.
func (d *Display) At(x, y int) uint32 {
	return d[y*DisplayWidth+x]
}

// IsOn reports whether the pixel at column x, row y is lit.
func (d *Display) IsOn(x, y int) bool {
	return d.At(x, y) != PixelOff
}

// flip XORs the pixel at (col, row), coordinates wrapping around both axes.
// It reports whether a lit pixel has been turned off.
func (d *Display) flip(col, row int) bool {
	off := (row%DisplayHeight)*DisplayWidth + col%DisplayWidth
	if d[off] != PixelOff {
		d[off] = PixelOff
		return true
	}
	d[off] = PixelOn
	return false
}

// RGBA writes the display as 8-bit RGBA into dst, which must hold at least
// 4*DisplayWidth*DisplayHeight bytes. Alpha is always opaque.
func (d *Display) RGBA(dst []byte) {
	_ = dst[len(d)*4-1]
	for i, px := range d {
		c := byte(px)
		dst[i*4+0] = c
		dst[i*4+1] = c
		dst[i*4+2] = c
		dst[i*4+3] = 0xff
	}
}
