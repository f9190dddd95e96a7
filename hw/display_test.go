package hw

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDisplayFlip(t *testing.T) {
	var d Display
	d.Clear()

	if d.flip(DisplayWidth+1, DisplayHeight+2) {
		t.Fatalf("flip on an off pixel reported a collision")
	}
	if !d.IsOn(1, 2) {
		t.Fatalf("pixel (1,2) should be on")
	}
	if !d.flip(1, 2) {
		t.Fatalf("flip on a lit pixel should report a collision")
	}
	if d.At(1, 2) != PixelOff {
		t.Fatalf("pixel (1,2) = %08x, want off", d.At(1, 2))
	}
}

func TestDisplayRGBA(t *testing.T) {
	var d Display
	d.Clear()
	d[1] = PixelOn

	buf := make([]byte, len(d)*4)
	d.RGBA(buf)

	want := []byte{
		0xc8, 0xc8, 0xc8, 0xff,
		0x0a, 0x0a, 0x0a, 0xff,
		0xc8, 0xc8, 0xc8, 0xff,
	}
	if diff := cmp.Diff(want, buf[:12]); diff != "" {
		t.Errorf("rgba mismatch (-want +got):\n%s", diff)
	}
}
