package hw

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/go-faster/jx"
	"github.com/google/go-cmp/cmp"
)

type traceLine struct {
	PC uint16
	Op string
	I  uint16
	SP uint8
	V  []uint8
}

func decodeTraceLine(t *testing.T, line []byte) traceLine {
	t.Helper()

	var tl traceLine
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "pc":
			tl.PC, err = d.UInt16()
		case "op":
			tl.Op, err = d.Str()
		case "i":
			tl.I, err = d.UInt16()
		case "sp":
			tl.SP, err = d.UInt8()
		case "v":
			err = d.Arr(func(d *jx.Decoder) error {
				v, err := d.UInt8()
				tl.V = append(tl.V, v)
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		t.Fatalf("invalid trace line %q: %v", line, err)
	}
	return tl
}

func TestTrace(t *testing.T) {
	var out bytes.Buffer

	m := newMachine(t, 0x6A42, 0xA123, 0x2206, 0x00EE)
	m.SetTraceOutput(&out)
	steps(m, 3)

	regs := func(va uint8) []uint8 {
		v := make([]uint8, NumRegs)
		v[0xA] = va
		return v
	}
	want := []traceLine{
		{PC: 0x200, Op: "6a42", I: 0x000, SP: 0, V: regs(0)},
		{PC: 0x202, Op: "a123", I: 0x000, SP: 0, V: regs(0x42)},
		{PC: 0x204, Op: "2206", I: 0x123, SP: 0, V: regs(0x42)},
	}

	var got []traceLine
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		got = append(got, decodeTraceLine(t, sc.Bytes()))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}

	m.SetTraceOutput(nil)
	m.Step()
	if out.Len() != 0 {
		t.Errorf("trace written after being disabled")
	}
}

type failingWriter struct{ n int }

func (fw *failingWriter) Write(p []byte) (int, error) {
	fw.n++
	return 0, errors.New("disk full")
}

func TestTraceDisabledOnWriteError(t *testing.T) {
	fw := &failingWriter{}
	m := newMachine(t, 0x1200)
	m.SetTraceOutput(fw)
	steps(m, 3)

	if fw.n != 1 {
		t.Errorf("got %d writes, want 1", fw.n)
	}
}

func BenchmarkTrace(b *testing.B) {
	m := newMachine(b, 0x6001, 0x7101, 0x1202)
	m.SetTraceOutput(io.Discard)
	for b.Loop() {
		m.Step()
	}
}
