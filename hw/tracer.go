package hw

import (
	"io"

	"github.com/go-faster/jx"

	"chimp/emu/log"
)

// tracer writes the execution trace, one JSON object per executed
// instruction, holding the machine state right before its execution.
type tracer struct {
	w   io.Writer
	enc jx.Encoder
}

func (t *tracer) write(pc uint16, op Opcode, m *Machine) {
	e := &t.enc
	e.Reset()

	e.ObjStart()
	e.FieldStart("pc")
	e.UInt16(pc)
	e.FieldStart("op")
	e.Str(op.String())
	e.FieldStart("i")
	e.UInt16(m.i)
	e.FieldStart("sp")
	e.UInt8(m.sp)
	e.FieldStart("dt")
	e.UInt8(m.dt)
	e.FieldStart("st")
	e.UInt8(m.st)
	e.FieldStart("v")
	e.ArrStart()
	for _, v := range m.v {
		e.UInt8(v)
	}
	e.ArrEnd()
	e.ObjEnd()

	buf := append(e.Bytes(), '\n')
	if _, err := t.w.Write(buf); err != nil {
		log.ModCPU.WarnZ("Execution trace disabled").Error("err", err).End()
		m.tracer = nil
	}
}
