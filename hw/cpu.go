package hw

import "fmt"

// Opcode is a 2-byte CHIP-8 instruction.
type Opcode uint16

func (op Opcode) Group() uint8 { return uint8(op >> 12) }
func (op Opcode) X() uint8     { return uint8(op>>8) & 0xF }
func (op Opcode) Y() uint8     { return uint8(op>>4) & 0xF }
func (op Opcode) N() uint8     { return uint8(op) & 0xF }
func (op Opcode) KK() uint8    { return uint8(op) }
func (op Opcode) NNN() uint16  { return uint16(op) & 0xFFF }

func (op Opcode) String() string { return fmt.Sprintf("%04x", uint16(op)) }

// Step fetches, decodes and executes one instruction. Unknown instructions
// are skipped. Step does nothing on a halted machine.
func (m *Machine) Step() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return
	}
	m.step()
}

func (m *Machine) step() {
	pc := m.pc
	op := Opcode(m.read(pc))<<8 | Opcode(m.read(pc+1))
	if m.tracer != nil {
		m.tracer.write(pc, op, m)
	}

	m.pc += 2
	m.waiting = false
	ops[op.Group()](m, op)
}

// Memory accesses wrap around the address space.
func (m *Machine) read(addr uint16) uint8     { return m.mem[addr&addrMask] }
func (m *Machine) write(addr uint16, v uint8) { m.mem[addr&addrMask] = v }

func (m *Machine) skipIf(cond bool) {
	if cond {
		m.pc += 2
	}
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ops maps the top nibble of an opcode to its group handler.
var ops = [16]func(*Machine, Opcode){
	0x0: sys,
	0x1: jp,
	0x2: call,
	0x3: func(m *Machine, op Opcode) { m.skipIf(m.v[op.X()] == op.KK()) },
	0x4: func(m *Machine, op Opcode) { m.skipIf(m.v[op.X()] != op.KK()) },
	0x5: func(m *Machine, op Opcode) { m.skipIf(op.N() == 0 && m.v[op.X()] == m.v[op.Y()]) },
	0x6: func(m *Machine, op Opcode) { m.v[op.X()] = op.KK() },
	0x7: func(m *Machine, op Opcode) { m.v[op.X()] += op.KK() },
	0x8: alu,
	0x9: func(m *Machine, op Opcode) { m.skipIf(op.N() == 0 && m.v[op.X()] != m.v[op.Y()]) },
	0xA: func(m *Machine, op Opcode) { m.i = op.NNN() },
	0xB: func(m *Machine, op Opcode) { m.pc = (op.NNN() + uint16(m.v[0])) & 0xFFF },
	0xC: func(m *Machine, op Opcode) { m.v[op.X()] = uint8(m.rng.Uint32()) & op.KK() },
	0xD: drw,
	0xE: skp,
	0xF: misc,
}

// 00E0: CLS, 00EE: RET.
func sys(m *Machine, op Opcode) {
	switch op {
	case 0x00E0:
		m.disp.Clear()
	case 0x00EE:
		if m.strict.Load() && m.sp == 0 {
			m.halt(ErrStackUnderflow)
			return
		}
		m.pc = m.stack[m.sp%StackSize]
		m.sp--
	}
}

// 1nnn: JP addr
func jp(m *Machine, op Opcode) {
	m.pc = op.NNN()
}

// 2nnn: CALL addr
func call(m *Machine, op Opcode) {
	if m.strict.Load() && m.sp >= StackSize-1 {
		m.halt(ErrStackOverflow)
		return
	}
	m.sp++
	m.stack[m.sp%StackSize] = m.pc
	m.pc = op.NNN()
}

func alu(m *Machine, op Opcode) {
	x, y := op.X(), op.Y()
	v := &m.v

	switch op.N() {
	case 0x0:
		v[x] = v[y]
	case 0x1:
		v[x] |= v[y]
	case 0x2:
		v[x] &= v[y]
	case 0x3:
		v[x] ^= v[y]
	case 0x4:
		sum := uint16(v[x]) + uint16(v[y])
		v[0xF] = b2u8(sum > 0xFF)
		v[x] = uint8(sum)
	case 0x5:
		v[0xF] = b2u8(v[y] <= v[x])
		v[x] = v[x] - v[y]
	case 0x6:
		src := x
		if m.shiftVY.Load() {
			src = y
		}
		v[0xF] = v[src] & 0x01
		v[x] = v[src] >> 1
	case 0x7:
		v[0xF] = b2u8(v[x] <= v[y])
		v[x] = v[y] - v[x]
	case 0xE:
		src := x
		if m.shiftVY.Load() {
			src = y
		}
		v[0xF] = v[src] >> 7
		v[x] = v[src] << 1
	}
}

// Dxyn: draw n bytes of sprite data located at I, at (Vx, Vy).
func drw(m *Machine, op Opcode) {
	x, y := op.X(), op.Y()

	m.v[0xF] = 0
	for row := range uint16(op.N()) {
		sprite := m.read(m.i + row)
		for col := range 8 {
			if sprite&(0x80>>col) == 0 {
				continue
			}
			if m.disp.flip(int(m.v[x])+col, int(m.v[y])+int(row)) {
				m.v[0xF] = 1
			}
		}
	}
}

// Ex9E: SKP Vx, ExA1: SKNP Vx.
func skp(m *Machine, op Opcode) {
	switch op.KK() {
	case 0x9E:
		m.skipIf(m.Key() == m.v[op.X()])
	case 0xA1:
		m.skipIf(m.Key() != m.v[op.X()])
	}
}

func misc(m *Machine, op Opcode) {
	x := op.X()

	switch op.KK() {
	case 0x07:
		m.v[x] = m.dt
	case 0x0A:
		if k := m.Key(); k != NoKey {
			m.v[x] = k
		} else {
			m.pc -= 2
			m.waiting = true
		}
	case 0x15:
		m.dt = m.v[x]
	case 0x18:
		m.st = m.v[x]
	case 0x1E:
		m.v[0xF] = b2u8(m.i+uint16(m.v[x]) > 0xFFF)
		m.i = (m.i + uint16(m.v[x])) & 0xFFF
	case 0x29:
		m.i = (uint16(m.v[x]) * GlyphSize) & 0xFFF
	case 0x33:
		bcd := m.v[x]
		m.write(m.i, bcd/100)
		m.write(m.i+1, bcd/10%10)
		m.write(m.i+2, bcd%10)
	case 0x55:
		for r := range uint16(x) + 1 {
			m.write(m.i+r, m.v[r])
		}
		if m.incI.Load() {
			m.i += uint16(x) + 1
		}
	case 0x65:
		for r := range uint16(x) + 1 {
			m.v[r] = m.read(m.i + r)
		}
		if m.incI.Load() {
			m.i += uint16(x) + 1
		}
	}
}
