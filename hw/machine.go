package hw

import (
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"chimp/emu/log"
)

const (
	MemSize        = 0x1000
	ProgramStart   = 0x200
	MaxProgramSize = MemSize - ProgramStart
	StackSize      = 16
	NumRegs        = 16

	addrMask = MemSize - 1
)

// NoKey is the value of the keypad cell when no key is pressed.
const NoKey uint8 = 0xFF

var (
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
)

// Quirks are the behaviour switches differing between CHIP-8 interpreters.
type Quirks struct {
	// 8xy6 and 8xyE shift Vy into Vx, rather than shifting Vx in place.
	ShiftUsingVY bool `toml:"shift_using_vy"`
	// Fx55 and Fx65 advance I by x+1.
	IncrementIOnLoadStore bool `toml:"increment_i_on_load_store"`
}

// A Machine is a CHIP-8 virtual machine: memory, registers, timers,
// keypad cell and framebuffer.
//
// Step and the timer, snapshot and boot methods are serialized by a single
// mutex, so that readers never observe a half-executed instruction. The
// keypad cell and the quirk flags are atomics and can be written from any
// goroutine at any time.
type Machine struct {
	mu sync.Mutex

	mem   [MemSize]byte
	v     [NumRegs]uint8
	stack [StackSize]uint16
	sp    uint8
	pc    uint16
	i     uint16
	dt    uint8
	st    uint8
	disp  Display

	seed *rand.PCG
	rng  *rand.Rand

	waiting bool  // last instruction was an unsatisfied key wait
	err     error // non-nil when halted

	key     atomic.Uint32
	shiftVY atomic.Bool
	incI    atomic.Bool
	strict  atomic.Bool

	// Non-nil when execution tracing is enabled.
	tracer *tracer
}

// New returns a Machine with the glyph set loaded, ready to Boot.
func New() *Machine {
	m := &Machine{seed: rand.NewPCG(0, 0)}
	m.rng = rand.New(m.seed)
	copy(m.mem[:], glyphs[:])
	m.reset()
	return m
}

// Boot resets the machine and loads program at ProgramStart. Programs
// longer than MaxProgramSize are truncated. Boot can be called any number
// of times on the same Machine.
func (m *Machine) Boot(program []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(program) > MaxProgramSize {
		log.ModMem.WarnZ("Program truncated").
			Int("size", len(program)).
			Int("max", MaxProgramSize).
			End()
		program = program[:MaxProgramSize]
	}

	m.reset()
	clear(m.mem[ProgramStart:])
	copy(m.mem[ProgramStart:], program)

	log.ModCPU.InfoZ("Machine booted").Int("size", len(program)).End()
}

func (m *Machine) reset() {
	clear(m.v[:])
	clear(m.stack[:])
	m.sp = 0
	m.i = 0
	m.pc = ProgramStart
	m.dt, m.st = 0, 0
	m.key.Store(uint32(NoKey))
	m.waiting = false
	m.err = nil

	now := uint64(time.Now().UnixNano())
	m.seed.Seed(now, now>>32|now<<32)

	m.disp.Clear()
}

// SetKey sets the currently pressed key. Values out of 0-15 release the key.
func (m *Machine) SetKey(k uint8) {
	if k > 0xF {
		k = NoKey
	}
	m.key.Store(uint32(k))
}

// ReleaseKey marks that no key is pressed.
func (m *Machine) ReleaseKey() { m.key.Store(uint32(NoKey)) }

// Key returns the currently pressed key, or NoKey.
func (m *Machine) Key() uint8 { return uint8(m.key.Load()) }

func (m *Machine) SetQuirks(q Quirks) {
	m.shiftVY.Store(q.ShiftUsingVY)
	m.incI.Store(q.IncrementIOnLoadStore)
}

func (m *Machine) Quirks() Quirks {
	return Quirks{
		ShiftUsingVY:          m.shiftVY.Load(),
		IncrementIOnLoadStore: m.incI.Load(),
	}
}

// SetStrict enables stack bound checks. In strict mode, calling with a full
// stack or returning with an empty one halts the machine.
func (m *Machine) SetStrict(strict bool) { m.strict.Store(strict) }

// SetTraceOutput enables execution tracing, one JSON object per line.
// A nil writer disables it.
func (m *Machine) SetTraceOutput(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w == nil {
		m.tracer = nil
		return
	}
	m.tracer = &tracer{w: w}
}

// Err returns the error that halted the machine, if any.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Waiting reports whether the last executed instruction is a key wait that
// found no key pressed. Schedulers can yield at that point.
func (m *Machine) Waiting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

func (m *Machine) halt(err error) {
	m.err = err
	log.ModCPU.WarnZ("Machine halted").
		Error("err", err).
		Hex16("pc", m.pc-2).
		Hex8("sp", m.sp).
		End()
}

// TickTimers decrements the delay and sound timers, clamping them at zero.
// It reports whether the sound timer was running, that is whether a tone
// should be played for the next 60th of a second.
func (m *Machine) TickTimers() (tone bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dt > 0 {
		m.dt--
	}
	if m.st > 0 {
		m.st--
		return true
	}
	return false
}

// State is a copy of the observable machine state.
type State struct {
	Display Display
	V       [NumRegs]uint8
	Stack   [StackSize]uint16
	PC      uint16
	I       uint16
	SP      uint8
	DT      uint8
	ST      uint8
	Key     uint8
	Err     error
}

// Snapshot copies the observable state of the machine into s.
func (m *Machine) Snapshot(s *State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.Display = m.disp
	s.V = m.v
	s.Stack = m.stack
	s.PC = m.pc
	s.I = m.i
	s.SP = m.sp
	s.DT = m.dt
	s.ST = m.st
	s.Key = m.Key()
	s.Err = m.err
}
