package emu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"chimp/emu/log"
	"chimp/hw"
	"chimp/hw/audio"
)

// Controls is the set of commands a frontend can send to a running emulator.
// All methods are safe for concurrent use.
type Controls interface {
	SetKey(k uint8)
	TogglePause()
	Reset()
	Step()
	Resume()
	Stop()

	// Speed is the instruction rate, in instructions per second.
	Speed() int
	SetSpeed(ips int)
	// Quirks take effect on the next instruction they apply to.
	Quirks() hw.Quirks
	SetQuirks(q hw.Quirks)
}

// A Frontend presents the machine state and collects user input.
type Frontend interface {
	// Poll processes pending input events, forwarding them to ctl. It
	// returns false when the user asked to quit.
	Poll(ctl Controls) bool
	// Present shows a machine state snapshot.
	Present(s *hw.State)
	Close() error
}

type Emulator struct {
	m      *hw.Machine
	tone   *audio.Engine
	timers *hw.TimerDriver
	out    Frontend

	sink   audio.Sink // nil when audio is disabled
	stream io.Reader
	rec    *audio.Recorder

	program []byte

	// These are accessed concurrently by the emulation loop and the frontend.
	speed  atomic.Int32
	quit   atomic.Bool
	paused atomic.Bool
	reset  atomic.Bool
	steps  atomic.Int32
}

// Launch boots program on a new machine and prepares the audio stream. It
// doesn't start the emulation, call Run for that.
func Launch(program []byte, cfg Config, out Frontend) (*Emulator, error) {
	cfg.Check()

	m := hw.New()
	m.SetQuirks(cfg.Emulation.Quirks)
	m.SetStrict(cfg.Emulation.StrictStack)
	if cfg.TraceOut != nil {
		m.SetTraceOutput(cfg.TraceOut)
	}
	m.Boot(program)

	spec := cfg.Audio.Spec()
	e := &Emulator{
		m:       m,
		tone:    audio.NewEngine(spec),
		out:     out,
		program: program,
	}
	e.timers = hw.NewTimerDriver(m, e.tone)
	e.speed.Store(int32(cfg.Emulation.InstructionsPerSecond))
	e.stream = e.tone

	if cfg.Audio.DisableAudio {
		log.ModEmu.WarnZ("Audio disabled").End()
		e.timers = hw.NewTimerDriver(m, nil)
		return e, nil
	}

	dev, err := audio.OpenDevice(spec)
	if err != nil {
		// The stream is still produced, and consumed at its nominal rate.
		log.ModEmu.WarnZ("No audio device, audio muted").Error("err", err).End()
		e.sink = audio.NewNullSink(spec)
	} else {
		log.ModEmu.InfoZ("Audio enabled").End()
		e.sink = dev
	}

	if cfg.WAVPath != "" {
		rec, err := audio.NewRecorder(cfg.WAVPath, spec)
		if err != nil {
			e.sink.Close()
			return nil, err
		}
		e.rec = rec
		e.stream = rec.Tee(e.tone)
	}
	return e, nil
}

// Machine returns the emulated machine.
func (e *Emulator) Machine() *hw.Machine { return e.m }

// Run executes the program until the frontend quits, Stop is called, ctx is
// cancelled or the machine halts. Instruction execution, audio streaming and
// presentation run concurrently.
func (e *Emulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return e.emulate(ctx)
	})
	if e.sink != nil {
		g.Go(func() error {
			defer cancel()
			return audio.Pump(ctx, e.stream, e.sink, e.tone.Spec(), pumpPeriod)
		})
	} else {
		g.Go(func() error { return e.timers.Run(ctx) })
	}
	g.Go(func() error {
		defer cancel()
		return e.present(ctx)
	})

	err := g.Wait()
	log.ModEmu.InfoZ("Emulation loop exited").End()

	return errors.Join(err, e.close())
}

const pumpPeriod = time.Second / hw.TimerHz / 4

func (e *Emulator) close() error {
	var errs []error
	if e.sink != nil {
		errs = append(errs, e.sink.Close())
	}
	if e.rec != nil {
		errs = append(errs, e.rec.Close())
	}
	errs = append(errs, e.out.Close())
	return errors.Join(errs...)
}

// emulate executes instructions at the configured rate.
func (e *Emulator) emulate(ctx context.Context) error {
	start := time.Now()
	executed := 0

	for {
		if ctx.Err() != nil || e.quit.Load() {
			return nil
		}
		if e.handleReset() {
			start, executed = time.Now(), 0
		}

		if e.paused.Load() {
			if e.steps.Load() > 0 {
				e.steps.Add(-1)
				e.m.Step()
			} else if !sleep(ctx, 10*time.Millisecond) {
				return nil
			}
			start, executed = time.Now(), 0
		} else {
			e.m.Step()
			executed++
		}

		if err := e.m.Err(); err != nil {
			return fmt.Errorf("machine halted: %w", err)
		}
		if e.m.Waiting() {
			runtime.Gosched()
		}

		// Stick to the target instruction rate, the deadline is computed
		// from the start of the current one second window.
		speed := time.Duration(e.speed.Load())
		deadline := start.Add(time.Duration(executed) * time.Second / speed)
		if d := time.Until(deadline); d > 0 {
			if !sleep(ctx, d) {
				return nil
			}
		}
		if time.Since(start) >= time.Second {
			log.ModEmu.DebugZ("Instruction rate").Int("ips", executed).End()
			start, executed = time.Now(), 0
		}
	}
}

// present drives the frontend, once per timer period. When audio is enabled
// the loop is paced by the audio stream being consumed, otherwise by a ticker.
func (e *Emulator) present(ctx context.Context) error {
	var ticker *time.Ticker
	if e.sink == nil {
		ticker = time.NewTicker(time.Second / hw.TimerHz)
		defer ticker.Stop()
	}

	var st hw.State
	for {
		if !e.out.Poll(e) {
			e.Stop()
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		// Timers keep counting while paused.
		if e.sink != nil {
			e.timers.Tick()
		}

		e.m.Snapshot(&st)
		e.out.Present(&st)

		if e.sink != nil {
			if err := e.tone.WaitDrained(ctx); err != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Emulator) handleReset() bool {
	if !e.reset.CompareAndSwap(true, false) {
		return false
	}
	log.ModEmu.InfoZ("Performing reset").End()
	e.m.Boot(e.program)
	return true
}

// sleep waits for d, it returns false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SetKey, TogglePause, Reset, Step, Resume and Stop allow to control the
// emulator in a concurrent-safe way.

func (e *Emulator) SetKey(k uint8) { e.m.SetKey(k) }
func (e *Emulator) Reset()         { e.reset.Store(true) }
func (e *Emulator) Stop()          { e.quit.Store(true) }

func (e *Emulator) TogglePause() {
	for {
		paused := e.paused.Load()
		if e.paused.CompareAndSwap(paused, !paused) {
			log.ModEmu.InfoZ("Pause").Bool("paused", !paused).End()
			return
		}
	}
}

// Step pauses the emulator, if not already, and executes one instruction.
func (e *Emulator) Step() {
	e.paused.Store(true)
	e.steps.Add(1)
}

// Resume leaves pause or single-step mode.
func (e *Emulator) Resume() {
	e.steps.Store(0)
	e.paused.Store(false)
}

func (e *Emulator) IsPaused() bool { return e.paused.Load() }

// SetSpeed sets the instruction rate, clamped to [MinSpeed, MaxSpeed].
func (e *Emulator) SetSpeed(ips int) {
	ips = min(max(ips, MinSpeed), MaxSpeed)
	e.speed.Store(int32(ips))
	log.ModEmu.InfoZ("Speed").Int("ips", ips).End()
}

func (e *Emulator) Speed() int { return int(e.speed.Load()) }

func (e *Emulator) Quirks() hw.Quirks { return e.m.Quirks() }

func (e *Emulator) SetQuirks(q hw.Quirks) {
	e.m.SetQuirks(q)
	log.ModEmu.InfoZ("Quirks").
		Bool("shift_using_vy", q.ShiftUsingVY).
		Bool("increment_i_on_load_store", q.IncrementIOnLoadStore).
		End()
}

// SpeedUp and SpeedDown change the instruction rate by SpeedStep.
func SpeedUp(ctl Controls)   { ctl.SetSpeed(ctl.Speed() + SpeedStep) }
func SpeedDown(ctl Controls) { ctl.SetSpeed(ctl.Speed() - SpeedStep) }

// ToggleShiftQuirk flips the 8xy6/8xyE source register.
func ToggleShiftQuirk(ctl Controls) {
	q := ctl.Quirks()
	q.ShiftUsingVY = !q.ShiftUsingVY
	ctl.SetQuirks(q)
}

// ToggleLoadStoreQuirk flips whether Fx55/Fx65 advance I.
func ToggleLoadStoreQuirk(ctl Controls) {
	q := ctl.Quirks()
	q.IncrementIOnLoadStore = !q.IncrementIOnLoadStore
	ctl.SetQuirks(q)
}
