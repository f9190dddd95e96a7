package emu

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chimp/emu/log"
	"chimp/hw"
	"chimp/hw/audio"
	"chimp/hw/input"
)

func program(ops ...uint16) []byte {
	buf := make([]byte, 0, 2*len(ops))
	for _, op := range ops {
		buf = append(buf, byte(op>>8), byte(op))
	}
	return buf
}

func launch(tb testing.TB, prog []byte, out Frontend, strict bool) *Emulator {
	tb.Helper()

	cfg := DefaultConfig()
	cfg.Audio.DisableAudio = true
	cfg.Emulation.InstructionsPerSecond = MaxSpeed
	cfg.Emulation.StrictStack = strict
	return launchConfig(tb, prog, out, cfg)
}

func launchConfig(tb testing.TB, prog []byte, out Frontend, cfg Config) *Emulator {
	tb.Helper()
	log.Disable()

	e, err := Launch(prog, cfg, out)
	if err != nil {
		tb.Fatalf("Launch: %v", err)
	}
	return e
}

func run(tb testing.TB, e *Emulator) error {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := e.Run(ctx)
	if ctx.Err() != nil {
		tb.Fatal("emulator didn't stop before timeout")
	}
	return err
}

func TestRunDrawsGlyph(t *testing.T) {
	out := &TestingOutput{NumFrames: 10}
	e := launch(t, program(
		0x6000, // V0 = 0
		0x6100, // V1 = 0
		0xF029, // I = glyph 0
		0xD015, // draw 5 rows at (V0, V1)
		0x1208, // loop
	), out, false)

	if err := run(t, e); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !out.closed {
		t.Errorf("frontend not closed")
	}

	st := out.Last()
	glyph0 := []string{
		"####",
		"#..#",
		"#..#",
		"#..#",
		"####",
	}
	var got []string
	for y := range len(glyph0) {
		row := ""
		for x := range 4 {
			if st.Display.IsOn(x, y) {
				row += "#"
			} else {
				row += "."
			}
		}
		got = append(got, row)
	}
	if diff := cmp.Diff(glyph0, got); diff != "" {
		t.Errorf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestRunHaltsOnStackUnderflow(t *testing.T) {
	out := &TestingOutput{NumFrames: 1 << 30}
	e := launch(t, program(0x00EE), out, true)

	err := run(t, e)
	if !errors.Is(err, hw.ErrStackUnderflow) {
		t.Fatalf("Run() error = %v, want %v", err, hw.ErrStackUnderflow)
	}
}

func TestStepWhilePaused(t *testing.T) {
	out := &TestingOutput{NumFrames: 10}
	e := launch(t, program(
		0x7001,
		0x7001,
		0x7001,
		0x7001,
	), out, false)

	e.Step()
	e.Step()
	if !e.IsPaused() {
		t.Fatalf("Step should pause the emulator")
	}

	if err := run(t, e); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	st := out.Last()
	if st.V[0] != 2 {
		t.Errorf("V0 = %d, want 2", st.V[0])
	}
	if st.PC != 0x204 {
		t.Errorf("PC = %#x, want 0x204", st.PC)
	}
}

func TestPauseFromFrontend(t *testing.T) {
	out := &TestingOutput{
		NumFrames: 5,
		OnPoll: func(ctl Controls, frame int) {
			if frame == 0 {
				ctl.TogglePause()
			}
		},
	}
	// Increment V0 forever.
	e := launch(t, program(0x7001, 0x1200), out, false)

	if err := run(t, e); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !e.IsPaused() {
		t.Fatalf("emulator should be paused")
	}

	// The pause request may be seen after a few instructions, but not
	// after the first presented frame.
	if first, last := out.State(1).V[0], out.Last().V[0]; first != last {
		t.Errorf("V0 went from %d to %d while paused", first, last)
	}
}

func TestReset(t *testing.T) {
	e := launch(t, program(0x6042, 0x7001), &TestingOutput{}, false)

	e.m.Step()
	e.m.Step()

	e.Reset()
	if !e.handleReset() {
		t.Fatalf("handleReset() = false after Reset()")
	}
	if e.handleReset() {
		t.Fatalf("handleReset() = true, reset requests must be consumed")
	}

	var st hw.State
	e.m.Snapshot(&st)
	if st.PC != hw.ProgramStart || st.V[0] != 0 {
		t.Errorf("after reset: PC = %#x, V0 = %d, want %#x, 0", st.PC, st.V[0], hw.ProgramStart)
	}

	// The program is still there.
	e.m.Step()
	e.m.Snapshot(&st)
	if st.V[0] != 0x42 {
		t.Errorf("V0 = %#x, want 0x42", st.V[0])
	}
}

func TestSetSpeed(t *testing.T) {
	e := launch(t, nil, &TestingOutput{}, false)

	tests := []struct {
		ips  int
		want int
	}{
		{ips: 500, want: 500},
		{ips: 0, want: MinSpeed},
		{ips: -3, want: MinSpeed},
		{ips: 5000, want: MaxSpeed},
	}
	for _, tt := range tests {
		e.SetSpeed(tt.ips)
		if got := e.Speed(); got != tt.want {
			t.Errorf("SetSpeed(%d): Speed() = %d, want %d", tt.ips, got, tt.want)
		}
	}
}

func TestControlsFromFrontend(t *testing.T) {
	out := &TestingOutput{
		NumFrames: 3,
		OnPoll: func(ctl Controls, frame int) {
			if frame != 0 {
				return
			}
			SpeedDown(ctl)
			SpeedDown(ctl)
			ToggleShiftQuirk(ctl)
			ToggleLoadStoreQuirk(ctl)
			ToggleLoadStoreQuirk(ctl)
		},
	}
	// V1 = 3, V0 = V1 >> 1, loop.
	e := launch(t, program(0x6103, 0x8016, 0x1204), out, false)

	if err := run(t, e); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got, want := e.Speed(), MaxSpeed-2*SpeedStep; got != want {
		t.Errorf("Speed() = %d, want %d", got, want)
	}
	if diff := cmp.Diff(hw.Quirks{ShiftUsingVY: true}, e.Quirks()); diff != "" {
		t.Errorf("quirks mismatch (-want +got):\n%s", diff)
	}
}

func TestSpeedUpClamped(t *testing.T) {
	e := launch(t, nil, &TestingOutput{}, false)

	SpeedUp(e)
	if e.Speed() != MaxSpeed {
		t.Errorf("Speed() = %d, want %d", e.Speed(), MaxSpeed)
	}
	e.SetSpeed(MinSpeed)
	SpeedDown(e)
	if e.Speed() != MinSpeed {
		t.Errorf("Speed() = %d, want %d", e.Speed(), MinSpeed)
	}
}

func TestQuirkToggleAppliesToNextInstruction(t *testing.T) {
	// V1 = 0x10, V0 = 0x03, then two shifts of V0.
	e := launch(t, program(0x6110, 0x6003, 0x8016, 0x8016), &TestingOutput{}, false)

	e.m.Step()
	e.m.Step()
	e.m.Step() // V0 = 0x03 >> 1
	ToggleShiftQuirk(e)
	e.m.Step() // V0 = V1 >> 1

	var st hw.State
	e.m.Snapshot(&st)
	if st.V[0] != 0x08 {
		t.Errorf("V0 = %#x, want 0x08", st.V[0])
	}
}

func TestTogglePauseConcurrent(t *testing.T) {
	e := launch(t, nil, &TestingOutput{}, false)

	const n = 100 // even
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.TogglePause()
		}()
	}
	wg.Wait()

	if e.IsPaused() {
		t.Errorf("paused after %d toggles", n)
	}
}

func TestRunStopsDuringKeyWait(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		out := &TestingOutput{NumFrames: 5}
		e := launch(t, program(0xF00A), out, false)

		if err := run(t, e); err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		st := out.Last()
		if st.PC != hw.ProgramStart {
			t.Errorf("PC = %#x, want %#x", st.PC, hw.ProgramStart)
		}
		if !e.m.Waiting() {
			t.Errorf("machine should be waiting for a key")
		}
	})

	t.Run("cancel", func(t *testing.T) {
		out := &TestingOutput{NumFrames: 1 << 30}
		e := launch(t, program(0xF00A), out, false)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run() didn't return after cancellation")
		}
		if !out.closed {
			t.Errorf("frontend not closed")
		}
	})
}

func TestRunWithAudio(t *testing.T) {
	// Make sure no real device is opened.
	t.Setenv("SDL_AUDIODRIVER", "chimp-none")

	cfg := DefaultConfig()
	cfg.Emulation.InstructionsPerSecond = MaxSpeed
	cfg.WAVPath = filepath.Join(t.TempDir(), "out.wav")

	out := &TestingOutput{NumFrames: 30}
	e := launchConfig(t, program(
		0x600A, // V0 = 10
		0xF018, // ST = V0
		0x1204, // loop
	), out, cfg)
	if _, ok := e.sink.(*audio.NullSink); !ok {
		t.Fatalf("sink = %T, want *audio.NullSink", e.sink)
	}

	if err := run(t, e); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	sounded := false
	for _, st := range out.states {
		sounded = sounded || st.ST > 0
	}
	if !sounded {
		t.Errorf("sound timer never ran")
	}
	if st := out.Last(); st.ST != 0 {
		t.Errorf("ST = %d, want 0", st.ST)
	}
	if e.tone.RunningSampleIndex() == 0 {
		t.Errorf("no audio generated")
	}
	if fi, err := os.Stat(cfg.WAVPath); err != nil || fi.Size() <= 44 {
		t.Errorf("wav file not recorded: %v", err)
	}
}

func TestConfigSaveLoad(t *testing.T) {
	log.Disable()
	path := filepath.Join(t.TempDir(), "config.toml")

	want := DefaultConfig()
	want.Emulation.InstructionsPerSecond = 700
	want.Emulation.Quirks.ShiftUsingVY = true
	want.Emulation.StrictStack = true
	want.Audio.BandLimited = true
	want.Video.Scale = 4
	want.Input.Keys[3] = input.Code{}

	if err := SaveConfig(want, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	log.Disable()
	path := filepath.Join(t.TempDir(), "config.toml")

	const content = `
[emulation]
instructions_per_second = 5000

[emulation.quirks]
increment_i_on_load_store = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := DefaultConfig()
	want.Emulation.InstructionsPerSecond = MaxSpeed
	want.Emulation.Quirks.IncrementIOnLoadStore = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig() error = %v, want not exist", err)
	}
}
