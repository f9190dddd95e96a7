package hw

import (
	"context"
	"time"

	"chimp/emu/log"
)

// TimerHz is the rate at which the delay and sound timers count down.
const TimerHz = 60

// A ToneGenerator produces one timer period worth of audio, either a tone
// or silence.
type ToneGenerator interface {
	Generate(playNote bool) int
}

// TimerDriver counts the machine timers down at TimerHz, independently of
// the instruction rate, and keeps the tone generator in sync with the sound
// timer.
type TimerDriver struct {
	m    *Machine
	tone ToneGenerator // may be nil
}

func NewTimerDriver(m *Machine, tone ToneGenerator) *TimerDriver {
	return &TimerDriver{m: m, tone: tone}
}

// Tick performs one timer period.
func (td *TimerDriver) Tick() {
	play := td.m.TickTimers()
	if td.tone != nil {
		td.tone.Generate(play)
	}
}

// Run calls Tick at TimerHz until ctx is done. It is meant for frontends not
// already paced by the display refresh.
func (td *TimerDriver) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / TimerHz)
	defer ticker.Stop()

	log.ModTimer.DebugZ("Timer driver started").Duration("period", time.Second/TimerHz).End()
	for {
		select {
		case <-ctx.Done():
			log.ModTimer.DebugZ("Timer driver stopped").End()
			return nil
		case <-ticker.C:
			td.Tick()
		}
	}
}
