package emu

import (
	"sync"

	"chimp/hw"
)

// TestingOutput is a headless frontend. It stops the emulator after a
// given number of presented frames.
type TestingOutput struct {
	mu sync.Mutex

	// NumFrames is the number of frames to present before quitting.
	NumFrames int
	// OnPoll, if set, is called on every poll with the number of frames
	// presented so far.
	OnPoll func(ctl Controls, frame int)

	states []hw.State
	closed bool
}

func (to *TestingOutput) Poll(ctl Controls) bool {
	to.mu.Lock()
	frame := len(to.states)
	to.mu.Unlock()

	if to.OnPoll != nil {
		to.OnPoll(ctl, frame)
	}
	return frame < to.NumFrames
}

func (to *TestingOutput) Present(s *hw.State) {
	to.mu.Lock()
	defer to.mu.Unlock()

	to.states = append(to.states, *s)
}

func (to *TestingOutput) Close() error {
	to.mu.Lock()
	defer to.mu.Unlock()

	to.closed = true
	return nil
}

// State returns the i-th presented state.
func (to *TestingOutput) State(i int) hw.State {
	to.mu.Lock()
	defer to.mu.Unlock()
	return to.states[i]
}

// Last returns the last presented state.
func (to *TestingOutput) Last() hw.State {
	to.mu.Lock()
	defer to.mu.Unlock()
	return to.states[len(to.states)-1]
}
