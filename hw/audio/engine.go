// Package audio implements the CHIP-8 tone generator: a square wave written
// into a ring buffer by the timer driver and pulled by the audio device.
package audio

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"chimp/emu/log"
)

// Samples are signed 16-bit little endian.
const BytesPerSample = 2

// Spec describes the generated stream.
type Spec struct {
	Freq     int   // sample rate in Hz
	Channels int   // 1 or 2, stereo duplicates samples
	ToneHz   int   // square wave frequency
	Volume   int16 // high level of the square wave
	Silence  int16 // low level, and value of silence
	Samples  int   // ring buffer capacity, in sample frames

	BandLimited bool // synthesize through a band-limited step buffer
}

// DefaultSpec is a 440Hz tone, mono 48kHz, with a ring buffer holding a
// 60th of a second.
var DefaultSpec = Spec{
	Freq:     48000,
	Channels: 1,
	ToneHz:   440,
	Volume:   3000,
	Silence:  0,
	Samples:  48000 / 60,
}

// HalfPeriod returns the number of samples per half square wave period.
func (s Spec) HalfPeriod() int { return (s.Freq / s.ToneHz) / 2 }

// FrameSize returns the size in bytes of one sample frame (all channels).
func (s Spec) FrameSize() int { return BytesPerSample * s.Channels }

// BytesPerSecond returns the stream byte rate.
func (s Spec) BytesPerSecond() int { return s.Freq * s.FrameSize() }

// Engine is a ring buffer of generated audio. Generate (the producer) and
// Read (the consumer) can be called from different goroutines.
type Engine struct {
	mu sync.Mutex

	spec   Spec
	data   []byte
	play   int // read cursor
	write  int // write cursor
	length int // queued bytes

	runningSampleIndex uint64
	underruns          int

	samples []int16
	blip    *bandLimited // nil for the exact square wave
}

// NewEngine creates an engine generating the audio described by spec.
func NewEngine(spec Spec) *Engine {
	if spec.Channels < 1 {
		spec.Channels = 1
	}
	e := &Engine{
		spec:    spec,
		data:    make([]byte, spec.Samples*spec.FrameSize()),
		samples: make([]int16, spec.Samples),
	}
	if spec.BandLimited {
		e.blip = newBandLimited(spec)
	}
	return e
}

func (e *Engine) Spec() Spec { return e.spec }

// Generate fills the free space of the ring buffer with either the tone, if
// playNote is true, or silence. It returns the number of bytes written.
func (e *Engine) Generate(playNote bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	fsz := e.spec.FrameSize()
	nframes := (len(e.data) - e.length) / fsz
	if nframes == 0 {
		return 0
	}

	samples := e.samples[:nframes]
	if e.blip != nil {
		e.blip.synth(samples, playNote)
		e.runningSampleIndex += uint64(nframes)
	} else {
		e.squareWave(samples, playNote)
	}

	for _, s := range samples {
		for range e.spec.Channels {
			binary.LittleEndian.PutUint16(e.data[e.write:], uint16(s))
			e.write = (e.write + BytesPerSample) % len(e.data)
		}
	}

	n := nframes * fsz
	e.length += n
	return n
}

func (e *Engine) squareWave(samples []int16, playNote bool) {
	half := uint64(e.spec.HalfPeriod())
	for i := range samples {
		s := e.spec.Silence
		if playNote && (e.runningSampleIndex/half)%2 == 1 {
			s = e.spec.Volume
		}
		samples[i] = s
		e.runningSampleIndex++
	}
}

// Read copies exactly len(p) bytes from the ring buffer into p, wrapping at
// the buffer end. If less than len(p) bytes are queued, the rest of p is
// filled with silence. Read never fails.
func (e *Engine) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := min(len(p), e.length)
	first := min(n, len(e.data)-e.play)
	copy(p, e.data[e.play:e.play+first])
	copy(p[first:n], e.data[:n-first])

	e.play = (e.play + n) % len(e.data)
	e.length -= n

	if n < len(p) {
		e.fillSilence(p[n:])
		e.underruns++
		log.ModSound.DebugZ("Audio underrun").Int("missing", len(p)-n).End()
	}
	return len(p), nil
}

func (e *Engine) fillSilence(p []byte) {
	for len(p) >= BytesPerSample {
		binary.LittleEndian.PutUint16(p, uint16(e.spec.Silence))
		p = p[BytesPerSample:]
	}
	clear(p)
}

// Pending returns the number of queued bytes not yet read.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.length
}

// Underruns returns how many reads found less data than requested.
func (e *Engine) Underruns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.underruns
}

// RunningSampleIndex returns the number of sample frames generated so far.
func (e *Engine) RunningSampleIndex() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runningSampleIndex
}

// WaitDrained blocks until all queued bytes have been read, or ctx is done.
func (e *Engine) WaitDrained(ctx context.Context) error {
	for e.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}
