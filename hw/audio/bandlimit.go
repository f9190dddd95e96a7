package audio

import (
	"github.com/arl/blip"
)

// oversampling of the blip clock relative to the sample rate, so that
// square wave edges land on sub-sample positions.
const oversampling = 64

// bandLimited synthesizes the square wave as amplitude steps placed at their
// exact time, resampled by a band-limited step buffer.
type bandLimited struct {
	buf *blip.Buffer

	halfPeriod float64 // in blip clocks
	nextEdge   float64 // in blip clocks, relative to the current frame
	high       bool    // square wave phase, tracked even when silent
	amp        int32   // current output amplitude

	volume, silence int32
	last            int16
}

func newBandLimited(spec Spec) *bandLimited {
	clockRate := float64(spec.Freq * oversampling)

	buf := blip.NewBuffer(spec.Samples)
	buf.SetRates(clockRate, float64(spec.Freq))

	hp := clockRate / float64(2*spec.ToneHz)
	return &bandLimited{
		buf:        buf,
		halfPeriod: hp,
		nextEdge:   hp,
		volume:     int32(spec.Volume),
		silence:    int32(spec.Silence),
		amp:        0,
	}
}

func (bl *bandLimited) level(play bool) int32 {
	if play && bl.high {
		return bl.volume
	}
	return bl.silence
}

func (bl *bandLimited) step(time uint64, play bool) {
	if to := bl.level(play); to != bl.amp {
		bl.buf.AddDelta(time, to-bl.amp)
		bl.amp = to
	}
}

// synth fills out with len(out) band-limited samples.
func (bl *bandLimited) synth(out []int16, play bool) {
	clocks := bl.buf.ClocksNeeded(len(out))

	// Catch up with a play/silence transition.
	bl.step(0, play)

	for bl.nextEdge < float64(clocks) {
		bl.high = !bl.high
		bl.step(uint64(bl.nextEdge), play)
		bl.nextEdge += bl.halfPeriod
	}
	bl.nextEdge -= float64(clocks)

	bl.buf.EndFrame(clocks)
	n := bl.buf.ReadSamples(out, len(out), blip.Mono)
	if n > 0 {
		bl.last = out[n-1]
	}
	for i := n; i < len(out); i++ {
		out[i] = bl.last
	}
}
