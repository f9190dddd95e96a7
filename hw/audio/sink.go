package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"chimp/emu/log"
)

// A Sink consumes audio at its own pace, for example an audio device.
type Sink interface {
	// Need returns how many bytes the sink can accept right now.
	Need() int
	// Queue hands bytes over to the sink.
	Queue(p []byte) error
	Close() error
}

// Pump pulls from src, every period, the number of bytes sink needs, until
// ctx is done. Pulled amounts are rounded down to whole sample frames.
func Pump(ctx context.Context, src io.Reader, sink Sink, spec Spec, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	fsz := spec.FrameSize()
	buf := make([]byte, 0, spec.BytesPerSecond()/10)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n := sink.Need()
		n -= n % fsz
		if n <= 0 {
			continue
		}
		if n > cap(buf) {
			buf = make([]byte, 0, n)
		}

		p := buf[:n]
		if _, err := io.ReadFull(src, p); err != nil {
			return fmt.Errorf("audio source: %w", err)
		}
		if err := sink.Queue(p); err != nil {
			log.ModSound.WarnZ("Failed to queue audio").Error("err", err).End()
		}
	}
}

// NullSink is a sink discarding audio at the nominal byte rate of a stream,
// used when no audio device is available.
type NullSink struct {
	rate     int // bytes per second
	start    time.Time
	consumed int64

	now func() time.Time
}

func NewNullSink(spec Spec) *NullSink {
	return &NullSink{
		rate:  spec.BytesPerSecond(),
		start: time.Now(),
		now:   time.Now,
	}
}

func (ns *NullSink) Need() int {
	elapsed := ns.now().Sub(ns.start)
	due := int64(elapsed.Seconds() * float64(ns.rate))
	return int(max(0, due-ns.consumed))
}

func (ns *NullSink) Queue(p []byte) error {
	ns.consumed += int64(len(p))
	return nil
}

func (ns *NullSink) Close() error { return nil }
