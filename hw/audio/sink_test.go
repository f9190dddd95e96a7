package audio

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNullSinkRate(t *testing.T) {
	spec := DefaultSpec
	ns := NewNullSink(spec)

	now := ns.start
	ns.now = func() time.Time { return now }

	if n := ns.Need(); n != 0 {
		t.Fatalf("Need() = %d at start, want 0", n)
	}

	now = now.Add(100 * time.Millisecond)
	want := spec.BytesPerSecond() / 10
	if n := ns.Need(); n != want {
		t.Fatalf("Need() = %d, want %d", n, want)
	}

	ns.Queue(make([]byte, want))
	if n := ns.Need(); n != 0 {
		t.Fatalf("Need() = %d after queuing, want 0", n)
	}
}

type fakeSink struct {
	mu     sync.Mutex
	need   int
	queued int
}

func (fs *fakeSink) Need() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.need - fs.queued
}

func (fs *fakeSink) Queue(p []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.queued += len(p)
	return nil
}

func (fs *fakeSink) Close() error { return nil }

func (fs *fakeSink) total() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.queued
}

func TestPumpDrainsEngine(t *testing.T) {
	spec := testSpec(2)
	e := NewEngine(spec)
	e.Generate(true)

	// 3 extra bytes must be left alone, not a whole frame.
	sink := &fakeSink{need: e.Pending() + 3}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- Pump(ctx, e, sink, spec, time.Millisecond) }()

	if err := e.WaitDrained(context.Background()); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Pump() = %v", err)
	}

	if got, want := sink.total(), spec.Samples*spec.FrameSize(); got != want {
		t.Errorf("sink got %d bytes, want %d", got, want)
	}
}
