package audio

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"chimp/emu/log"
)

// Device is a SDL audio output device fed through its queue.
type Device struct {
	id       sdl.AudioDeviceID
	obtained sdl.AudioSpec
	target   int // queued bytes to maintain
}

// OpenDevice opens the default SDL audio output for the given stream.
func OpenDevice(spec Spec) (*Device, error) {
	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("failed to initialize SDL audio: %s", err)
	}

	desired := sdl.AudioSpec{
		Freq:     int32(spec.Freq),
		Format:   sdl.AUDIO_S16LSB,
		Channels: uint8(spec.Channels),
		Samples:  uint16(spec.Samples),
	}

	dev := &Device{}
	id, err := sdl.OpenAudioDevice("", false, &desired, &dev.obtained, 0)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_AUDIO)
		return nil, fmt.Errorf("failed to open audio device: %s", err)
	}
	dev.id = id

	// Keep two device buffers queued.
	dev.target = 2 * int(dev.obtained.Samples) * spec.FrameSize()

	log.ModSound.InfoZ("Audio device opened").
		Int("freq", int(dev.obtained.Freq)).
		Int("channels", int(dev.obtained.Channels)).
		Int("samples", int(dev.obtained.Samples)).
		End()

	sdl.PauseAudioDevice(id, false)
	return dev, nil
}

func (d *Device) Need() int {
	return d.target - int(sdl.GetQueuedAudioSize(d.id))
}

func (d *Device) Queue(p []byte) error {
	return sdl.QueueAudio(d.id, p)
}

func (d *Device) Close() error {
	sdl.PauseAudioDevice(d.id, true)
	sdl.ClearQueuedAudio(d.id)
	sdl.CloseAudioDevice(d.id)
	sdl.QuitSubSystem(sdl.INIT_AUDIO)
	return nil
}
