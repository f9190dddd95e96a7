package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"chimp/emu/log"
)

// Recorder is an io.Writer saving a 16-bit PCM stream into a WAV file.
// Use Tee to record what the device plays.
type Recorder struct {
	f   *os.File
	enc *wav.Encoder
	buf goaudio.IntBuffer

	odd    []byte // pending half sample
	closed bool
}

// NewRecorder creates the WAV file at path.
func NewRecorder(path string, spec Spec) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav recorder: %w", err)
	}

	const pcm = 1
	return &Recorder{
		f:   f,
		enc: wav.NewEncoder(f, spec.Freq, 8*BytesPerSample, spec.Channels, pcm),
		buf: goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: spec.Channels,
				SampleRate:  spec.Freq,
			},
			SourceBitDepth: 8 * BytesPerSample,
		},
		odd: make([]byte, 0, 1),
	}, nil
}

func (r *Recorder) Write(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("wav recorder: write after close")
	}

	n := len(p)
	if len(r.odd) == 1 && len(p) > 0 {
		p = append([]byte{r.odd[0]}, p...)
		r.odd = r.odd[:0]
	}

	r.buf.Data = r.buf.Data[:0]
	for len(p) >= BytesPerSample {
		r.buf.Data = append(r.buf.Data, int(int16(binary.LittleEndian.Uint16(p))))
		p = p[BytesPerSample:]
	}
	if len(p) == 1 {
		r.odd = append(r.odd, p[0])
	}

	if len(r.buf.Data) == 0 {
		return n, nil
	}
	if err := r.enc.Write(&r.buf); err != nil {
		return 0, fmt.Errorf("wav recorder: %w", err)
	}
	return n, nil
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.enc.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Tee returns a reader that records all it reads from src. The first failed
// write stops the recording, reading goes on.
func (r *Recorder) Tee(src io.Reader) io.Reader {
	return &recordingReader{src: src, rec: r}
}

type recordingReader struct {
	src    io.Reader
	rec    *Recorder
	failed bool
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.src.Read(p)
	if n > 0 && !rr.failed {
		if _, werr := rr.rec.Write(p[:n]); werr != nil {
			log.ModSound.WarnZ("WAV recording stopped").Error("err", werr).End()
			rr.failed = true
		}
	}
	return n, err
}
