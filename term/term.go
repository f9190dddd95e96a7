// Package term is a text frontend, drawing the display with Unicode half
// blocks and reading the keypad from the terminal keyboard.
package term

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"

	"chimp/emu"
	"chimp/emu/log"
	"chimp/hw"
	"chimp/hw/input"
)

var ErrNotTerminal = errors.New("standard input is not a terminal")

// Terminals only report key presses. A keypad key is considered held until
// no repeat has been received for holdDuration.
const holdDuration = 150 * time.Millisecond

// Screen dimensions, in characters. Each character shows 2 pixels stacked
// vertically, then come 2 status lines.
const (
	screenCols = hw.DisplayWidth
	screenRows = hw.DisplayHeight/2 + 2
)

const (
	escHome       = "\x1b[H"
	escClear      = "\x1b[2J"
	escHideCursor = "\x1b[?25l"
	escShowCursor = "\x1b[?25h"
)

type Terminal struct {
	in    *os.File
	out   io.Writer
	saved unix.Termios

	runes chan rune
	now   func() time.Time

	key      uint8
	releases time.Time
	paused   bool

	buf bytes.Buffer
}

// Open puts the in terminal in cbreak mode, without echo, and prepares out
// for drawing.
func Open(in, out *os.File) (*Terminal, error) {
	if !xterm.IsTerminal(int(in.Fd())) {
		return nil, ErrNotTerminal
	}
	if w, h, err := xterm.GetSize(int(out.Fd())); err == nil && (w < screenCols || h < screenRows) {
		log.ModVideo.WarnZ("Terminal too small").
			Int("cols", w).
			Int("rows", h).
			Int("want_cols", screenCols).
			Int("want_rows", screenRows).
			End()
	}

	t := newTerminal(out)
	t.in = in
	if err := termios.Tcgetattr(in.Fd(), &t.saved); err != nil {
		return nil, fmt.Errorf("failed to get terminal attributes: %w", err)
	}
	attr := t.saved
	attr.Lflag &^= unix.ICANON | unix.ECHO
	if err := termios.Tcsetattr(in.Fd(), termios.TCSANOW, &attr); err != nil {
		return nil, fmt.Errorf("failed to set terminal attributes: %w", err)
	}

	go t.read(in)

	io.WriteString(out, escHideCursor+escClear)
	return t, nil
}

func newTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:   out,
		runes: make(chan rune, 64),
		now:   time.Now,
		key:   hw.NoKey,
	}
}

func (t *Terminal) read(r io.Reader) {
	defer close(t.runes)

	br := bufio.NewReader(r)
	for {
		c, _, err := br.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.ModInput.WarnZ("Terminal read failed").Error("err", err).End()
			}
			return
		}
		t.runes <- c
	}
}

// Poll handles typed characters. Hexadecimal digits press keypad keys, p
// toggles pause, s executes a single instruction, g resumes, r resets and q
// quits. + and - change the speed, v and i toggle the shift and load/store
// quirks.
func (t *Terminal) Poll(ctl emu.Controls) bool {
drain:
	for {
		select {
		case r, ok := <-t.runes:
			if !ok || !t.handle(ctl, r) {
				return false
			}
		default:
			break drain
		}
	}

	if t.key != hw.NoKey && !t.now().Before(t.releases) {
		t.key = hw.NoKey
	}
	ctl.SetKey(t.key)
	return true
}

func (t *Terminal) handle(ctl emu.Controls, r rune) bool {
	if k, ok := input.RuneKey(r); ok {
		t.key = k
		t.releases = t.now().Add(holdDuration)
		return true
	}

	switch r {
	case 'p', 'P':
		t.paused = !t.paused
		ctl.TogglePause()
	case 's', 'S':
		t.paused = true
		ctl.Step()
	case 'g', 'G':
		t.paused = false
		ctl.Resume()
	case 'r', 'R':
		ctl.Reset()
	case '+', '=':
		emu.SpeedUp(ctl)
	case '-', '_':
		emu.SpeedDown(ctl)
	case 'v', 'V':
		emu.ToggleShiftQuirk(ctl)
	case 'i', 'I':
		emu.ToggleLoadStoreQuirk(ctl)
	case 'q', 'Q':
		return false
	}
	return true
}

// Present draws s.
func (t *Terminal) Present(s *hw.State) {
	t.buf.Reset()
	t.buf.WriteString(escHome)
	render(&t.buf, s, t.paused)
	if _, err := t.out.Write(t.buf.Bytes()); err != nil {
		log.ModVideo.WarnZ("Terminal write failed").Error("err", err).End()
	}
}

// Indexed by (lower pixel << 1) | upper pixel.
var halfBlocks = [4]rune{' ', '▀', '▄', '█'}

func render(buf *bytes.Buffer, s *hw.State, paused bool) {
	for row := 0; row < hw.DisplayHeight; row += 2 {
		for x := range hw.DisplayWidth {
			var idx int
			if s.Display.IsOn(x, row) {
				idx |= 1
			}
			if s.Display.IsOn(x, row+1) {
				idx |= 2
			}
			buf.WriteRune(halfBlocks[idx])
		}
		buf.WriteByte('\n')
	}

	fmt.Fprintf(buf, "PC %04X  I %04X  SP %X  DT %02X  ST %02X", s.PC, s.I, s.SP, s.DT, s.ST)
	switch {
	case s.Err != nil:
		fmt.Fprintf(buf, "  HALTED: %v", s.Err)
	case paused:
		buf.WriteString("  PAUSED")
	}
	buf.WriteString("\x1b[K\n")

	for i, v := range s.V {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(buf, "%02X", v)
	}
	buf.WriteString("\x1b[K\n")
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	io.WriteString(t.out, escShowCursor)
	if t.in == nil {
		return nil
	}
	return termios.Tcsetattr(t.in.Fd(), termios.TCSANOW, &t.saved)
}
