// Package video shows the machine display in an OpenGL window and collects
// keypad input from the keyboard and game controllers.
package video

import (
	"github.com/veandco/go-sdl2/sdl"

	"chimp/emu"
	"chimp/emu/log"
	"chimp/hw"
	"chimp/hw/input"
)

type Config struct {
	Title        string
	Scale        int
	Monitor      int32
	DisableVSync bool
}

// Window is the SDL frontend. It must be created from within sdl.Main, all
// SDL calls are then forwarded to the main thread with sdl.Do.
type Window struct {
	gl    *glWindow
	keys  *input.Provider
	ctrls *input.Controllers

	pix []byte
}

func NewWindow(cfg Config, keys input.Config) (*Window, error) {
	w := &Window{
		pix: make([]byte, hw.DisplayWidth*hw.DisplayHeight*4),
	}

	var err error
	sdl.Do(func() {
		w.gl, err = newGLWindow(cfg.Title, hw.DisplayWidth, hw.DisplayHeight,
			cfg.Scale, cfg.Monitor, !cfg.DisableVSync)
		if err != nil {
			return
		}
		w.ctrls = input.OpenControllers()
		w.keys = input.NewProvider(keys, w.ctrls)
	})
	if err != nil {
		return nil, err
	}

	log.ModVideo.InfoZ("Window created").
		Int("scale", cfg.Scale).
		Bool("vsync", !cfg.DisableVSync).
		End()
	return w, nil
}

// Poll handles window events. Escape toggles pause, F2 resets, F6 executes a
// single instruction and F5 resumes. F3 and F4 slow down and speed up
// execution, F7 and F8 toggle the shift and load/store quirks. Keypad keys
// are then forwarded to ctl.
func (w *Window) Poll(ctl emu.Controls) bool {
	running := true
	sdl.Do(func() {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case sdl.QuitEvent:
				running = false
			case sdl.WindowEvent:
				if e.Event == sdl.WINDOWEVENT_CLOSE {
					running = false
				}
			case sdl.KeyboardEvent:
				if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
					break
				}
				switch e.Keysym.Scancode {
				case sdl.SCANCODE_ESCAPE:
					ctl.TogglePause()
				case sdl.SCANCODE_F2:
					ctl.Reset()
				case sdl.SCANCODE_F5:
					ctl.Resume()
				case sdl.SCANCODE_F6:
					ctl.Step()
				case sdl.SCANCODE_F3:
					emu.SpeedDown(ctl)
				case sdl.SCANCODE_F4:
					emu.SpeedUp(ctl)
				case sdl.SCANCODE_F7:
					emu.ToggleShiftQuirk(ctl)
				case sdl.SCANCODE_F8:
					emu.ToggleLoadStoreQuirk(ctl)
				}
			case sdl.ControllerDeviceEvent:
				w.ctrls.Update(e)
			}
		}
		ctl.SetKey(w.keys.Pressed())
	})
	return running
}

// Present draws the display of s.
func (w *Window) Present(s *hw.State) {
	s.Display.RGBA(w.pix)
	sdl.Do(func() {
		w.gl.render(w.pix)
	})
}

func (w *Window) Close() error {
	var err error
	sdl.Do(func() {
		w.ctrls.Close()
		err = w.gl.destroy()
	})
	return err
}
