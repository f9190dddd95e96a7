package input

import (
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// Capture opens a small window and waits for the next key or controller
// button press, returning the Code identifying it. The returned code is unset
// if the user pressed Escape or closed the window. Must be called from within
// sdl.Main.
func Capture(key uint8) (Code, error) {
	var (
		code Code
		err  error
	)
	sdl.Do(func() {
		code, err = capture(key)
	})
	return code, err
}

func capture(key uint8) (Code, error) {
	var code Code

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_GAMECONTROLLER); err != nil {
		return code, fmt.Errorf("failed to initialize SDL: %s", err)
	}
	defer sdl.Quit()

	title := fmt.Sprintf("Press key or button for keypad %X (Escape to unset)", key)
	win, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		480, 120, sdl.WINDOW_SHOWN)
	if err != nil {
		return code, fmt.Errorf("failed to create window: %s", err)
	}
	defer win.Destroy()

	renderer, err := sdl.CreateRenderer(win, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return code, fmt.Errorf("failed to create renderer: %s", err)
	}
	defer renderer.Destroy()

	ctrls := OpenControllers()
	defer ctrls.Close()

	// Drop events generated before the window showed up, like the release
	// of the key which started the program.
	drainEvents(200 * time.Millisecond)

	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case sdl.QuitEvent:
				return code, nil

			case sdl.KeyboardEvent:
				if e.State != sdl.PRESSED {
					break
				}
				if e.Keysym.Scancode != sdl.SCANCODE_ESCAPE {
					code = Key(e.Keysym.Scancode)
				}
				return code, nil

			case sdl.ControllerDeviceEvent:
				ctrls.Update(e)

			case sdl.ControllerButtonEvent:
				if e.Type != sdl.CONTROLLERBUTTONDOWN {
					break
				}
				guid, ok := ctrls.GUID(e.Which)
				if !ok {
					return code, fmt.Errorf("controller %d not found", e.Which)
				}
				code.Type = ControllerButton
				code.CtrlButton = sdl.GameControllerButton(e.Button)
				code.CtrlGUID = guid
				return code, nil
			}
		}

		renderer.SetDrawColor(0x0a, 0x0a, 0x0a, 0xff)
		renderer.Clear()
		renderer.Present()
		sdl.Delay(16)
	}
}

// drainEvents empties the event queue. Since some controller axes are noisy,
// it gives up after maxwait.
func drainEvents(maxwait time.Duration) {
	deadline := time.Now().Add(maxwait)
	for sdl.PollEvent() != nil {
		if time.Now().After(deadline) {
			break
		}
	}
}
