package input

import (
	"fmt"
	"strings"

	"github.com/veandco/go-sdl2/sdl"
)

type ControlType uint8

const (
	Unset ControlType = iota
	Keyboard
	ControllerButton
)

func (t ControlType) String() string {
	switch t {
	case Keyboard:
		return "key"
	case ControllerButton:
		return "joy button"
	}
	return "not set"
}

// A Code identifies a keyboard key or a game controller button.
type Code struct {
	Type ControlType

	Scancode sdl.Scancode

	CtrlGUID   string
	CtrlButton sdl.GameControllerButton
}

// Key returns the code of a keyboard key.
func Key(sc sdl.Scancode) Code {
	return Code{Type: Keyboard, Scancode: sc}
}

// Name returns an user-friendly name for the input code.
func (c Code) Name() string {
	switch c.Type {
	case Keyboard:
		return sdl.GetScancodeName(c.Scancode)
	case ControllerButton:
		return sdl.GameControllerGetStringForButton(c.CtrlButton)
	}
	return ""
}

func (c Code) MarshalText() ([]byte, error) {
	switch c.Type {
	case Keyboard:
		return fmt.Appendf(nil, "key %s", c.Name()), nil
	case ControllerButton:
		return fmt.Appendf(nil, "joybtn %s %s", c.Name(), c.CtrlGUID), nil
	}
	return nil, nil
}

func (c *Code) UnmarshalText(text []byte) error {
	s := string(text)
	kind, rest, _ := strings.Cut(s, " ")

	switch kind {
	case "":
		*c = Code{}

	case "key":
		// Scancode names can contain spaces ("Left Shift").
		name := strings.TrimSpace(rest)
		if name == "" {
			return fmt.Errorf("malformed key code: %q", s)
		}
		sc := sdl.GetScancodeFromName(name)
		if sc == sdl.SCANCODE_UNKNOWN {
			return fmt.Errorf("unrecognized scancode %q", name)
		}
		*c = Key(sc)

	case "joybtn":
		var name, guid string
		if _, err := fmt.Sscanf(rest, "%s %s", &name, &guid); err != nil {
			return fmt.Errorf("malformed joybtn code: %q", s)
		}
		btn := sdl.GameControllerGetButtonFromString(name)
		if btn == sdl.CONTROLLER_BUTTON_INVALID {
			return fmt.Errorf("unrecognized button %q", name)
		}
		*c = Code{Type: ControllerButton, CtrlButton: btn, CtrlGUID: guid}

	default:
		return fmt.Errorf("unrecognized input code: %q", s)
	}
	return nil
}
