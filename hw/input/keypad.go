// Package input maps host keyboard keys and game controller buttons to the
// 16-key hexadecimal keypad.
package input

import (
	"github.com/veandco/go-sdl2/sdl"

	"chimp/hw"
)

// NumKeys is the number of keypad keys, 0x0 to 0xF.
const NumKeys = 16

// Config holds the host input bound to each keypad key.
type Config struct {
	Keys [NumKeys]Code `toml:"keys"`
}

// DefaultConfig binds each keypad key to the keyboard key with the same
// hexadecimal digit.
func DefaultConfig() Config {
	return Config{
		Keys: [NumKeys]Code{
			Key(sdl.SCANCODE_0), Key(sdl.SCANCODE_1), Key(sdl.SCANCODE_2), Key(sdl.SCANCODE_3),
			Key(sdl.SCANCODE_4), Key(sdl.SCANCODE_5), Key(sdl.SCANCODE_6), Key(sdl.SCANCODE_7),
			Key(sdl.SCANCODE_8), Key(sdl.SCANCODE_9), Key(sdl.SCANCODE_A), Key(sdl.SCANCODE_B),
			Key(sdl.SCANCODE_C), Key(sdl.SCANCODE_D), Key(sdl.SCANCODE_E), Key(sdl.SCANCODE_F),
		},
	}
}

// Provider reads the keypad state from SDL. Its methods must be called from
// the SDL thread.
type Provider struct {
	cfg      Config
	keystate []uint8
	ctrls    *Controllers
}

func NewProvider(cfg Config, ctrls *Controllers) *Provider {
	return &Provider{
		cfg:      cfg,
		keystate: sdl.GetKeyboardState(),
		ctrls:    ctrls,
	}
}

func (p *Provider) isPressed(c Code) bool {
	switch c.Type {
	case Keyboard:
		return int(c.Scancode) < len(p.keystate) && p.keystate[c.Scancode] != 0
	case ControllerButton:
		return p.ctrls != nil && p.ctrls.Button(c.CtrlGUID, c.CtrlButton)
	}
	return false
}

// Pressed returns the lowest keypad key currently held, or hw.NoKey.
func (p *Provider) Pressed() uint8 {
	for k, code := range p.cfg.Keys {
		if p.isPressed(code) {
			return uint8(k)
		}
	}
	return hw.NoKey
}

// RuneKey maps a typed character to a keypad key: 0-9, a-f and A-F.
func RuneKey(r rune) (uint8, bool) {
	switch {
	case r >= '0' && r <= '9':
		return uint8(r - '0'), true
	case r >= 'a' && r <= 'f':
		return uint8(r-'a') + 0xA, true
	case r >= 'A' && r <= 'F':
		return uint8(r-'A') + 0xA, true
	}
	return hw.NoKey, false
}
