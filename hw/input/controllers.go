package input

import (
	"github.com/veandco/go-sdl2/sdl"

	"chimp/emu/log"
)

// Controllers keeps track of the plugged game controllers. Must be used from
// the SDL thread, and kept in sync with device events through Update.
type Controllers struct {
	byGUID map[string]*sdl.GameController
	byID   map[sdl.JoystickID]*sdl.GameController
}

// OpenControllers opens all game controllers currently plugged.
func OpenControllers() *Controllers {
	gcs := &Controllers{
		byGUID: make(map[string]*sdl.GameController),
		byID:   make(map[sdl.JoystickID]*sdl.GameController),
	}
	for i := range sdl.NumJoysticks() {
		if sdl.IsGameController(i) {
			gcs.open(i)
		}
	}
	return gcs
}

func (gcs *Controllers) open(idx int) {
	c := sdl.GameControllerOpen(idx)
	if c == nil {
		return
	}
	joy := c.Joystick()
	guid := sdl.JoystickGetGUIDString(joy.GUID())
	gcs.byGUID[guid] = c
	gcs.byID[joy.InstanceID()] = c

	log.ModInput.DebugZ("Controller plugged").
		String("name", c.Name()).
		String("guid", guid).
		End()
}

// Update handles controller hotplug.
func (gcs *Controllers) Update(e sdl.ControllerDeviceEvent) {
	switch e.Type {
	case sdl.CONTROLLERDEVICEADDED:
		gcs.open(int(e.Which))
	case sdl.CONTROLLERDEVICEREMOVED:
		c, ok := gcs.byID[e.Which]
		if !ok {
			return
		}
		guid := sdl.JoystickGetGUIDString(c.Joystick().GUID())
		delete(gcs.byID, e.Which)
		delete(gcs.byGUID, guid)
		c.Close()

		log.ModInput.DebugZ("Controller unplugged").String("guid", guid).End()
	}
}

// GUID returns the GUID of the controller with the given instance id.
func (gcs *Controllers) GUID(id sdl.JoystickID) (string, bool) {
	c, ok := gcs.byID[id]
	if !ok {
		return "", false
	}
	return sdl.JoystickGetGUIDString(c.Joystick().GUID()), true
}

// Button reports whether the given button of the controller identified by
// guid is pressed.
func (gcs *Controllers) Button(guid string, btn sdl.GameControllerButton) bool {
	c, ok := gcs.byGUID[guid]
	return ok && c.Button(btn) != 0
}

func (gcs *Controllers) Close() {
	for id, c := range gcs.byID {
		c.Close()
		delete(gcs.byID, id)
	}
	clear(gcs.byGUID)
}
