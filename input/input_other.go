//go:build !linux && !windows

package input

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// Without uinput we drive the host through robotgo. Sync barriers are no-ops
// there; Device still keeps gestures from interleaving.

var buttonNames = map[Code]string{
	BtnLeft:   "left",
	BtnRight:  "right",
	BtnMiddle: "center",
}

var keyNames = map[Code]string{
	KeyArrowUp:    "up",
	KeyArrowDown:  "down",
	KeyArrowLeft:  "left",
	KeyArrowRight: "right",
	KeyLeftAlt:    "alt",
}

type robotgoBackend struct{}

func openBackend(Config) (Backend, error) {
	return robotgoBackend{}, nil
}

func (robotgoBackend) Write(g Gesture) error {
	for _, a := range g {
		if err := apply(a); err != nil {
			return &DeviceError{Op: "write " + a.Kind.String(), Err: err}
		}
	}
	return nil
}

func (robotgoBackend) Close() error { return nil }

func apply(a Action) error {
	switch a.Kind {
	case ActMove:
		robotgo.MoveRelative(int(a.X), int(a.Y))
	case ActWheel, ActHWheel:
		x, y := scrollArgs(a, runtime.GOOS)
		robotgo.Scroll(x, y)
	case ActKeyDown:
		return toggle(a.Code, "down")
	case ActKeyUp:
		return toggle(a.Code, "up")
	case ActSync:
	}
	return nil
}

// pixelsPerNotch converts wheel notches for macOS, where robotgo scrolls in
// pixels. X11 scrolls one button click per unit.
const pixelsPerNotch = 10

// scrollArgs maps a wheel action onto robotgo.Scroll(x, y). robotgo is
// positive-up on y like REL_WHEEL, but positive x scrolls left while
// REL_HWHEEL is positive-right.
func scrollArgs(a Action, goos string) (x, y int) {
	k := 1
	if goos == "darwin" {
		k = pixelsPerNotch
	}
	if a.Kind == ActHWheel {
		return -int(a.Value) * k, 0
	}
	return 0, int(a.Value) * k
}

func toggle(c Code, dir string) error {
	if name, ok := buttonNames[c]; ok {
		return robotgo.Toggle(name, dir)
	}
	if name, ok := keyNames[c]; ok {
		return robotgo.KeyToggle(name, dir)
	}
	return fmt.Errorf("unsupported code %d", c)
}
