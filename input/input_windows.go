//go:build windows

package input

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	user32         = windows.NewLazySystemDLL("user32.dll")
	procMouseEvent = user32.NewProc("mouse_event")
	procKeybdEvent = user32.NewProc("keybd_event")
)

// Win32 constants
const (
	MOUSEEVENTF_MOVE       = 0x0001
	MOUSEEVENTF_LEFTDOWN   = 0x0002
	MOUSEEVENTF_LEFTUP     = 0x0004
	MOUSEEVENTF_RIGHTDOWN  = 0x0008
	MOUSEEVENTF_RIGHTUP    = 0x0010
	MOUSEEVENTF_MIDDLEDOWN = 0x0020
	MOUSEEVENTF_MIDDLEUP   = 0x0040
	MOUSEEVENTF_WHEEL      = 0x0800
	MOUSEEVENTF_HWHEEL     = 0x1000

	WHEEL_DELTA = 120

	KEYEVENTF_KEYUP = 0x0002

	VK_MENU  = 0x12 // ALT
	VK_LEFT  = 0x25
	VK_UP    = 0x26
	VK_RIGHT = 0x27
	VK_DOWN  = 0x28
)

var buttonFlags = map[Code][2]uint32{
	BtnLeft:   {MOUSEEVENTF_LEFTDOWN, MOUSEEVENTF_LEFTUP},
	BtnRight:  {MOUSEEVENTF_RIGHTDOWN, MOUSEEVENTF_RIGHTUP},
	BtnMiddle: {MOUSEEVENTF_MIDDLEDOWN, MOUSEEVENTF_MIDDLEUP},
}

var virtualKeys = map[Code]uint16{
	KeyLeftAlt:    VK_MENU,
	KeyArrowLeft:  VK_LEFT,
	KeyArrowUp:    VK_UP,
	KeyArrowRight: VK_RIGHT,
	KeyArrowDown:  VK_DOWN,
}

// winBackend injects input through user32. Windows has no device to create,
// so Config is ignored and Sync is a no-op.
type winBackend struct{}

func openBackend(Config) (Backend, error) {
	if err := user32.Load(); err != nil {
		return nil, &DeviceError{Op: "load user32", Err: err}
	}
	return winBackend{}, nil
}

func (winBackend) Write(g Gesture) error {
	for _, a := range g {
		call, err := win32Call(a)
		if err != nil {
			return &DeviceError{Op: "write " + a.Kind.String(), Err: err}
		}
		call.do()
	}
	return nil
}

func (winBackend) Close() error { return nil }

type win32Input struct {
	keyboard bool
	flags    uint32
	dx, dy   int32
	data     int32
	vk       uint16
}

func (in win32Input) do() {
	switch {
	case in.keyboard:
		procKeybdEvent.Call(uintptr(in.vk), 0, uintptr(in.flags), 0)
	case in.flags != 0:
		procMouseEvent.Call(uintptr(in.flags), uintptr(in.dx), uintptr(in.dy), uintptr(in.data), 0)
	}
}

// win32Call maps an action onto one mouse_event or keybd_event call. A zero
// value means nothing to send.
func win32Call(a Action) (win32Input, error) {
	switch a.Kind {
	case ActMove:
		return win32Input{flags: MOUSEEVENTF_MOVE, dx: a.X, dy: a.Y}, nil
	case ActWheel:
		// Positive is away from the user on both uinput and Win32.
		return win32Input{flags: MOUSEEVENTF_WHEEL, data: a.Value * WHEEL_DELTA}, nil
	case ActHWheel:
		return win32Input{flags: MOUSEEVENTF_HWHEEL, data: a.Value * WHEEL_DELTA}, nil
	case ActKeyDown, ActKeyUp:
		up := a.Kind == ActKeyUp
		if f, ok := buttonFlags[a.Code]; ok {
			if up {
				return win32Input{flags: f[1]}, nil
			}
			return win32Input{flags: f[0]}, nil
		}
		if vk, ok := virtualKeys[a.Code]; ok {
			in := win32Input{keyboard: true, vk: vk}
			if up {
				in.flags = KEYEVENTF_KEYUP
			}
			return in, nil
		}
		return win32Input{}, fmt.Errorf("unsupported code %d", a.Code)
	}
	return win32Input{}, nil
}
