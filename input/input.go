// Package input owns the virtual pointer/keyboard device the host sees. All
// writes go through Device.Emit, which serialises whole gestures so that no
// two callers ever interleave their actions. Each platform provides its
// backend in a separate file guarded by build tags.
package input

import (
	"errors"
	"fmt"
	"sync"
)

// Code is a Linux input event code (KEY_* or BTN_*). Other backends map
// these to their own names.
type Code uint16

const (
	KeyLeftAlt    Code = 56
	KeyArrowUp    Code = 103
	KeyArrowLeft  Code = 105
	KeyArrowRight Code = 106
	KeyArrowDown  Code = 108
	BtnLeft       Code = 0x110
	BtnRight      Code = 0x111
	BtnMiddle     Code = 0x112
)

// Capabilities lists every key code the device declares at construction.
var Capabilities = []Code{BtnLeft, BtnRight, BtnMiddle, KeyArrowUp, KeyArrowDown, KeyArrowLeft, KeyArrowRight, KeyLeftAlt}

// ActionKind tags an Action.
type ActionKind uint8

const (
	ActMove ActionKind = iota + 1
	ActWheel
	ActHWheel
	ActKeyDown
	ActKeyUp
	ActSync
)

func (k ActionKind) String() string {
	switch k {
	case ActMove:
		return "move"
	case ActWheel:
		return "wheel"
	case ActHWheel:
		return "hwheel"
	case ActKeyDown:
		return "key-down"
	case ActKeyUp:
		return "key-up"
	case ActSync:
		return "sync"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

// Action is one device write.
type Action struct {
	Kind  ActionKind
	X, Y  int32 // ActMove
	Value int32 // ActWheel, ActHWheel
	Code  Code  // ActKeyDown, ActKeyUp
}

func Move(dx, dy int32) Action { return Action{Kind: ActMove, X: dx, Y: dy} }
func Wheel(v int32) Action     { return Action{Kind: ActWheel, Value: v} }
func HWheel(v int32) Action    { return Action{Kind: ActHWheel, Value: v} }
func KeyDown(c Code) Action    { return Action{Kind: ActKeyDown, Code: c} }
func KeyUp(c Code) Action      { return Action{Kind: ActKeyUp, Code: c} }
func Sync() Action             { return Action{Kind: ActSync} }

// Gesture is an ordered run of actions the OS must observe as one update.
// A valid gesture ends with exactly one trailing Sync.
type Gesture []Action

// Terminated reports whether g ends with a sync barrier.
func (g Gesture) Terminated() bool {
	return len(g) > 0 && g[len(g)-1].Kind == ActSync
}

var (
	// ErrUnterminated is returned for a gesture without a trailing Sync.
	ErrUnterminated = errors.New("input: gesture not terminated by sync")
	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("input: device closed")
)

// DeviceError is an OS-level failure writing to or managing the device.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return "input: " + e.Op + ": " + e.Err.Error() }
func (e *DeviceError) Unwrap() error { return e.Err }

// Backend performs the platform writes. Device guarantees Write is never
// called concurrently.
type Backend interface {
	Write(g Gesture) error
	Close() error
}

const (
	DefaultName = "Mobile Trackpad Virtual Mouse"
	DefaultPath = "/dev/uinput"
)

// Config selects the device node and the name the host shows for it.
type Config struct {
	Name string
	Path string
}

// Device is the single owner of a Backend.
type Device struct {
	mu      sync.Mutex
	backend Backend
	closed  bool
}

// New wraps an already opened backend.
func New(b Backend) *Device {
	return &Device{backend: b}
}

// Open creates the platform virtual device. The returned error carries the
// OS cause, e.g. permission denied on /dev/uinput.
func Open(cfg Config) (*Device, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	b, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

// Emit writes gestures in order while holding the device exclusively. It
// validates every gesture before writing any of them and stops at the first
// failed write.
func (d *Device) Emit(gestures ...Gesture) error {
	for _, g := range gestures {
		if !g.Terminated() {
			return ErrUnterminated
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	for _, g := range gestures {
		if err := d.backend.Write(g); err != nil {
			var de *DeviceError
			if errors.As(err, &de) {
				return err
			}
			return &DeviceError{Op: "write", Err: err}
		}
	}
	return nil
}

// Close destroys the virtual device. Further Emit calls fail with ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.backend.Close(); err != nil {
		return &DeviceError{Op: "close", Err: err}
	}
	return nil
}
