package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode wraps every failure to turn an inbound frame into a RemoteEvent.
var ErrDecode = errors.New("decode remote event")

// RemoteEvent is one message from the touch surface. The set of variants is
// closed: only types in this package implement it.
type RemoteEvent interface {
	// Kind returns the wire tag of the variant.
	Kind() string
	isRemoteEvent()
}

// Button is a pointer button named by the client.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ParseButton maps a client string to a Button. Anything unknown is left.
func ParseButton(s string) Button {
	switch Button(s) {
	case ButtonRight:
		return ButtonRight
	case ButtonMiddle:
		return ButtonMiddle
	default:
		return ButtonLeft
	}
}

// Direction is the horizontal direction of a swipe.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	// DirectionUnknown is any value the client sent that is not left or right.
	DirectionUnknown Direction = ""
)

// ParseDirection returns DirectionUnknown for anything but left/right.
func ParseDirection(s string) Direction {
	switch Direction(s) {
	case DirectionLeft, DirectionRight:
		return Direction(s)
	default:
		return DirectionUnknown
	}
}

// Arrow is one of the four cursor keys.
type Arrow string

const (
	ArrowUp      Arrow = "up"
	ArrowDown    Arrow = "down"
	ArrowLeft    Arrow = "left"
	ArrowRight   Arrow = "right"
	ArrowUnknown Arrow = ""
)

// ParseArrow returns ArrowUnknown for anything outside up/down/left/right.
func ParseArrow(s string) Arrow {
	switch Arrow(s) {
	case ArrowUp, ArrowDown, ArrowLeft, ArrowRight:
		return Arrow(s)
	default:
		return ArrowUnknown
	}
}

// Wire tags.
const (
	KindMove      = "move"
	KindClick     = "click"
	KindScroll    = "scroll"
	KindDragStart = "drag_start"
	KindDragEnd   = "drag_end"
	KindSwipe     = "swipe"
	KindArrowKey  = "arrow_key"
	KindClipboard = "clipboard"
)

// Move is a relative pointer motion in sub-pixel units.
type Move struct{ DX, DY float64 }

// Click presses and releases one button.
type Click struct{ Button Button }

// Scroll carries raw two-finger deltas.
type Scroll struct{ DX, DY float64 }

// DragStart holds the left button until DragEnd.
type DragStart struct{}

// DragEnd releases the left button.
type DragEnd struct{}

// Swipe switches workspace/history by alt+arrow.
type Swipe struct{ Direction Direction }

// ArrowKey taps one cursor key.
type ArrowKey struct{ Key Arrow }

// Clipboard is text pasted on the remote device.
type Clipboard struct{ Content string }

func (Move) Kind() string      { return KindMove }
func (Click) Kind() string     { return KindClick }
func (Scroll) Kind() string    { return KindScroll }
func (DragStart) Kind() string { return KindDragStart }
func (DragEnd) Kind() string   { return KindDragEnd }
func (Swipe) Kind() string     { return KindSwipe }
func (ArrowKey) Kind() string  { return KindArrowKey }
func (Clipboard) Kind() string { return KindClipboard }

func (Move) isRemoteEvent()      {}
func (Click) isRemoteEvent()     {}
func (Scroll) isRemoteEvent()    {}
func (DragStart) isRemoteEvent() {}
func (DragEnd) isRemoteEvent()   {}
func (Swipe) isRemoteEvent()     {}
func (ArrowKey) isRemoteEvent()  {}
func (Clipboard) isRemoteEvent() {}

// envelope mirrors every field any variant can carry. Pointers tell a missing
// field apart from a zero value.
type envelope struct {
	Type      string   `json:"type"`
	DX        *float64 `json:"dx"`
	DY        *float64 `json:"dy"`
	Button    *string  `json:"button"`
	Direction *string  `json:"direction"`
	Key       *string  `json:"key"`
	Content   *string  `json:"content"`
}

// DecodeEvent parses one text frame. Every error wraps ErrDecode.
func DecodeEvent(data []byte) (RemoteEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch env.Type {
	case KindMove:
		if env.DX == nil || env.DY == nil {
			return nil, missing(env.Type, "dx/dy")
		}
		return Move{DX: *env.DX, DY: *env.DY}, nil
	case KindScroll:
		if env.DX == nil || env.DY == nil {
			return nil, missing(env.Type, "dx/dy")
		}
		return Scroll{DX: *env.DX, DY: *env.DY}, nil
	case KindClick:
		if env.Button == nil {
			return nil, missing(env.Type, "button")
		}
		return Click{Button: ParseButton(*env.Button)}, nil
	case KindDragStart:
		return DragStart{}, nil
	case KindDragEnd:
		return DragEnd{}, nil
	case KindSwipe:
		if env.Direction == nil {
			return nil, missing(env.Type, "direction")
		}
		return Swipe{Direction: ParseDirection(*env.Direction)}, nil
	case KindArrowKey:
		if env.Key == nil {
			return nil, missing(env.Type, "key")
		}
		return ArrowKey{Key: ParseArrow(*env.Key)}, nil
	case KindClipboard:
		if env.Content == nil {
			return nil, missing(env.Type, "content")
		}
		return Clipboard{Content: *env.Content}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrDecode)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrDecode, env.Type)
	}
}

func missing(kind, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrDecode, kind, field)
}
