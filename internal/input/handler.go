package input

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	dev "mobiletrackpad/input"
	"mobiletrackpad/internal/metrics"
	t "mobiletrackpad/internal/types"
)

// scrollThreshold ignores finger jitter below this many pixels per axis.
const scrollThreshold = 0.1

// scrollDivisor converts browser pixels to wheel detents.
const scrollDivisor = 10.0

// ErrNotDeviceEvent is returned for events routed elsewhere (clipboard).
var ErrNotDeviceEvent = errors.New("event is not a device event")

// Emitter is the part of the virtual device the translator needs.
type Emitter interface {
	Emit(gestures ...dev.Gesture) error
}

var buttonCodes = map[t.Button]dev.Code{
	t.ButtonLeft:   dev.BtnLeft,
	t.ButtonRight:  dev.BtnRight,
	t.ButtonMiddle: dev.BtnMiddle,
}

var arrowCodes = map[t.Arrow]dev.Code{
	t.ArrowUp:    dev.KeyArrowUp,
	t.ArrowDown:  dev.KeyArrowDown,
	t.ArrowLeft:  dev.KeyArrowLeft,
	t.ArrowRight: dev.KeyArrowRight,
}

var swipeCodes = map[t.Direction]dev.Code{
	t.DirectionLeft:  dev.KeyArrowLeft,
	t.DirectionRight: dev.KeyArrowRight,
}

// Translate maps a remote event to the gestures that reproduce it. A nil
// slice with a nil error means the event is valid but does nothing.
func Translate(ev t.RemoteEvent) ([]dev.Gesture, error) {
	switch e := ev.(type) {
	case t.Move:
		return []dev.Gesture{{dev.Move(saturate(e.DX), saturate(e.DY)), dev.Sync()}}, nil

	case t.Click:
		code, ok := buttonCodes[e.Button]
		if !ok {
			code = dev.BtnLeft
		}
		return tap(code), nil

	case t.Scroll:
		// Natural scrolling: vertical follows the finger, horizontal is inverted.
		g := make(dev.Gesture, 0, 3)
		if math.Abs(e.DY) > scrollThreshold {
			g = append(g, dev.Wheel(saturate(math.Round(e.DY/scrollDivisor))))
		}
		if math.Abs(e.DX) > scrollThreshold {
			g = append(g, dev.HWheel(saturate(-math.Round(e.DX/scrollDivisor))))
		}
		g = append(g, dev.Sync())
		return []dev.Gesture{g}, nil

	case t.DragStart:
		return []dev.Gesture{{dev.KeyDown(dev.BtnLeft), dev.Sync()}}, nil

	case t.DragEnd:
		return []dev.Gesture{{dev.KeyUp(dev.BtnLeft), dev.Sync()}}, nil

	case t.Swipe:
		arrow, ok := swipeCodes[e.Direction]
		if !ok {
			return nil, nil
		}
		return []dev.Gesture{
			{dev.KeyDown(dev.KeyLeftAlt), dev.Sync()},
			{dev.KeyDown(arrow), dev.Sync()},
			{dev.KeyUp(arrow), dev.Sync()},
			{dev.KeyUp(dev.KeyLeftAlt), dev.Sync()},
		}, nil

	case t.ArrowKey:
		code, ok := arrowCodes[e.Key]
		if !ok {
			return nil, nil
		}
		return tap(code), nil

	case t.Clipboard:
		return nil, ErrNotDeviceEvent

	default:
		return nil, fmt.Errorf("unhandled event %T", ev)
	}
}

// saturate truncates v toward zero, clamping to the int32 range.
func saturate(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func tap(code dev.Code) []dev.Gesture {
	return []dev.Gesture{
		{dev.KeyDown(code), dev.Sync()},
		{dev.KeyUp(code), dev.Sync()},
	}
}

// Handler executes the side-effect for a device event.
type Handler struct {
	device  Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(device Emitter, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{device: device, metrics: m, logger: logger}
}

// HandleEvent translates ev and emits all of its gestures as one exclusive
// device call, so multi-gesture events (click, swipe) are never split by
// another session.
func (h *Handler) HandleEvent(ev t.RemoteEvent) error {
	gestures, err := Translate(ev)
	if err != nil {
		return err
	}
	h.metrics.EventHandled(ev.Kind())
	if len(gestures) == 0 {
		h.logger.Debug("event produced no actions", "type", ev.Kind())
		return nil
	}
	if err := h.device.Emit(gestures...); err != nil {
		h.metrics.DeviceError()
		return fmt.Errorf("emit %s: %w", ev.Kind(), err)
	}
	return nil
}
