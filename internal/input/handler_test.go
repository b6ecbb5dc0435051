package input

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dev "mobiletrackpad/input"
	"mobiletrackpad/internal/types"
)

type fakeEmitter struct {
	mu    sync.Mutex
	calls [][]dev.Gesture
	err   error
}

func (f *fakeEmitter) Emit(gs ...dev.Gesture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, gs)
	return f.err
}

func mustTranslate(tb testing.TB, ev types.RemoteEvent) []dev.Gesture {
	tb.Helper()
	gs, err := Translate(ev)
	require.NoError(tb, err)
	for _, g := range gs {
		require.True(tb, g.Terminated(), "gesture %v must end with sync", g)
	}
	return gs
}

func TestTranslateMove_Truncates(t *testing.T) {
	cases := []struct {
		dx, dy float64
		x, y   int32
	}{
		{1.9, -1.9, 1, -1},
		{0.4, 0.4, 0, 0},
		{-12.7, 30.2, -12, 30},
	}
	for _, c := range cases {
		gs := mustTranslate(t, types.Move{DX: c.dx, DY: c.dy})
		require.Len(t, gs, 1)
		assert.Equal(t, dev.Gesture{dev.Move(c.x, c.y), dev.Sync()}, gs[0])
	}
}

func TestTranslate_SaturatesLargeDeltas(t *testing.T) {
	cases := []struct {
		ev   types.RemoteEvent
		want dev.Gesture
	}{
		{types.Move{DX: 3e9, DY: -1e12}, dev.Gesture{dev.Move(math.MaxInt32, math.MinInt32), dev.Sync()}},
		{types.Move{DX: -3e9, DY: 1e12}, dev.Gesture{dev.Move(math.MinInt32, math.MaxInt32), dev.Sync()}},
		{types.Scroll{DY: 1e12}, dev.Gesture{dev.Wheel(math.MaxInt32), dev.Sync()}},
		{types.Scroll{DY: -1e12}, dev.Gesture{dev.Wheel(math.MinInt32), dev.Sync()}},
		{types.Scroll{DX: 1e12}, dev.Gesture{dev.HWheel(math.MinInt32), dev.Sync()}},
		{types.Scroll{DX: -1e12}, dev.Gesture{dev.HWheel(math.MaxInt32), dev.Sync()}},
	}
	for _, c := range cases {
		gs := mustTranslate(t, c.ev)
		require.Len(t, gs, 1)
		assert.Equal(t, c.want, gs[0], "%+v", c.ev)
	}
}

func TestTranslateClick(t *testing.T) {
	cases := map[types.Button]dev.Code{
		types.ButtonLeft:   dev.BtnLeft,
		types.ButtonRight:  dev.BtnRight,
		types.ButtonMiddle: dev.BtnMiddle,
	}
	for button, code := range cases {
		gs := mustTranslate(t, types.Click{Button: button})
		assert.Equal(t, []dev.Gesture{
			{dev.KeyDown(code), dev.Sync()},
			{dev.KeyUp(code), dev.Sync()},
		}, gs, "button %s", button)
	}

	bogus, err := types.DecodeEvent([]byte(`{"type":"click","button":"bogus"}`))
	require.NoError(t, err)
	assert.Equal(t, mustTranslate(t, types.Click{Button: types.ButtonLeft}), mustTranslate(t, bogus))
}

func TestTranslateScroll(t *testing.T) {
	t.Run("both axes", func(t *testing.T) {
		gs := mustTranslate(t, types.Scroll{DX: 26, DY: -34})
		require.Len(t, gs, 1)
		assert.Equal(t, dev.Gesture{dev.Wheel(-3), dev.HWheel(-3), dev.Sync()}, gs[0])
	})

	t.Run("vertical only", func(t *testing.T) {
		gs := mustTranslate(t, types.Scroll{DX: 0.05, DY: 15})
		assert.Equal(t, dev.Gesture{dev.Wheel(2), dev.Sync()}, gs[0])
	})

	t.Run("small delta above threshold still emits", func(t *testing.T) {
		gs := mustTranslate(t, types.Scroll{DX: -0.5, DY: 0})
		assert.Equal(t, dev.Gesture{dev.HWheel(0), dev.Sync()}, gs[0])
	})

	t.Run("below threshold is a bare sync", func(t *testing.T) {
		for _, d := range [][2]float64{{0, 0}, {0.1, -0.1}, {-0.05, 0.09}} {
			gs := mustTranslate(t, types.Scroll{DX: d[0], DY: d[1]})
			require.Len(t, gs, 1)
			assert.Equal(t, dev.Gesture{dev.Sync()}, gs[0])
		}
	})
}

func TestTranslateDrag(t *testing.T) {
	assert.Equal(t, []dev.Gesture{{dev.KeyDown(dev.BtnLeft), dev.Sync()}}, mustTranslate(t, types.DragStart{}))
	assert.Equal(t, []dev.Gesture{{dev.KeyUp(dev.BtnLeft), dev.Sync()}}, mustTranslate(t, types.DragEnd{}))
}

func TestTranslateSwipe(t *testing.T) {
	gs := mustTranslate(t, types.Swipe{Direction: types.DirectionRight})
	assert.Equal(t, []dev.Gesture{
		{dev.KeyDown(dev.KeyLeftAlt), dev.Sync()},
		{dev.KeyDown(dev.KeyArrowRight), dev.Sync()},
		{dev.KeyUp(dev.KeyArrowRight), dev.Sync()},
		{dev.KeyUp(dev.KeyLeftAlt), dev.Sync()},
	}, gs)

	up, err := types.DecodeEvent([]byte(`{"type":"swipe","direction":"up"}`))
	require.NoError(t, err)
	assert.Empty(t, mustTranslate(t, up))
}

func TestTranslateArrowKey(t *testing.T) {
	gs := mustTranslate(t, types.ArrowKey{Key: types.ArrowUp})
	assert.Equal(t, []dev.Gesture{
		{dev.KeyDown(dev.KeyArrowUp), dev.Sync()},
		{dev.KeyUp(dev.KeyArrowUp), dev.Sync()},
	}, gs)

	assert.Empty(t, mustTranslate(t, types.ArrowKey{Key: types.ArrowUnknown}))
}

func TestTranslateClipboardIsExcluded(t *testing.T) {
	gs, err := Translate(types.Clipboard{Content: "x"})
	assert.ErrorIs(t, err, ErrNotDeviceEvent)
	assert.Nil(t, gs)
}

func TestHandler_EmitsWholeEventInOneCall(t *testing.T) {
	em := &fakeEmitter{}
	h := NewHandler(em, nil, nil)

	require.NoError(t, h.HandleEvent(types.Swipe{Direction: types.DirectionLeft}))
	require.NoError(t, h.HandleEvent(types.Swipe{Direction: types.DirectionUnknown}))
	require.NoError(t, h.HandleEvent(types.Click{Button: types.ButtonRight}))

	require.Len(t, em.calls, 2, "no-op swipe does not reach the device")
	assert.Len(t, em.calls[0], 4)
	assert.Len(t, em.calls[1], 2)
}

func TestHandler_PropagatesDeviceError(t *testing.T) {
	cause := &dev.DeviceError{Op: "write", Err: errors.New("ENODEV")}
	h := NewHandler(&fakeEmitter{err: cause}, nil, nil)

	err := h.HandleEvent(types.Move{DX: 1, DY: 1})
	var de *dev.DeviceError
	assert.ErrorAs(t, err, &de)
}

func TestHandler_RejectsClipboard(t *testing.T) {
	em := &fakeEmitter{}
	h := NewHandler(em, nil, nil)
	assert.ErrorIs(t, h.HandleEvent(types.Clipboard{Content: "x"}), ErrNotDeviceEvent)
	assert.Empty(t, em.calls)
}
