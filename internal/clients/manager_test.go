package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobiletrackpad/internal/clipboard"
	"mobiletrackpad/internal/types"
)

type frame struct {
	mt   int
	data []byte
}

type fakeConn struct {
	in     chan frame
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	out       []frame
	writing   bool
	overlap   bool
	failWrite bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan frame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return f.mt, f.data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	c.mu.Lock()
	if c.writing {
		c.overlap = true
	}
	c.writing = true
	fail := c.failWrite
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.writing = false
		c.mu.Unlock()
	}()

	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	if fail {
		return errors.New("broken pipe")
	}
	c.mu.Lock()
	c.out = append(c.out, frame{mt, data})
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sendText(s string) { c.in <- frame{websocket.TextMessage, []byte(s)} }

func (c *fakeConn) textFrames() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.out {
		if f.mt != websocket.TextMessage {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(f.data, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

type recordingHandler struct {
	mu     sync.Mutex
	events []types.RemoteEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ev types.RemoteEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) snapshot() []types.RemoteEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.RemoteEvent(nil), h.events...)
}

func newTestManager(h EventHandler) (*Manager, *clipboard.Hub) {
	hub := clipboard.NewHub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(h, hub, Config{}, nil, logger), hub
}

func serve(m *Manager, c *fakeConn) chan error {
	done := make(chan error, 1)
	go func() { done <- m.Serve(context.Background(), c) }()
	return done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestServe_SendsConnectedFirst(t *testing.T) {
	m, hub := newTestManager(&recordingHandler{})
	c := newFakeConn()
	done := serve(m, c)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	frames := c.textFrames()
	require.NotEmpty(t, frames)
	assert.Equal(t, "connected", frames[0]["type"])
	assert.Equal(t, ConnectedMessage, frames[0]["message"])
	assert.Equal(t, 1, m.Count())

	close(c.in)
	assert.NoError(t, waitDone(t, done))
	assert.Zero(t, hub.Len(), "subscription released on disconnect")
	assert.Zero(t, m.Count())
}

func TestServe_IgnoresMalformedAndKeepsOrder(t *testing.T) {
	h := &recordingHandler{}
	m, _ := newTestManager(h)
	c := newFakeConn()
	done := serve(m, c)

	c.sendText(`{"type":"move","dx":1,"dy":2}`)
	c.sendText(`garbage`)
	c.sendText(`{"type":"teleport"}`)
	c.in <- frame{websocket.BinaryMessage, []byte(`{"type":"drag_start"}`)}
	c.sendText(`{"type":"click","button":"right"}`)
	c.sendText(`{"type":"drag_end"}`)
	close(c.in)
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, []types.RemoteEvent{
		types.Move{DX: 1, DY: 2},
		types.Click{Button: types.ButtonRight},
		types.DragEnd{},
	}, h.snapshot())

	for _, f := range c.textFrames() {
		assert.NotContains(t, f, "error", "no error is sent back for malformed input")
	}
}

func TestServe_ClipboardBroadcastIncludesSender(t *testing.T) {
	h := &recordingHandler{}
	m, hub := newTestManager(h)
	a, b := newFakeConn(), newFakeConn()
	doneA, doneB := serve(m, a), serve(m, b)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 5*time.Millisecond)

	a.sendText(`{"type":"clipboard","content":"copied text"}`)

	for _, c := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(c.textFrames()) == 2 }, time.Second, 5*time.Millisecond)
		got := c.textFrames()[1]
		assert.Equal(t, "clipboard_history", got["type"])
		assert.Equal(t, "copied text", got["content"])
		assert.Equal(t, clipboard.SourceClient, got["source"])
		assert.NotZero(t, got["timestamp"])
	}
	assert.Empty(t, h.snapshot(), "clipboard never reaches the device handler")

	close(a.in)
	close(b.in)
	waitDone(t, doneA)
	waitDone(t, doneB)
}

func TestServe_DeviceErrorKeepsSession(t *testing.T) {
	h := &recordingHandler{err: errors.New("EIO")}
	m, _ := newTestManager(h)
	c := newFakeConn()
	done := serve(m, c)

	c.sendText(`{"type":"move","dx":1,"dy":1}`)
	c.sendText(`{"type":"move","dx":2,"dy":2}`)
	close(c.in)
	require.NoError(t, waitDone(t, done))
	assert.Len(t, h.snapshot(), 2)
}

func TestServe_FailedForwardEndsSession(t *testing.T) {
	m, hub := newTestManager(&recordingHandler{})
	c := newFakeConn()
	done := serve(m, c)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	c.failWrite = true
	c.mu.Unlock()
	hub.PublishText("x", clipboard.SourceHost)

	assert.NoError(t, waitDone(t, done))
	assert.Zero(t, hub.Len())
}

func TestServe_SingleWriterUnderLoad(t *testing.T) {
	m, hub := newTestManager(&recordingHandler{})
	c := newFakeConn()
	done := serve(m, c)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 50; i++ {
		hub.PublishText("x", clipboard.SourceHost)
		c.sendText(`{"type":"clipboard","content":"y"}`)
	}
	require.Eventually(t, func() bool { return len(c.textFrames()) == 101 }, 2*time.Second, 5*time.Millisecond)

	close(c.in)
	waitDone(t, done)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.False(t, c.overlap)
}

func TestCloseAll(t *testing.T) {
	m, hub := newTestManager(&recordingHandler{})
	c1, c2 := newFakeConn(), newFakeConn()
	d1, d2 := serve(m, c1), serve(m, c2)
	require.Eventually(t, func() bool { return m.Count() == 2 }, time.Second, 5*time.Millisecond)

	m.CloseAll()
	assert.NoError(t, waitDone(t, d1))
	assert.NoError(t, waitDone(t, d2))
	assert.Zero(t, m.Count())
	assert.Zero(t, hub.Len())
}
