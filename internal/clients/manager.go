package clients

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mobiletrackpad/internal/clipboard"
	"mobiletrackpad/internal/metrics"
	t "mobiletrackpad/internal/types"
)

const (
	DefaultWriteWait  = 10 * time.Second
	DefaultPingPeriod = 54 * time.Second
	ConnectedMessage  = "Trackpad connected successfully"
)

// EventHandler executes device events.
type EventHandler interface {
	HandleEvent(ev t.RemoteEvent) error
}

type Config struct {
	// ClientSource labels clipboard items pasted from a remote session.
	ClientSource string
	WriteWait    time.Duration
	// PingPeriod of zero disables keepalive pings.
	PingPeriod time.Duration
}

// Manager tracks live sessions and runs each one.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	handler EventHandler
	hub     *clipboard.Hub
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewManager(handler EventHandler, hub *clipboard.Hub, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if cfg.ClientSource == "" {
		cfg.ClientSource = clipboard.SourceClient
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		handler:  handler,
		hub:      hub,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

func (m *Manager) add(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SetSessions(n)
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	n := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SetSessions(n)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ForEachSession executes fn with a snapshot of sessions.
func (m *Manager) ForEachSession(fn func(s *Session)) {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}

// CloseAll closes every connection; their Serve calls return shortly after.
func (m *Manager) CloseAll() {
	m.ForEachSession(func(s *Session) {
		s.close()
	})
}

// Serve runs one connection until it closes. Inbound events are handled
// strictly in arrival order on the calling goroutine; clipboard broadcasts
// are forwarded by a second goroutine sharing the session's send lock.
func (m *Manager) Serve(ctx context.Context, conn Conn) error {
	s := newSession(conn, m.cfg.WriteWait)
	log := m.logger.With("session", s.ID)

	m.add(s)
	defer m.remove(s)
	defer s.close()

	if err := s.send(t.Connected{Type: t.TypeConnected, Message: ConnectedMessage}); err != nil {
		return err
	}
	log.Info("session connected")

	sub := m.hub.Subscribe()
	fwdCtx, cancel := context.WithCancel(ctx)
	fwdDone := make(chan struct{})
	go func() {
		defer close(fwdDone)
		m.forward(fwdCtx, s, sub, log)
	}()

	err := m.readLoop(s, log)

	cancel()
	sub.Close()
	<-fwdDone

	if s.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		log.Info("session disconnected")
		return nil
	}
	log.Warn("session read error", "err", err)
	return err
}

func (m *Manager) readLoop(s *Session, log *slog.Logger) error {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			m.metrics.DecodeError()
			continue
		}
		ev, err := t.DecodeEvent(data)
		if err != nil {
			m.metrics.DecodeError()
			log.Debug("discarding malformed message", "err", err)
			continue
		}
		m.dispatch(ev, log)
	}
}

func (m *Manager) dispatch(ev t.RemoteEvent, log *slog.Logger) {
	if clip, ok := ev.(t.Clipboard); ok {
		m.metrics.EventHandled(clip.Kind())
		m.hub.PublishText(clip.Content, m.cfg.ClientSource)
		return
	}
	if err := m.handler.HandleEvent(ev); err != nil {
		log.Error("dropping gesture", "type", ev.Kind(), "err", err)
	}
}

func (m *Manager) forward(ctx context.Context, s *Session, sub *clipboard.Subscription, log *slog.Logger) {
	var ping <-chan time.Time
	if m.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(m.cfg.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-sub.C():
			if !ok {
				return
			}
			if err := s.send(t.NewClipboardHistory(item)); err != nil {
				if !errors.Is(err, errSessionClosed) {
					log.Debug("clipboard forward failed", "err", err)
				}
				s.close()
				return
			}
		case <-ping:
			if err := s.ping(); err != nil {
				s.close()
				return
			}
		}
	}
}

func newSessionID() string { return uuid.NewString() }
