package clients

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var errSessionClosed = errors.New("session closed")

// Session is one connected remote device. All writes go through sendMu so
// the connection only ever has one writer.
type Session struct {
	ID   string
	conn Conn

	writeWait time.Duration

	sendMu sync.Mutex
	closed bool
}

func newSession(conn Conn, writeWait time.Duration) *Session {
	return &Session{ID: newSessionID(), conn: conn, writeWait: writeWait}
}

func (s *Session) send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, payload)
}

func (s *Session) ping() error {
	return s.write(websocket.PingMessage, nil)
}

func (s *Session) write(mt int, payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	return s.conn.WriteMessage(mt, payload)
}

func (s *Session) close() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.conn.Close()
}

func (s *Session) isClosed() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.closed
}
