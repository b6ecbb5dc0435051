// Package clipboard fans clipboard changes out to every connected session.
//
// Delivery is bounded per subscriber: when a subscriber's backlog is full the
// item is dropped for that subscriber only. Publishers never block.
package clipboard

import (
	"log/slog"
	"sync"
	"time"

	"mobiletrackpad/internal/metrics"
	"mobiletrackpad/internal/types"
)

// DefaultBuffer is the per-subscriber backlog.
const DefaultBuffer = 100

// Source labels.
const (
	SourceClient = "Client"
	SourceSystem = "System"
	SourceHost   = "Host"
)

// Hub is process-lifetime; it needs no shutdown.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int

	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(h *Hub) { h.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(h *Hub) { h.logger = l } }
func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscription receives items published after it was created.
type Subscription struct {
	hub *Hub

	mu     sync.Mutex
	ch     chan types.ClipboardItem
	closed bool
}

// Subscribe registers a new receiver.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan types.ClipboardItem, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// C is closed once the subscription is closed.
func (s *Subscription) C() <-chan types.ClipboardItem { return s.ch }

// Close unregisters the subscription. Safe to call more than once and
// concurrently with Publish.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// deliver reports false when the item was dropped for a full backlog.
func (s *Subscription) deliver(item types.ClipboardItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- item:
		return true
	default:
		return false
	}
}

// Publish sends item to every current subscriber, in publish order per
// subscriber.
func (h *Hub) Publish(item types.ClipboardItem) {
	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	h.metrics.ClipboardPublished(item.Source)
	for _, s := range snapshot {
		if !s.deliver(item) {
			h.metrics.ClipboardDropped()
			h.logger.Debug("clipboard backlog full, dropping item", "source", item.Source)
		}
	}
}

// PublishText stamps content with the current time and source.
func (h *Hub) PublishText(content, source string) types.ClipboardItem {
	item := types.ClipboardItem{
		Content:   content,
		Timestamp: uint64(h.now().Unix()),
		Source:    source,
	}
	h.Publish(item)
	return item
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
