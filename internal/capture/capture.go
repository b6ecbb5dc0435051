// Package capture bridges the host's system clipboard and the clipboard hub.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"

	"mobiletrackpad/internal/clipboard"
	"mobiletrackpad/internal/types"
)

const DefaultInterval = time.Second

// Clipboard is the host clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error) { return robotgo.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return robotgo.WriteAll(text) }

// System returns the host clipboard.
func System() Clipboard { return systemClipboard{} }

type Options struct {
	Interval time.Duration
	// Source labels items read from the host.
	Source string
	// ApplyFrom, when set, copies hub items with this source into the host
	// clipboard.
	ApplyFrom string
}

// Bridge polls the host clipboard and publishes changes to the hub.
type Bridge struct {
	clip   Clipboard
	hub    *clipboard.Hub
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func NewBridge(clip Clipboard, hub *clipboard.Hub, opts Options, logger *slog.Logger) *Bridge {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Source == "" {
		opts.Source = clipboard.SourceHost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{clip: clip, hub: hub, opts: opts, logger: logger}
}

// Run polls until ctx is cancelled. Content present at start is not
// published.
func (b *Bridge) Run(ctx context.Context) error {
	if text, err := b.clip.ReadAll(); err == nil {
		b.setLast(text)
	}

	var remote <-chan types.ClipboardItem
	if b.opts.ApplyFrom != "" {
		sub := b.hub.Subscribe()
		defer sub.Close()
		remote = sub.C()
	}

	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Poll()
		case item := <-remote:
			b.Apply(item)
		}
	}
}

// Poll publishes the host clipboard if it changed since the last poll or
// apply.
func (b *Bridge) Poll() bool {
	text, err := b.clip.ReadAll()
	if err != nil {
		b.logger.Debug("read host clipboard", "err", err)
		return false
	}
	if text == "" {
		return false
	}

	b.mu.Lock()
	if text == b.last {
		b.mu.Unlock()
		return false
	}
	b.last = text
	b.mu.Unlock()

	b.hub.PublishText(text, b.opts.Source)
	return true
}

// Apply writes item into the host clipboard if its source is ApplyFrom.
func (b *Bridge) Apply(item types.ClipboardItem) bool {
	if b.opts.ApplyFrom == "" || item.Source != b.opts.ApplyFrom {
		return false
	}
	if err := b.clip.WriteAll(item.Content); err != nil {
		b.logger.Warn("write host clipboard", "err", err)
		return false
	}
	// Remember it so the next poll does not echo it back as a host change.
	b.setLast(item.Content)
	return true
}

func (b *Bridge) setLast(text string) {
	b.mu.Lock()
	b.last = text
	b.mu.Unlock()
}
