// Package filestore keeps uploaded files for a limited time.
//
// The record index and the blob store are one resource: every insert,
// delete and sweep pass holds the store mutex across both, so a record is
// listed exactly when its blob exists.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mobiletrackpad/internal/clipboard"
	"mobiletrackpad/internal/metrics"
	"mobiletrackpad/internal/types"
)

const (
	DefaultTTL           = time.Hour
	DefaultSweepInterval = time.Minute
	DefaultFilename      = "unnamed"
)

// ErrNotFound is returned for unknown, expired or blob-less ids.
var ErrNotFound = errors.New("file not found")

// Notifier receives the "File uploaded" signal.
type Notifier interface {
	Publish(item types.ClipboardItem)
}

type Store struct {
	mu      sync.Mutex
	records map[string]types.FileRecord
	blobs   Blobs
	// orphans are expired ids whose blob could not be removed yet.
	orphans map[string]struct{}

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	notifier Notifier
	source   string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Store)

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }
func WithNotifier(n Notifier) Option        { return func(s *Store) { s.notifier = n } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Store) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(s *Store) { s.logger = l } }

// WithSource sets the clipboard source label of upload notices.
func WithSource(src string) Option { return func(s *Store) { s.source = src } }

func New(blobs Blobs, opts ...Option) *Store {
	s := &Store{
		records:  make(map[string]types.FileRecord),
		blobs:    blobs,
		orphans:  make(map[string]struct{}),
		ttl:      DefaultTTL,
		interval: DefaultSweepInterval,
		now:      time.Now,
		source:   clipboard.SourceSystem,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put stores data under a fresh id and announces it through the notifier.
func (s *Store) Put(filename string, data []byte) (types.FileRecord, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	rec := types.FileRecord{
		ID:         uuid.NewString(),
		Filename:   filename,
		Size:       uint64(len(data)),
		UploadedAt: uint64(s.now().Unix()),
	}

	s.mu.Lock()
	if err := s.blobs.Write(rec.ID, data); err != nil {
		s.mu.Unlock()
		return types.FileRecord{}, fmt.Errorf("store %q: %w", filename, err)
	}
	s.records[rec.ID] = rec
	n := len(s.records)
	s.mu.Unlock()

	s.metrics.SetFiles(n)
	s.metrics.Uploaded(rec.Size)
	s.logger.Info("file stored", "id", rec.ID, "filename", rec.Filename, "size", rec.Size)

	if s.notifier != nil {
		s.notifier.Publish(types.ClipboardItem{
			Content:   "File uploaded: " + filename,
			Timestamp: rec.UploadedAt,
			Source:    s.source,
		})
	}
	return rec, nil
}

// Open returns the record and a reader over its blob. A record whose blob
// has vanished is dropped and reported as ErrNotFound.
func (s *Store) Open(id string) (types.FileRecord, io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return types.FileRecord{}, nil, ErrNotFound
	}
	rc, err := s.blobs.Open(id)
	if errors.Is(err, fs.ErrNotExist) {
		s.dropLocked(id, "blob missing")
		return types.FileRecord{}, nil, ErrNotFound
	}
	if err != nil {
		return types.FileRecord{}, nil, fmt.Errorf("open blob %s: %w", id, err)
	}
	return rec, rc, nil
}

// Get reads the whole blob.
func (s *Store) Get(id string) ([]byte, types.FileRecord, error) {
	rec, rc, err := s.Open(id)
	if err != nil {
		return nil, types.FileRecord{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, types.FileRecord{}, fmt.Errorf("read blob %s: %w", id, err)
	}
	return data, rec, nil
}

// List returns a snapshot in no particular order.
func (s *Store) List() []types.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// Sweep evicts every record older than the TTL at now and deletes its blob.
// A blob that cannot be deleted is logged and retried on later sweeps; the
// record is gone either way.
func (s *Store) Sweep(now time.Time) int {
	cutoff := int64(s.ttl / time.Second)

	s.mu.Lock()
	for id := range s.orphans {
		if s.removeBlob(id) {
			delete(s.orphans, id)
		}
	}

	evicted := 0
	for id, rec := range s.records {
		if now.Unix()-int64(rec.UploadedAt) <= cutoff {
			continue
		}
		if !s.removeBlob(id) {
			s.orphans[id] = struct{}{}
		}
		delete(s.records, id)
		evicted++
	}
	n := len(s.records)
	s.mu.Unlock()

	if evicted > 0 {
		s.metrics.FilesExpired(evicted)
		s.metrics.SetFiles(n)
		s.logger.Info("expired uploads swept", "evicted", evicted, "remaining", n)
	}
	return evicted
}

func (s *Store) removeBlob(id string) bool {
	err := s.blobs.Remove(id)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	s.logger.Error("remove expired blob", "id", id, "err", err)
	return false
}

// Pending returns how many expired blobs still await removal.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orphans)
}

// Run sweeps on every interval until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// forget drops id if its blob no longer exists.
func (s *Store) forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok || s.blobs.Exists(id) {
		return false
	}
	s.dropLocked(id, "blob removed externally")
	return true
}

func (s *Store) dropLocked(id, reason string) {
	delete(s.records, id)
	s.metrics.FilesExpired(1)
	s.metrics.SetFiles(len(s.records))
	s.logger.Warn("dropping file record", "id", id, "reason", reason)
}
