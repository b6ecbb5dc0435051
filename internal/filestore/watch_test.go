package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_DropsRecordWhenBlobDeletedExternally(t *testing.T) {
	s, blobs, _, _ := newTestStore(t)
	keep, err := s.Put("keep.txt", []byte("k"))
	require.NoError(t, err)
	gone, err := s.Put("gone.txt", []byte("g"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, blobs.Dir()) }()

	// Give the watcher time to register before touching the directory.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.Remove(filepath.Join(blobs.Dir(), gone.ID)))

	require.Eventually(t, func() bool { return len(s.List()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, keep.ID, s.List()[0].ID)

	// Uploads after the watcher started are not affected by their own rename.
	later, err := s.Put("later.txt", []byte("l"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, _, err = s.Get(later.ID)
	assert.NoError(t, err)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_MissingDir(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	err := s.Watch(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
