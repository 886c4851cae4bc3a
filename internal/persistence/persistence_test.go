package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bartbot/internal/persistence/yadisk"
)

type memoryRemote struct {
	mu        sync.Mutex
	files     map[string][]byte
	uploads   int
	removals  int
	failNext  bool
	failFetch bool
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{files: map[string][]byte{}}
}

func (r *memoryRemote) Download(ctx context.Context, path string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFetch {
		return nil, errors.New("network is down")
	}
	data, ok := r.files[path]
	if !ok {
		return nil, yadisk.ErrPathNotFound
	}
	return append([]byte(nil), data...), nil
}

func (r *memoryRemote) Upload(ctx context.Context, path string, data []byte, overwrite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errors.New("upload failed")
	}
	if _, ok := r.files[path]; ok && !overwrite {
		return yadisk.ErrPathExists
	}
	r.files[path] = append([]byte(nil), data...)
	r.uploads++
	return nil
}

func (r *memoryRemote) Remove(ctx context.Context, path string, permanently bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[path]; !ok {
		return yadisk.ErrPathNotFound
	}
	delete(r.files, path)
	r.removals++
	return nil
}

func collect(t *testing.T, store interface {
	ForEach(func(int64, []byte) error) error
}) map[int64]string {
	t.Helper()
	states := map[int64]string{}
	require.NoError(t, store.ForEach(func(userID int64, value []byte) error {
		states[userID] = string(value)
		return nil
	}))
	return states
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenBolt(path)
	require.NoError(t, err)

	require.NoError(t, store.Put(1, []byte(`{"command":"family"}`)))
	require.NoError(t, store.Put(-100, []byte(`{}`)))
	require.NoError(t, store.Delete(2))
	assert.Equal(t, map[int64]string{1: `{"command":"family"}`, -100: `{}`}, collect(t, store))

	require.NoError(t, store.Delete(1))
	require.NoError(t, store.Close())

	// Reopen
	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, map[int64]string{-100: `{}`}, collect(t, store))

	snapshot, err := store.Snapshot()
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot)
}

func TestSynced_RoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := newMemoryRemote()

	// First start: nothing on the remote
	first, err := OpenSynced(ctx, filepath.Join(t.TempDir(), "state.db"), remote, "/bart/state.db", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, first.Dirty())

	require.NoError(t, first.Flush(ctx))
	assert.Zero(t, remote.uploads, "clean store must not be uploaded")

	require.NoError(t, first.Put(7, []byte("seven")))
	assert.True(t, first.Dirty())
	require.NoError(t, first.Flush(ctx))
	assert.False(t, first.Dirty())
	assert.Equal(t, 1, remote.uploads)

	// Second upload replaces the existing remote copy
	require.NoError(t, first.Put(8, []byte("eight")))
	require.NoError(t, first.Flush(ctx))
	assert.Equal(t, 2, remote.uploads)
	assert.Equal(t, 1, remote.removals)
	require.NoError(t, first.Close())

	// Another instance restores the state
	second, err := OpenSynced(ctx, filepath.Join(t.TempDir(), "state.db"), remote, "/bart/state.db", zap.NewNop())
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, map[int64]string{7: "seven", 8: "eight"}, collect(t, second))
}

func TestSynced_FailedUploadStaysDirty(t *testing.T) {
	ctx := context.Background()
	remote := newMemoryRemote()

	store, err := OpenSynced(ctx, filepath.Join(t.TempDir(), "state.db"), remote, "/state", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(1, []byte("one")))
	remote.failNext = true
	assert.Error(t, store.Flush(ctx))
	assert.True(t, store.Dirty())

	require.NoError(t, store.Flush(ctx))
	assert.False(t, store.Dirty())
}

func TestSynced_DownloadError(t *testing.T) {
	remote := newMemoryRemote()
	remote.failFetch = true

	path := filepath.Join(t.TempDir(), "state.db")
	_, err := OpenSynced(context.Background(), path, remote, "/state", zap.NewNop())
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSynced_MissingRemoteDropsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	// A file left by an earlier run
	stale, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, stale.Put(5, []byte("stale")))
	require.NoError(t, stale.Close())

	store, err := OpenSynced(context.Background(), path, newMemoryRemote(), "/state", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	assert.Empty(t, collect(t, store))
}

func TestSynced_RunFlushesPeriodically(t *testing.T) {
	remote := newMemoryRemote()
	store, err := OpenSynced(context.Background(), filepath.Join(t.TempDir(), "state.db"), remote, "/state", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Delete(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !store.Dirty() }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, 1, remote.uploads)
}

func TestSynced_CloseFlushesLateWrites(t *testing.T) {
	remote := newMemoryRemote()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSynced(context.Background(), path, remote, "/state", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store.Run(ctx, time.Hour)

	// Written after the flush loop stopped
	require.NoError(t, store.Put(3, []byte("three")))
	require.NoError(t, store.Close())
	assert.Equal(t, 1, remote.uploads)

	restored, err := OpenSynced(context.Background(), filepath.Join(t.TempDir(), "state.db"), remote, "/state", zap.NewNop())
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, map[int64]string{3: "three"}, collect(t, restored))
}
