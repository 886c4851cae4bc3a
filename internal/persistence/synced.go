package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bartbot/internal/persistence/yadisk"
)

const closeFlushTimeout = 30 * time.Second

// Remote is the cloud storage the state file is mirrored to
type Remote interface {
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte, overwrite bool) error
	Remove(ctx context.Context, path string, permanently bool) error
}

// Synced is a BoltStore whose file is restored from and flushed to a Remote
type Synced struct {
	*BoltStore
	remote     Remote
	remotePath string
	logger     *zap.Logger

	dirty   atomic.Bool
	flushMu sync.Mutex
}

// OpenSynced downloads the remote state to localPath and opens it.
// A missing remote file starts an empty state.
func OpenSynced(ctx context.Context, localPath string, remote Remote, remotePath string, logger *zap.Logger) (*Synced, error) {
	data, err := remote.Download(ctx, remotePath)
	switch {
	case errors.Is(err, yadisk.ErrPathNotFound):
		// A local file left by an earlier run is stale without its remote copy
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale state file: %w", err)
		}
		logger.Warn("Remote state not found, starting with empty state", zap.String("remote_path", remotePath))
	case err != nil:
		return nil, fmt.Errorf("failed to download state: %w", err)
	default:
		if err := os.WriteFile(localPath, data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write state file: %w", err)
		}
		logger.Info("Remote state restored", zap.String("remote_path", remotePath), zap.Int("bytes", len(data)))
	}

	store, err := OpenBolt(localPath)
	if err != nil {
		return nil, err
	}
	return &Synced{
		BoltStore:  store,
		remote:     remote,
		remotePath: remotePath,
		logger:     logger,
	}, nil
}

// Put saves the state and marks the store for upload
func (s *Synced) Put(userID int64, value []byte) error {
	if err := s.BoltStore.Put(userID, value); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

// Delete removes the state and marks the store for upload
func (s *Synced) Delete(userID int64) error {
	if err := s.BoltStore.Delete(userID); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

// Dirty reports whether there are changes not uploaded yet
func (s *Synced) Dirty() bool {
	return s.dirty.Load()
}

// Flush uploads the state file if it changed since the last upload
func (s *Synced) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if !s.dirty.Swap(false) {
		return nil
	}

	data, err := s.Snapshot()
	if err != nil {
		s.dirty.Store(true)
		return err
	}

	err = s.remote.Upload(ctx, s.remotePath, data, false)
	if errors.Is(err, yadisk.ErrPathExists) {
		// Replace the previous copy, it stays in the trash
		if err = s.remote.Remove(ctx, s.remotePath, false); err == nil {
			err = s.remote.Upload(ctx, s.remotePath, data, false)
		}
	}
	if err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("failed to upload state: %w", err)
	}

	s.logger.Debug("State uploaded", zap.String("remote_path", s.remotePath), zap.Int("bytes", len(data)))
	return nil
}

// Run flushes the state every interval until ctx is done.
// The last flush happens in Close, after every writer has stopped.
func (s *Synced) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Error("Failed to flush state", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close uploads pending changes and closes the state file
func (s *Synced) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
	defer cancel()

	err := s.Flush(ctx)
	if err != nil {
		s.logger.Error("Failed to flush state on close", zap.Error(err))
	}
	return errors.Join(err, s.BoltStore.Close())
}
