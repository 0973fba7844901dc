// Package lock serializes mutations of the shared baseline storage area
// across concurrently running test instances. The lock is a cross-process
// advisory file lock in the protected directory; acquisition blocks until the
// current holder releases it.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lockFileName lives inside the protected directory.
const lockFileName = ".histcomp.lock"

// retryDelay bounds how often a blocked acquisition rechecks the lock.
const retryDelay = 250 * time.Millisecond

// SharedArea is a held lock on one shared directory. Release it on every
// exit path.
type SharedArea struct {
	fl    *flock.Flock
	token string
	log   *zap.Logger
}

// Acquire blocks until the shared-area lock for dir is held, creating dir if
// needed. The context bounds the wait.
func Acquire(ctx context.Context, dir string, log *zap.Logger) (*SharedArea, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shared area %s: %w", dir, err)
	}

	path := filepath.Join(dir, lockFileName)
	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock shared area %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock shared area %s: not acquired", dir)
	}

	s := &SharedArea{fl: fl, token: uuid.NewString(), log: log}
	// Owner token is diagnostic only; failure to record it is not fatal.
	if err := os.WriteFile(path, []byte(s.token+"\n"), 0o644); err != nil {
		log.Warn("could not record lock owner token", zap.String("path", path), zap.Error(err))
	}
	log.Debug("shared area locked", zap.String("dir", dir), zap.String("token", s.token))
	return s, nil
}

// Release drops the lock. Safe to call once on every exit path.
func (s *SharedArea) Release() error {
	if s == nil || s.fl == nil {
		return nil
	}
	err := s.fl.Unlock()
	s.log.Debug("shared area released", zap.String("token", s.token), zap.Error(err))
	s.fl = nil
	return err
}
