// Package threadlock provides single-writer locks keyed by thread id.
package threadlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when a lock cannot be acquired before the context ends.
var ErrLocked = errors.New("thread is locked by another writer")

// Locker acquires an exclusive lock for a thread. The returned function
// releases it and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, threadID string) (func(), error)
}

type memory struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemory returns a Locker that serializes writers within one process.
func NewMemory() Locker {
	return &memory{locks: make(map[string]chan struct{})}
}

func (m *memory) Lock(ctx context.Context, threadID string) (func(), error) {
	m.mu.Lock()
	ch, ok := m.locks[threadID]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[threadID] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrLocked, threadID, ctx.Err())
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type file struct {
	dir        string
	retryDelay time.Duration
	inproc     Locker
}

// NewFile returns a Locker backed by lock files under dir, so separate
// processes sharing a data directory exclude each other.
func NewFile(dir string, retryDelay time.Duration) (Locker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}

	return &file{
		dir:        dir,
		retryDelay: retryDelay,
		inproc:     NewMemory(),
	}, nil
}

func (f *file) Lock(ctx context.Context, threadID string) (func(), error) {
	// flock locks are per file descriptor; the in-process lock keeps two
	// goroutines from both opening the same lock file.
	release, err := f.inproc.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(f.dir, unsafeChars.ReplaceAllString(threadID, "_")+".lock"))

	ok, err := fl.TryLockContext(ctx, f.retryDelay)
	if err != nil || !ok {
		release()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrLocked, threadID, err)
	}

	return func() {
		_ = fl.Unlock()
		release()
	}, nil
}
