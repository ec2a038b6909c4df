package locking

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotObtained is returned when another holder owns the key
var ErrNotObtained = errors.New("lock not obtained")

// Lock is a held advisory lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out per-scope advisory locks with a time to live
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// LocalLocker is an in-process Locker for single-binary use and tests
type LocalLocker struct {
	mutex sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
	seq   uint64
}

type localEntry struct {
	token   uint64
	expires time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

// Obtain takes key unless an unexpired holder exists
func (l *LocalLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ErrNotObtained
	}
	l.seq++
	l.held[key] = localEntry{token: l.seq, expires: now.Add(ttl)}
	return &localLock{locker: l, key: key, token: l.seq}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	token  uint64
}

// Release frees the key if this lock still owns it
func (h *localLock) Release(ctx context.Context) error {
	h.locker.mutex.Lock()
	defer h.locker.mutex.Unlock()

	if e, ok := h.locker.held[h.key]; ok && e.token == h.token {
		delete(h.locker.held, h.key)
	}
	return nil
}
