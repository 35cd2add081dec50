package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker はプロセス内のみで有効なLocker実装。
// REDIS_URL未設定時（単一インスタンス運用、テスト）に使う。
type MemoryLocker struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
	seq     uint64
}

type memoryEntry struct {
	token     uint64
	expiresAt time.Time
}

// NewMemoryLocker はMemoryLockerを生成する。
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Acquire はkeyのロックを取得する。期限切れのエントリは上書きする。
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.expiresAt) {
		return nil, ErrLockHeld
	}

	l.seq++
	token := l.seq
	l.entries[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.entries[key]; ok && e.token == token {
			delete(l.entries, key)
		}
		return nil
	}
	return release, nil
}

// compile-time interface check
var _ Locker = (*MemoryLocker)(nil)
