// Package lock は短時間のキー単位排他ロックを提供する。
// メール単位のプロビジョニングとユーザー単位の生成処理の重複実行を防ぐために使う。
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld は同じキーのロックが他で保持されている場合に返される。
var ErrLockHeld = errors.New("lock is already held")

// ReleaseFunc はAcquireで取得したロックを解放する。
// TTL切れ後に他者が取得したロックは解放しない。
type ReleaseFunc func(ctx context.Context) error

// Locker はキー単位のロックを取得するインターフェース。
type Locker interface {
	// Acquire はkeyのロックをttlの期限付きで取得する。
	// 既に保持されている場合はErrLockHeldを返す（待機はしない）。
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}
