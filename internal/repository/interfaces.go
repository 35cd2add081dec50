// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/astroline/internal/model"
)

// ErrDuplicateEmail は同じemailのユーザーが既に存在する場合に返される。
// users.emailのUNIQUE制約違反から変換される。
var ErrDuplicateEmail = errors.New("user with this email already exists")

// UserRepository はIdentity Store（ユーザーアカウント）の永続化インターフェース。
type UserRepository interface {
	// FindByEmail はemailの完全一致（大文字小文字を区別）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	// 同じemailが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// ActivityRepository はActivity Ledger（追記専用の行動ログ）の永続化インターフェース。
type ActivityRepository interface {
	// AppendAndCount はイベントを追記し、[from, to) に含まれる同一ユーザー・カテゴリの
	// 追記後の件数を同一トランザクション内で返す。
	AppendAndCount(ctx context.Context, event *model.ActivityEvent, from, to time.Time) (int, error)

	// CountBetween は [from, to) に含まれる同一ユーザー・カテゴリのイベント数を返す。
	CountBetween(ctx context.Context, userID string, category model.ActivityCategory, from, to time.Time) (int, error)
}

// SketchRepository は生成済みラブスケッチの永続化インターフェース。
type SketchRepository interface {
	// Create はラブスケッチを保存する。
	Create(ctx context.Context, sketch *model.LoveSketch) error
}

// WebhookDeliveryRepository はWebhook受信記録の永続化インターフェース。
type WebhookDeliveryRepository interface {
	// Create は受信記録を保存する。
	Create(ctx context.Context, delivery *model.WebhookDelivery) error
}
