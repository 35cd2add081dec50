// Package provisioning は購入完了時のユーザーアカウント作成を行う。
// 同じメールアドレスに対して何度呼ばれてもアカウントは1つだけになる。
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/astroline/internal/lock"
	"github.com/hitoshi/astroline/internal/model"
	"github.com/hitoshi/astroline/internal/repository"
)

const (
	// MessageCreated は新規作成時のメッセージ。
	MessageCreated = "User created successfully"
	// MessageExists は既存アカウントがあった場合のメッセージ。
	MessageExists = "User already exists"

	lockTTL = 10 * time.Second
)

// Hasher はパスワードハッシュを生成する。
type Hasher interface {
	Hash(password string) (string, error)
}

// Recorder はプロビジョニング結果をメトリクスに記録する。
type Recorder interface {
	RecordProvisioning(result string)
}

// Result はプロビジョニングの結果。
type Result struct {
	UserID  string
	Email   string
	Created bool
	Message string
}

// Service はメールアドレスに対応するアカウントを用意する。
type Service struct {
	users           repository.UserRepository
	locker          lock.Locker
	hasher          Hasher
	defaultPassword string
	recorder        Recorder
	now             func() time.Time
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(users repository.UserRepository, locker lock.Locker, hasher Hasher, defaultPassword string, recorder Recorder) *Service {
	return &Service{
		users:           users,
		locker:          locker,
		hasher:          hasher,
		defaultPassword: defaultPassword,
		recorder:        recorder,
		now:             time.Now,
	}
}

// Provision はemailのアカウントを返す。存在しなければ既定のパスワードと
// 確認済みメールで作成する。既存アカウントの場合は何も変更しない。
// ストアの失敗は*model.APIError（IDENTITY_STORE_ERROR）として返す。
// メールアドレスとして不正な値は何も作成せずINVALID_EMAILを返す。
func (s *Service) Provision(ctx context.Context, email string) (*Result, error) {
	if !model.IsValidEmail(email) {
		return nil, model.NewInvalidEmailError()
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "provision:"+email, lockTTL)
		switch {
		case err == nil:
			defer func() {
				if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
					slog.Warn("プロビジョニングロックの解放に失敗しました",
						slog.String("error", rerr.Error()),
						slog.String("email", email),
					)
				}
			}()
		case errors.Is(err, lock.ErrLockHeld):
			// 同じメールの配信が処理中。UNIQUE制約が最終的な重複防止になるため続行する
			slog.Info("同じメールアドレスのプロビジョニングが進行中です", slog.String("email", email))
		default:
			slog.Warn("プロビジョニングロックを取得できないため、ロックなしで続行します",
				slog.String("error", err.Error()),
				slog.String("email", email),
			)
		}
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError("find", email, err)
	}
	if existing != nil {
		return s.existing(existing), nil
	}

	hash, err := s.hasher.Hash(s.defaultPassword)
	if err != nil {
		s.record("error")
		return nil, fmt.Errorf("failed to hash default password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, s.storeError("create", email, err)
		}

		// 並行した配信が先に作成した
		winner, ferr := s.users.FindByEmail(ctx, email)
		if ferr != nil {
			return nil, s.storeError("find", email, ferr)
		}
		if winner == nil {
			return nil, s.storeError("find", email, err)
		}
		return s.existing(winner), nil
	}

	s.record("created")
	slog.Info("ユーザーを作成しました",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)
	return &Result{UserID: user.ID, Email: email, Created: true, Message: MessageCreated}, nil
}

func (s *Service) existing(user *model.User) *Result {
	s.record("existing")
	slog.Info("ユーザーは既に存在します",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return &Result{UserID: user.ID, Email: user.Email, Created: false, Message: MessageExists}
}

func (s *Service) storeError(op, email string, err error) error {
	s.record("error")
	slog.Error("Identity Storeの操作に失敗しました",
		slog.String("op", op),
		slog.String("error", err.Error()),
		slog.String("email", email),
	)
	return model.NewIdentityStoreError(err.Error())
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordProvisioning(result)
	}
}
